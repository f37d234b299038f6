// Package businessflow contains the core business logic for badge and subscription workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Tenant-related errors
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrTenantUninstalled  = errors.New("tenant is uninstalled")
	ErrShopDomainRequired = errors.New("shop domain is required")

	// Badge-related errors
	ErrBadgeNotFound      = errors.New("badge not found")
	ErrBadgeNameRequired  = errors.New("badge name is required")
	ErrBadgeAccessDenied  = errors.New("badge access denied")
	ErrBadgeUUIDRequired  = errors.New("badge UUID is required")
	ErrBadgeLimitExceeded = errors.New("badge limit exceeded")

	// Rule-related errors
	ErrInvalidRuleType        = errors.New("invalid rule type")
	ErrRuleCriteriaRequired   = errors.New("rule criteria are required")
	ErrRuleCriteriaNotAllowed = errors.New("manual rules carry no criteria")
	ErrNotManualRule          = errors.New("badge rule is not manual")

	// Resolution-related errors
	ErrCatalogUnavailable  = errors.New("catalog unavailable")
	ErrRebuildInProgress   = errors.New("rebuild already in progress")
	ErrResolutionRunFailed = errors.New("resolution run failed")

	// Subscription-related errors
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionNotPending    = errors.New("subscription is not pending")
	ErrSubscriptionAlreadyActive = errors.New("subscription is already active")
	ErrBillingAuthorityFailure   = errors.New("billing authority failure")
	ErrSubscriptionRequired      = errors.New("active subscription or trial required")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size is out of range")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsTenantNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound)
}

func IsTenantUninstalled(err error) bool {
	return errors.Is(err, ErrTenantUninstalled)
}

func IsShopDomainRequired(err error) bool {
	return errors.Is(err, ErrShopDomainRequired)
}

func IsBadgeNotFound(err error) bool {
	return errors.Is(err, ErrBadgeNotFound)
}

func IsBadgeNameRequired(err error) bool {
	return errors.Is(err, ErrBadgeNameRequired)
}

func IsBadgeAccessDenied(err error) bool {
	return errors.Is(err, ErrBadgeAccessDenied)
}

func IsBadgeUUIDRequired(err error) bool {
	return errors.Is(err, ErrBadgeUUIDRequired)
}

func IsBadgeLimitExceeded(err error) bool {
	return errors.Is(err, ErrBadgeLimitExceeded)
}

func IsInvalidRuleType(err error) bool {
	return errors.Is(err, ErrInvalidRuleType)
}

func IsRuleCriteriaRequired(err error) bool {
	return errors.Is(err, ErrRuleCriteriaRequired)
}

func IsRuleCriteriaNotAllowed(err error) bool {
	return errors.Is(err, ErrRuleCriteriaNotAllowed)
}

func IsNotManualRule(err error) bool {
	return errors.Is(err, ErrNotManualRule)
}

func IsCatalogUnavailable(err error) bool {
	return errors.Is(err, ErrCatalogUnavailable)
}

func IsRebuildInProgress(err error) bool {
	return errors.Is(err, ErrRebuildInProgress)
}

func IsResolutionRunFailed(err error) bool {
	return errors.Is(err, ErrResolutionRunFailed)
}

func IsSubscriptionNotFound(err error) bool {
	return errors.Is(err, ErrSubscriptionNotFound)
}

func IsSubscriptionNotPending(err error) bool {
	return errors.Is(err, ErrSubscriptionNotPending)
}

func IsSubscriptionAlreadyActive(err error) bool {
	return errors.Is(err, ErrSubscriptionAlreadyActive)
}

func IsBillingAuthorityFailure(err error) bool {
	return errors.Is(err, ErrBillingAuthorityFailure)
}

func IsSubscriptionRequired(err error) bool {
	return errors.Is(err, ErrSubscriptionRequired)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
