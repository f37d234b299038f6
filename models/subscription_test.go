package models

import (
	"testing"
	"time"

	"github.com/badgify/badgify-server/utils"
	"github.com/stretchr/testify/assert"
)

func TestSubscriptionAuthorized(t *testing.T) {
	now := utils.UTCNow()

	t.Run("ActiveIsAlwaysAuthorized", func(t *testing.T) {
		sub := &Subscription{Status: SubscriptionStatusActive}
		assert.True(t, sub.Authorized(now))
		assert.True(t, sub.Authorized(now.Add(365*24*time.Hour)))
	})

	t.Run("PendingWithinTrial", func(t *testing.T) {
		sub := &Subscription{
			Status:      SubscriptionStatusPending,
			TrialEndsAt: utils.ToPtr(now.Add(24 * time.Hour)),
		}
		assert.True(t, sub.Authorized(now))
	})

	t.Run("PendingPastTrialEndIsUnauthorizedBeforeSweep", func(t *testing.T) {
		// The stored status still reads pending; only the predicate matters.
		sub := &Subscription{
			Status:      SubscriptionStatusPending,
			TrialEndsAt: utils.ToPtr(now.Add(-time.Second)),
		}
		assert.False(t, sub.Authorized(now))
	})

	t.Run("PendingWithoutTrialEnd", func(t *testing.T) {
		sub := &Subscription{Status: SubscriptionStatusPending}
		assert.False(t, sub.Authorized(now))
	})

	t.Run("CancelledAndExpired", func(t *testing.T) {
		for _, status := range []SubscriptionStatus{SubscriptionStatusCancelled, SubscriptionStatusExpired} {
			sub := &Subscription{Status: status, TrialEndsAt: utils.ToPtr(now.Add(24 * time.Hour))}
			assert.False(t, sub.Authorized(now), "status %s must not authorize", status)
		}
	})

	t.Run("NilSubscription", func(t *testing.T) {
		var sub *Subscription
		assert.False(t, sub.Authorized(now))
	})
}

func TestSubscriptionTrialDaysRemaining(t *testing.T) {
	now := utils.UTCNow()

	t.Run("CeilsPartialDays", func(t *testing.T) {
		sub := &Subscription{TrialEndsAt: utils.ToPtr(now.Add(25 * time.Hour))}
		assert.Equal(t, 2, sub.TrialDaysRemaining(now))

		sub = &Subscription{TrialEndsAt: utils.ToPtr(now.Add(time.Minute))}
		assert.Equal(t, 1, sub.TrialDaysRemaining(now))
	})

	t.Run("ExactDayBoundary", func(t *testing.T) {
		sub := &Subscription{TrialEndsAt: utils.ToPtr(now.Add(72 * time.Hour))}
		assert.Equal(t, 3, sub.TrialDaysRemaining(now))
	})

	t.Run("NeverNegative", func(t *testing.T) {
		sub := &Subscription{TrialEndsAt: utils.ToPtr(now.Add(-48 * time.Hour))}
		assert.Equal(t, 0, sub.TrialDaysRemaining(now))
	})

	t.Run("NoTrialEnd", func(t *testing.T) {
		sub := &Subscription{}
		assert.Equal(t, 0, sub.TrialDaysRemaining(now))
	})

	t.Run("MonotonicallyNonIncreasing", func(t *testing.T) {
		sub := &Subscription{TrialEndsAt: utils.ToPtr(now.Add(3 * 24 * time.Hour))}
		prev := sub.TrialDaysRemaining(now)
		for i := 1; i <= 10; i++ {
			cur := sub.TrialDaysRemaining(now.Add(time.Duration(i) * 9 * time.Hour))
			assert.LessOrEqual(t, cur, prev)
			assert.GreaterOrEqual(t, cur, 0)
			prev = cur
		}
	})
}

func TestSubscriptionTrialTimeline(t *testing.T) {
	// Created at T0 with a 3-day trial.
	t0 := utils.UTCNow()
	sub := &Subscription{
		Status:      SubscriptionStatusPending,
		TrialDays:   3,
		TrialEndsAt: utils.ToPtr(t0.Add(3 * 24 * time.Hour)),
	}

	// At T0+2d the trial grace still applies with one day left.
	at2d := t0.Add(2 * 24 * time.Hour)
	assert.True(t, sub.Authorized(at2d))
	assert.Equal(t, 1, sub.TrialDaysRemaining(at2d))

	// One second past trial end the predicate denies even though the stored
	// status has not been swept yet.
	past := t0.Add(3*24*time.Hour + time.Second)
	assert.Equal(t, SubscriptionStatusPending, sub.Status)
	assert.False(t, sub.Authorized(past))
	assert.Equal(t, 0, sub.TrialDaysRemaining(past))
}
