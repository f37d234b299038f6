package dto

// APIResponse is the envelope every endpoint returns. Success carries the payload
// in Data; failures put a code and optional details under Error instead.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail is the Error half of the envelope: a stable machine-readable code
// plus whatever context the handler attaches.
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}
