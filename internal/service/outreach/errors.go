package outreach

import "errors"

// Sentinel errors for the outreach service layer.
var (
	// ErrNotFound covers a missing email, campaign, or template row.
	ErrNotFound = errors.New("record not found")

	// ErrProvider marks a rejected delivery/API call.
	ErrProvider = errors.New("delivery provider error")

	// ErrValidation marks malformed template variables or missing
	// required fields.
	ErrValidation = errors.New("validation error")

	// ErrNotConnected marks a required external credential that is
	// absent or disabled.
	ErrNotConnected = errors.New("integration not connected")
)
