// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthRoleDenied         = "auth.role_denied"
	KeyAuthAdminRegistration  = "auth.admin_registration"

	// Validation
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationRequired = "validation.required"
	KeyValidationReason   = "validation.reason_required"
	KeyInvalidID          = "validation.invalid_id"

	// Errors by kind
	KeyErrInvalidTransition = "error.invalid_transition"
	KeyErrForbidden         = "error.forbidden"
	KeyErrInvalidHours      = "error.invalid_hours"
	KeyErrInvalidPolicy     = "error.invalid_policy"
	KeyErrNotFound          = "error.not_found"
	KeyErrConflict          = "error.conflict"
	KeyErrInternal          = "error.internal"
	KeyRateLimited          = "error.rate_limited"

	// Notifications (rendered into stored messages)
	KeyNotifyApplied       = "notification.applied"
	KeyNotifyAccepted      = "notification.accepted"
	KeyNotifyRejected      = "notification.rejected"
	KeyNotifyCompleted     = "notification.completed"
	KeyNotifyApproved      = "notification.credits_approved"
	KeyNotifyCreditsDenied = "notification.credits_rejected"
	KeyNotifyException     = "notification.exception"
	KeyNotifyPushed        = "notification.pushed"
)
