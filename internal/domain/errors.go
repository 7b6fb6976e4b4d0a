package domain

import "errors"

var (
	// ErrFetch means the portal could not be reached, navigated or parsed. No store mutation happened.
	ErrFetch = errors.New("fetch failed")
	// ErrStorageUnavailable means the publication store could not be reached or timed out.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStorageIntegrity means a constraint other than the (date, search term) uniqueness was violated.
	ErrStorageIntegrity = errors.New("storage integrity violation")
	// ErrNotificationDelivery means the mail relay refused or could not be reached.
	// Dates detected in the same run stay recorded.
	ErrNotificationDelivery = errors.New("notification delivery failed")
	// ErrInvalidConfig is returned for unusable startup configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorKind maps an error to a stable label for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, ErrStorageIntegrity):
		return "storage_integrity"
	case errors.Is(err, ErrNotificationDelivery):
		return "notification_delivery"
	case errors.Is(err, ErrInvalidConfig):
		return "config"
	default:
		return "unknown"
	}
}
