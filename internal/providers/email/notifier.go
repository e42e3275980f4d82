// Package email delivers tenant-facing notifications.
package email

import "context"

// Notifier sends usage notifications to tenant owners.
type Notifier interface {
	SendVisitCapWarning(ctx context.Context, to, businessName string, current, cap int64) error
}
