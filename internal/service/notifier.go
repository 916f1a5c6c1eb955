package service

import (
	"context"

	"github.com/and161185/warranty-keeper/internal/model"
)

// Notifier sends lifecycle notifications. Implementations must not block on or
// report delivery failures; see notify.Dispatcher.
type Notifier interface {
	WarrantyVerificationRequested(ctx context.Context, w *model.Warranty, installer *model.Partner, token string)
	WarrantyActivationRequested(ctx context.Context, w *model.Warranty, token string)
	WarrantyActivated(ctx context.Context, w *model.Warranty)
	WarrantyRejected(ctx context.Context, w *model.Warranty, installer *model.Partner)
	InspectionVerificationRequested(ctx context.Context, in *model.Inspection, inspector *model.Partner, token string)
	InspectionVerified(ctx context.Context, w *model.Warranty)
	InspectionReminder(ctx context.Context, w *model.Warranty, tierDays, graceDays int)
	WarrantyLapsed(ctx context.Context, w *model.Warranty)
	WarrantyReinstated(ctx context.Context, w *model.Warranty)
}

type nopNotifier struct{}

func (nopNotifier) WarrantyVerificationRequested(context.Context, *model.Warranty, *model.Partner, string) {
}
func (nopNotifier) WarrantyActivationRequested(context.Context, *model.Warranty, string) {}
func (nopNotifier) WarrantyActivated(context.Context, *model.Warranty)                   {}
func (nopNotifier) WarrantyRejected(context.Context, *model.Warranty, *model.Partner)    {}
func (nopNotifier) InspectionVerificationRequested(context.Context, *model.Inspection, *model.Partner, string) {
}
func (nopNotifier) InspectionVerified(context.Context, *model.Warranty)          {}
func (nopNotifier) InspectionReminder(context.Context, *model.Warranty, int, int) {}
func (nopNotifier) WarrantyLapsed(context.Context, *model.Warranty)              {}
func (nopNotifier) WarrantyReinstated(context.Context, *model.Warranty)          {}

// NopNotifier discards every notification.
func NopNotifier() Notifier { return nopNotifier{} }

// notifyCtx detaches post-commit notifications from request cancellation.
func notifyCtx(ctx context.Context) context.Context { return context.WithoutCancel(ctx) }
