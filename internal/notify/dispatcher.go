package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/warranty-keeper/internal/metrics"
	"github.com/and161185/warranty-keeper/internal/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Kinds label notifications in logs and metrics.
const (
	KindWarrantyVerification   = "warranty_verification"
	KindWarrantyActivation     = "warranty_activation"
	KindWarrantyActivated      = "warranty_activated"
	KindWarrantyRejected       = "warranty_rejected"
	KindInspectionVerification = "inspection_verification"
	KindInspectionVerified     = "inspection_verified"
	KindReminder               = "inspection_reminder"
	KindLapsed                 = "warranty_lapsed"
	KindReinstated             = "warranty_reinstated"
)

// Dispatcher composes lifecycle notifications and hands them to a Sender.
// Delivery failures are logged and counted, never returned.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
	baseURL string
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewDispatcher constructs a dispatcher; ratePerSecond <= 0 disables throttling.
func NewDispatcher(sender Sender, baseURL string, ratePerSecond float64, burst int, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	lim := rate.NewLimiter(rate.Inf, 0)
	if ratePerSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &Dispatcher{
		sender:  sender,
		limiter: lim,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		metrics: m,
	}
}

// WarrantyVerificationRequested sends the installer their confirmation link.
func (d *Dispatcher) WarrantyVerificationRequested(ctx context.Context, w *model.Warranty, installer *model.Partner, token string) {
	link := d.baseURL + "/verify-warranty/" + token
	subject := "Please confirm installation " + w.SerialNumber
	body := fmt.Sprintf("Installation of unit %s on vehicle %s for %s %s is awaiting your confirmation.\nConfirm or decline: %s",
		w.SerialNumber, w.Vehicle.VIN, w.Owner.FirstName, w.Owner.LastName, link)
	d.email(ctx, KindWarrantyVerification, installer.Email, subject, body)
	d.sms(ctx, KindWarrantyVerification, installer.Phone, "Installation confirmation needed: "+link)
}

// WarrantyActivationRequested sends the customer their terms acceptance link.
func (d *Dispatcher) WarrantyActivationRequested(ctx context.Context, w *model.Warranty, token string) {
	link := d.baseURL + "/customer/activation/" + token
	body := fmt.Sprintf("Hello %s,\nYour installer has confirmed the installation on %s. Review and accept the warranty terms to activate your coverage: %s",
		w.Owner.FirstName, w.Vehicle.VIN, link)
	d.email(ctx, KindWarrantyActivation, w.Owner.Email, "Activate your warranty", body)
	d.sms(ctx, KindWarrantyActivation, w.Owner.Phone, "Activate your warranty: "+link)
}

// WarrantyActivated confirms coverage to the customer.
func (d *Dispatcher) WarrantyActivated(ctx context.Context, w *model.Warranty) {
	body := fmt.Sprintf("Hello %s,\nYour warranty is active. Your first annual inspection is due by %s.",
		w.Owner.FirstName, dueString(w))
	d.email(ctx, KindWarrantyActivated, w.Owner.Email, "Your warranty is active", body)
}

// WarrantyRejected tells the installer the record was declined.
func (d *Dispatcher) WarrantyRejected(ctx context.Context, w *model.Warranty, installer *model.Partner) {
	if installer == nil {
		return
	}
	body := fmt.Sprintf("Warranty for unit %s was declined: %s", w.SerialNumber, w.RejectionReason)
	d.email(ctx, KindWarrantyRejected, installer.Email, "Warranty declined", body)
}

// InspectionVerificationRequested sends the inspector their confirmation link.
func (d *Dispatcher) InspectionVerificationRequested(ctx context.Context, in *model.Inspection, inspector *model.Partner, token string) {
	link := d.baseURL + "/verify-inspection/" + token
	body := fmt.Sprintf("Inspection dated %s is awaiting your confirmation.\nConfirm or decline: %s",
		in.InspectionDate.Format("2006-01-02"), link)
	d.email(ctx, KindInspectionVerification, inspector.Email, "Please confirm inspection", body)
	d.sms(ctx, KindInspectionVerification, inspector.Phone, "Inspection confirmation needed: "+link)
}

// InspectionVerified tells the customer their coverage was extended.
func (d *Dispatcher) InspectionVerified(ctx context.Context, w *model.Warranty) {
	body := fmt.Sprintf("Hello %s,\nYour annual inspection is confirmed. Your next inspection is due by %s.",
		w.Owner.FirstName, dueString(w))
	d.email(ctx, KindInspectionVerified, w.Owner.Email, "Inspection confirmed", body)
}

// InspectionReminder nudges the customer about an upcoming or overdue inspection.
// tierDays is the offset from the due date; negative means overdue.
func (d *Dispatcher) InspectionReminder(ctx context.Context, w *model.Warranty, tierDays, graceDays int) {
	var subject, body string
	if tierDays >= 0 {
		subject = fmt.Sprintf("Annual inspection due in %d days", tierDays)
		body = fmt.Sprintf("Hello %s,\nYour annual inspection is due by %s. Book it to keep your coverage.",
			w.Owner.FirstName, dueString(w))
	} else {
		subject = fmt.Sprintf("Annual inspection overdue by %d days", -tierDays)
		body = fmt.Sprintf("Hello %s,\nYour annual inspection was due on %s. Coverage lapses %d days after the due date.",
			w.Owner.FirstName, dueString(w), graceDays)
	}
	d.email(ctx, KindReminder, w.Owner.Email, subject, body)
	d.sms(ctx, KindReminder, w.Owner.Phone, subject)
}

// WarrantyLapsed tells the customer coverage has lapsed.
func (d *Dispatcher) WarrantyLapsed(ctx context.Context, w *model.Warranty) {
	body := fmt.Sprintf("Hello %s,\nYour warranty lapsed because no inspection was recorded after %s. Contact us to arrange reinstatement.",
		w.Owner.FirstName, dueString(w))
	d.email(ctx, KindLapsed, w.Owner.Email, "Your warranty has lapsed", body)
	d.sms(ctx, KindLapsed, w.Owner.Phone, "Your warranty has lapsed. Contact us to reinstate.")
}

// WarrantyReinstated confirms reinstatement to the customer.
func (d *Dispatcher) WarrantyReinstated(ctx context.Context, w *model.Warranty) {
	body := fmt.Sprintf("Hello %s,\nYour warranty has been reinstated. Your next inspection is due by %s.",
		w.Owner.FirstName, dueString(w))
	d.email(ctx, KindReinstated, w.Owner.Email, "Your warranty is reinstated", body)
}

func (d *Dispatcher) email(ctx context.Context, kind, to, subject, body string) {
	d.deliver(ctx, kind, ChannelEmail, to, func(ctx context.Context) error {
		return d.sender.SendEmail(ctx, to, subject, body)
	})
}

func (d *Dispatcher) sms(ctx context.Context, kind, to, body string) {
	d.deliver(ctx, kind, ChannelSMS, to, func(ctx context.Context) error {
		return d.sender.SendSMS(ctx, to, body)
	})
}

func (d *Dispatcher) deliver(ctx context.Context, kind string, ch Channel, to string, send func(context.Context) error) {
	if d == nil || d.sender == nil {
		return
	}
	if to == "" {
		d.metrics.ObserveNotification(kind, string(ch), "skipped")
		return
	}
	if err := d.limiter.Wait(ctx); err != nil {
		d.log.Warn("notification throttled", zap.String("kind", kind), zap.String("channel", string(ch)), zap.Error(err))
		d.metrics.ObserveNotification(kind, string(ch), "throttled")
		return
	}
	if err := send(ctx); err != nil {
		d.log.Warn("notification failed", zap.String("kind", kind), zap.String("channel", string(ch)), zap.Error(err))
		d.metrics.ObserveNotification(kind, string(ch), "error")
		return
	}
	d.metrics.ObserveNotification(kind, string(ch), "ok")
}

func dueString(w *model.Warranty) string {
	if w.InspectionDueDate == nil {
		return "-"
	}
	return w.InspectionDueDate.Format("2006-01-02")
}
