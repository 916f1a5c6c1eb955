package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type sent struct {
	channel Channel
	to      string
	subject string
	body    string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

var _ Sender = (*fakeSender)(nil)

func (f *fakeSender) SendEmail(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{ChannelEmail, to, subject, body})
	return f.err
}

func (f *fakeSender) SendSMS(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{ChannelSMS, to, "", body})
	return f.err
}

func TestKafkaSender_PublishesKeyedJSON(t *testing.T) {
	fw := &fakeWriter{}
	s := NewKafkaSender(fw)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, s.SendEmail(context.Background(), "ann@example.com", "Hi", "Body"))
	require.NoError(t, s.SendSMS(context.Background(), "+61400000000", "Text"))
	require.Len(t, fw.msgs, 2)

	require.Equal(t, "ann@example.com", string(fw.msgs[0].Key))
	var m Message
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &m))
	require.Equal(t, ChannelEmail, m.Channel)
	require.Equal(t, "Hi", m.Subject)
	require.Equal(t, "sms", string(fw.msgs[1].Headers[0].Value))

	fw.err = errors.New("broker down")
	require.Error(t, s.SendSMS(context.Background(), "+1", "x"))
}

func testWarranty() *model.Warranty {
	due := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	return &model.Warranty{
		Owner:             model.Owner{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Phone: "+61400000000"},
		Vehicle:           model.Vehicle{VIN: "VIN1"},
		SerialNumber:      "SN-9",
		InspectionDueDate: &due,
	}
}

func TestDispatcher_ComposesLinks(t *testing.T) {
	fs := &fakeSender{}
	d := NewDispatcher(fs, "https://wk.example.com/", 0, 0, zaptest.NewLogger(t), nil)
	installer := &model.Partner{Email: "fit@example.com", Phone: "+61411111111"}

	d.WarrantyVerificationRequested(context.Background(), testWarranty(), installer, "tok123")
	require.Len(t, fs.sent, 2)
	require.Equal(t, "fit@example.com", fs.sent[0].to)
	require.True(t, strings.Contains(fs.sent[0].body, "https://wk.example.com/verify-warranty/tok123"))
	require.Equal(t, ChannelSMS, fs.sent[1].channel)

	d.WarrantyActivationRequested(context.Background(), testWarranty(), "act456")
	require.True(t, strings.Contains(fs.sent[2].body, "https://wk.example.com/customer/activation/act456"))
}

func TestDispatcher_ReminderWording(t *testing.T) {
	fs := &fakeSender{}
	d := NewDispatcher(fs, "http://x", 0, 0, zaptest.NewLogger(t), nil)

	d.InspectionReminder(context.Background(), testWarranty(), 14, 60)
	d.InspectionReminder(context.Background(), testWarranty(), -7, 60)
	require.Equal(t, "Annual inspection due in 14 days", fs.sent[0].subject)
	require.Equal(t, "Annual inspection overdue by 7 days", fs.sent[2].subject)
	require.True(t, strings.Contains(fs.sent[2].body, "2027-03-01"))
}

func TestDispatcher_FailuresAreSwallowed(t *testing.T) {
	fs := &fakeSender{err: errors.New("provider down")}
	d := NewDispatcher(fs, "http://x", 0, 0, zaptest.NewLogger(t), nil)

	require.NotPanics(t, func() {
		d.WarrantyLapsed(context.Background(), testWarranty())
	})
	require.Len(t, fs.sent, 2)
}

func TestDispatcher_SkipsEmptyRecipientAndNil(t *testing.T) {
	fs := &fakeSender{}
	d := NewDispatcher(fs, "http://x", 0, 0, zaptest.NewLogger(t), nil)
	w := testWarranty()
	w.Owner.Phone = ""

	d.WarrantyLapsed(context.Background(), w)
	require.Len(t, fs.sent, 1)

	var nilD *Dispatcher
	nilD.WarrantyActivated(context.Background(), w)
}

func TestDispatcher_ThrottleHonoursContext(t *testing.T) {
	fs := &fakeSender{}
	d := NewDispatcher(fs, "http://x", 0.001, 1, zaptest.NewLogger(t), nil)

	d.WarrantyActivated(context.Background(), testWarranty())
	require.Len(t, fs.sent, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	d.WarrantyActivated(ctx, testWarranty())
	require.Len(t, fs.sent, 1)
}
