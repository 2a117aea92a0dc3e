package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/types"

	"github.com/pathlab-mcp-server/internal/domain"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	to   []types.JID
	err  error
}

func (f *fakeSender) SendText(_ context.Context, to types.JID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.sent = append(f.sent, text)
	return nil
}

func finalReport(phone string) *domain.Report {
	return &domain.Report{
		ID:       "r-1",
		LabID:    "lab-a",
		TestName: "Complete Blood Count",
		Patient:  domain.PatientInfo{Name: "Asha", Phone: phone},
		Status:   domain.ReportFinal,
		Results: []domain.ResultRow{
			{Parameter: "Hemoglobin", Value: "10", Unit: "g/dL", Flag: domain.FlagLow},
			{Parameter: "WBC", Value: "7000", Flag: domain.FlagNormal},
			{Parameter: "Platelet Count", Value: "15000", Flag: domain.FlagCritical},
		},
	}
}

func notifierConfig() domain.NotificationsConfig {
	return domain.NotificationsConfig{
		Enabled:       true,
		DefaultRegion: "91",
		RatePerMinute: 600,
		Burst:         10,
		SendTimeout:   time.Second,
		LabName:       "City Lab",
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"local ten digit", "98765 43210", "919876543210", false},
		{"trunk zero", "09876543210", "919876543210", false},
		{"plus prefix", "+91 98765-43210", "919876543210", false},
		{"double zero prefix", "0044 20 7946 0958", "442079460958", false},
		{"foreign plus", "+1 (650) 555-0123", "16505550123", false},
		{"too short", "12345", "", true},
		{"empty", "", "", true},
		{"letters", "call me", "", true},
		{"too long", "+1234567890123456", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.in, "91")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhoneToJID(t *testing.T) {
	jid, err := PhoneToJID("9876543210", "91")
	require.NoError(t, err)
	assert.Equal(t, "919876543210@s.whatsapp.net", jid.String())

	_, err = PhoneToJID("x", "91")
	assert.Error(t, err)
}

func TestFormatReportReady(t *testing.T) {
	msg := FormatReportReady(finalReport(""), "City Lab")

	assert.Contains(t, msg, "Hello Asha")
	assert.Contains(t, msg, "Complete Blood Count report is ready")
	assert.Contains(t, msg, "City Lab")
	assert.Contains(t, msg, "2 result(s) outside the reference range")
	assert.Contains(t, msg, "- Hemoglobin: 10 g/dL (L)")
	assert.Contains(t, msg, "- Platelet Count: 15000 (!!)")
	assert.NotContains(t, msg, "WBC")
}

func TestFormatReportReady_AllNormal(t *testing.T) {
	r := finalReport("")
	r.Patient.Name = ""
	r.Results = []domain.ResultRow{{Parameter: "WBC", Value: "7000", Flag: domain.FlagNormal}}

	msg := FormatReportReady(r, "")
	assert.True(t, strings.HasPrefix(msg, "Hello there"))
	assert.Contains(t, msg, "All results are within the reference range.")
}

func TestFormatReportReady_TruncatesList(t *testing.T) {
	r := finalReport("")
	r.Results = nil
	for i := 0; i < 8; i++ {
		r.Results = append(r.Results, domain.ResultRow{Parameter: "P", Value: "1", Flag: domain.FlagHigh})
	}
	assert.Contains(t, FormatReportReady(r, ""), "...and 3 more")
}

func TestReportNotifier_Sends(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sender := &fakeSender{}
	n := NewReportNotifier(notifierConfig(), sender, logger)

	require.NoError(t, n.NotifyReportReady(context.Background(), finalReport("98765 43210")))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "919876543210", sender.to[0].User)
	assert.Contains(t, sender.sent[0], "Hemoglobin")
}

func TestReportNotifier_InvalidPhone(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sender := &fakeSender{}
	n := NewReportNotifier(notifierConfig(), sender, logger)

	err := n.NotifyReportReady(context.Background(), finalReport("123"))
	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, domain.ErrNotification, apiErr.Code)
	assert.Empty(t, sender.sent)
}

func TestReportNotifier_CircuitOpens(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sender := &fakeSender{err: errors.New("socket closed")}
	n := NewReportNotifier(notifierConfig(), sender, logger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, n.NotifyReportReady(ctx, finalReport("9876543210")))
	}
	assert.Equal(t, gobreaker.StateOpen, n.State())

	err := n.NotifyReportReady(ctx, finalReport("9876543210"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestReportNotifier_RateLimitHonoursContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := notifierConfig()
	cfg.RatePerMinute = 1
	cfg.Burst = 1
	cfg.SendTimeout = 50 * time.Millisecond
	n := NewReportNotifier(cfg, &fakeSender{}, logger)
	ctx := context.Background()

	require.NoError(t, n.NotifyReportReady(ctx, finalReport("9876543210")))
	err := n.NotifyReportReady(ctx, finalReport("9876543210"))
	assert.ErrorContains(t, err, "rate limit")
}

func TestLogSender(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := NewLogSender(logger)

	require.NoError(t, s.SendText(context.Background(), types.NewJID("919876543210", types.DefaultUserServer), "hi"))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "919876543210@s.whatsapp.net", hook.LastEntry().Data["to"])
}

func TestWALogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	l := NewWALogger(logger, "client").Sub("socket")

	l.Warnf("reconnecting in %d s", 5)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "reconnecting in 5 s", hook.LastEntry().Message)
	assert.Equal(t, "client/socket", hook.LastEntry().Data["module"])
}

func TestWhatsAppClient_SendTextRequiresConnection(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := &WhatsAppClient{status: StatusDisconnected, logger: logger}

	err := c.SendText(context.Background(), types.NewJID("1", types.DefaultUserServer), "x")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Empty(t, c.QRCode())
}
