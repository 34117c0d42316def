package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// --- Mock implementations ---

type mockRepo struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (m *mockRepo) Insert(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *mockRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []Record
	err  error
}

func (m *mockNotifier) Notify(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, r)
	return m.err
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// --- Helpers ---

func validDetails() Details {
	return Details{
		FirstName:  "Asha",
		LastName:   "Rao",
		Email:      "asha@example.com",
		Phone:      "9876543210",
		Address:    "12 MG Road",
		City:       "Pune",
		State:      "MH",
		Country:    "India",
		PostalCode: "411001",
		Item:       "StarLightTrader Pro",
		Amount:     decimal.NewFromInt(60000),
		Currency:   "INR",
	}
}

var fixedNow = time.Date(2026, time.October, 16, 14, 30, 0, 0, time.UTC)

func observedContext() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zctx.Base(context.Background(), zap.New(core)), logs
}

// --- Tests ---

func TestDetails_Missing(t *testing.T) {
	d := validDetails()
	assert.Empty(t, d.Missing())

	d.Email = ""
	d.PostalCode = ""
	assert.Equal(t, []string{"emailID", "pinCode"}, d.Missing())
}

func TestService_SubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		orderID string
		mode    string
		details func() Details
		fields  []string
	}{
		{name: "missing order id", orderID: "", mode: "UPI", details: validDetails},
		{name: "missing provider", orderID: "SLTPRO-161026-1430", mode: " ", details: validDetails},
		{
			name:    "missing billing fields",
			orderID: "SLTPRO-161026-1430",
			mode:    "UPI",
			details: func() Details {
				d := validDetails()
				d.FirstName = ""
				d.City = ""
				return d
			},
			fields: []string{"firstName", "city"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			s := NewService(repo, nil, Options{Now: func() time.Time { return fixedNow }})

			_, err := s.Submit(context.Background(), tt.orderID, tt.mode, tt.details())

			require.ErrorIs(t, err, ErrMissingFields)
			if tt.fields != nil {
				var mfErr *MissingFieldsError
				require.ErrorAs(t, err, &mfErr)
				assert.Equal(t, tt.fields, mfErr.Fields)
				assert.Equal(t, "The following fields are required: firstName, city", mfErr.Error())
			}
			assert.Empty(t, s.queue)
		})
	}
}

func TestService_PersistsThenNotifies(t *testing.T) {
	repo := &mockRepo{}
	notifier := &mockNotifier{}
	s := NewService(repo, notifier, Options{Now: func() time.Time { return fixedNow }})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	rec, err := s.Submit(context.Background(), "SLTPRO-161026-1430", "PhonePe", validDetails())
	require.NoError(t, err)
	assert.Equal(t, StatusInitiated, rec.Status)
	assert.Equal(t, "PhonePe", rec.Mode)
	assert.Equal(t, fixedNow, rec.CreatedAt)

	require.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, "SLTPRO-161026-1430", repo.records[0].OrderID)

	cancel()
	require.NoError(t, <-done)
}

func TestService_StoreFailureIsLoggedOnly(t *testing.T) {
	ctx, logs := observedContext()
	repo := &mockRepo{err: errors.New("connection refused")}
	notifier := &mockNotifier{}
	s := NewService(repo, notifier, Options{})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- s.Run(runCtx) }()

	_, err := s.Submit(ctx, "WFAC-161026-1430", "Wise", validDetails())
	require.NoError(t, err, "buyer must see success regardless of storage")

	require.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	entries := logs.FilterMessage("Save billing details").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestService_NotifierFailureIsLoggedOnly(t *testing.T) {
	ctx, logs := observedContext()
	repo := &mockRepo{}
	s := NewService(repo, &mockNotifier{err: errors.New("bad token")}, Options{})

	_, err := s.Submit(ctx, "VFA-161026-1430", "UPI", validDetails())
	require.NoError(t, err)

	// Run on an already cancelled context drains the queue and returns.
	runCtx, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, s.Run(runCtx))

	assert.Equal(t, 1, repo.count())
	assert.Equal(t, 1, logs.FilterMessage("Send billing notification").Len())
}

func TestService_QueueFull(t *testing.T) {
	s := NewService(nil, nil, Options{QueueSize: 1})

	_, err := s.Submit(context.Background(), "A-1", "UPI", validDetails())
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), "A-2", "UPI", validDetails())
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestMessage(t *testing.T) {
	r := Record{
		OrderID: "SLTPRO-161026-1430",
		Details: validDetails(),
		Status:  StatusInitiated,
		Mode:    "UPI",
	}

	msg := Message(r)

	assert.Contains(t, msg, "Order ID: SLTPRO-161026-1430")
	assert.Contains(t, msg, "Amount: ₹ 60000")
	assert.Contains(t, msg, "Status: PAYMENT INITIATED")
	assert.Contains(t, msg, "Location: Pune, MH, India")

	r.Details.Currency = "USD"
	r.Details.Amount = decimal.Zero
	r.Details.Item = ""
	msg = Message(r)
	assert.Contains(t, msg, "Amount: $ N/A")
	assert.Contains(t, msg, "Item: N/A")
}

func TestMessage_EscapesMarkdown(t *testing.T) {
	d := validDetails()
	d.FirstName = "Asha_R"
	d.LastName = "*Rao*"
	d.Email = "asha_rao@example.com"
	d.City = "[Pune]"
	d.State = "M`H"

	msg := Message(Record{OrderID: "SLTPRO-161026-1430", Details: d, Status: StatusInitiated, Mode: "UPI"})

	assert.Contains(t, msg, `Name: Asha\_R \*Rao\*`)
	assert.Contains(t, msg, `Email: asha\_rao@example.com`)
	assert.Contains(t, msg, "Location: \\[Pune], M\\`H, India")
	assert.Contains(t, msg, "🔔 *New Payment Notification*")
}
