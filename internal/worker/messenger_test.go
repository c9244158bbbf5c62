package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/infrastructure/template"
	"github.com/go-account-api/internal/pkg/id"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type mockMessageStore struct{ mock.Mock }

func (m *mockMessageStore) ClaimBatch(ctx context.Context, timeout time.Duration, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, timeout, limit)
	msgs, _ := args.Get(0).([]domain.Message)
	return msgs, args.Error(1)
}
func (m *mockMessageStore) Finalize(ctx context.Context, msgID string, status domain.MessageStatus) error {
	return m.Called(ctx, msgID, status).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeMailer records sends and optionally fails every attempt.
type fakeMailer struct {
	mu    sync.Mutex
	sent  []string // recipient addresses
	fail  bool
	calls int
}

func (f *fakeMailer) SendEmail(from, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("smtp unreachable")
	}
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeMailer) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestMessenger(t *testing.T, ms *mockMessageStore, us *mockUserStore, mailer *fakeMailer) (*Messenger, *Notifier) {
	t.Helper()
	render, err := template.NewRenderer()
	require.NoError(t, err)

	cfg := config.Load()
	cfg.Worker.PollInterval = time.Hour // tests drive claims explicitly
	cfg.Worker.FailureBackoff = time.Millisecond

	notify := NewNotifier()
	m := NewMessenger(cfg, ms, us, render, mailer, notify)
	m.sendAttempts = 2
	m.sendRetryDelay = 0
	return m, notify
}

func outboxRow(userID uuid.UUID, kind domain.MessageKind) domain.Message {
	now := time.Now().UTC()
	return domain.Message{
		ID:        id.New(),
		Kind:      kind,
		Status:    domain.MessageStatusSending,
		Content:   "abC1z",
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- Notifier ---

func TestNotifyNeverBlocks(t *testing.T) {
	n := NewNotifier()
	n.Notify()
	n.Notify() // coalesces with the first signal
	n.Notify()

	select {
	case <-n.Wait():
	default:
		t.Fatal("expected a pending wake signal")
	}
	select {
	case <-n.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
}

// --- runOnce ---

func TestRunOnceDeliversClaimedBatch(t *testing.T) {
	u := &domain.User{ID: uuid.New(), Username: "u1", Email: "u1@x.com", Active: true}
	msg := outboxRow(u.ID, domain.MessageKindActiveCode)

	ms := &mockMessageStore{}
	us := &mockUserStore{}
	mailer := &fakeMailer{}
	ms.On("ClaimBatch", mock.Anything, mock.Anything, mock.Anything).Return([]domain.Message{msg}, nil)
	us.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	ms.On("Finalize", mock.Anything, msg.ID, domain.MessageStatusSuccess).Return(nil)

	m, _ := newTestMessenger(t, ms, us, mailer)
	n, err := m.runOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"u1@x.com"}, mailer.sentTo())
	ms.AssertExpectations(t)
}

func TestRunOnceMarksFailedWhenSendFails(t *testing.T) {
	u := &domain.User{ID: uuid.New(), Username: "u1", Email: "u1@x.com", Active: true}
	msg := outboxRow(u.ID, domain.MessageKindLoginCode)

	ms := &mockMessageStore{}
	us := &mockUserStore{}
	mailer := &fakeMailer{fail: true}
	ms.On("ClaimBatch", mock.Anything, mock.Anything, mock.Anything).Return([]domain.Message{msg}, nil)
	us.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	ms.On("Finalize", mock.Anything, msg.ID, domain.MessageStatusFailed).Return(nil)

	m, _ := newTestMessenger(t, ms, us, mailer)
	_, err := m.runOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, mailer.calls, "send is retried before the row is marked Failed")
	ms.AssertExpectations(t)
}

func TestRunOnceLeavesRowSendingWhenUserMissing(t *testing.T) {
	msg := outboxRow(uuid.New(), domain.MessageKindActiveCode)

	ms := &mockMessageStore{}
	us := &mockUserStore{}
	ms.On("ClaimBatch", mock.Anything, mock.Anything, mock.Anything).Return([]domain.Message{msg}, nil)
	us.On("GetByID", mock.Anything, msg.UserID).Return(nil, domain.ErrNotFound)

	m, _ := newTestMessenger(t, ms, us, &fakeMailer{})
	_, err := m.runOnce(context.Background())

	require.NoError(t, err)
	// No Finalize call: the claim timeout reclaims the row later.
	ms.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunOnceSurfacesClaimError(t *testing.T) {
	ms := &mockMessageStore{}
	ms.On("ClaimBatch", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	m, _ := newTestMessenger(t, ms, &mockUserStore{}, &fakeMailer{})
	_, err := m.runOnce(context.Background())
	assert.Error(t, err)
}

// --- Run ---

func TestRunWakesOnNotify(t *testing.T) {
	ms := &mockMessageStore{}
	var mu sync.Mutex
	claims := 0
	ms.On("ClaimBatch", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			mu.Lock()
			claims++
			mu.Unlock()
		}).
		Return(nil, nil)

	m, notify := newTestMessenger(t, ms, &mockUserStore{}, &fakeMailer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	claimCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return claims
	}
	require.Eventually(t, func() bool { return claimCount() == 1 }, time.Second, 5*time.Millisecond)

	// Poll interval is an hour; only the wake signal can cause another claim.
	notify.Notify()
	require.Eventually(t, func() bool { return claimCount() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}
