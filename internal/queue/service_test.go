package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/concert-reservations/internal/clock"
	"github.com/robertarktes/concert-reservations/internal/domain"
	"github.com/robertarktes/concert-reservations/internal/observability"
)

type fakeTokenStore struct {
	mu        sync.Mutex
	seq       int64
	tokens    map[uuid.UUID]domain.QueueToken
	insertErr error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[uuid.UUID]domain.QueueToken)}
}

func (f *fakeTokenStore) GetByToken(_ context.Context, token string) (domain.QueueToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.Token == token {
			return t, nil
		}
	}
	return domain.QueueToken{}, domain.ErrNotFound
}

func (f *fakeTokenStore) GetActiveByUser(_ context.Context, userID uuid.UUID) (domain.QueueToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.UserID == userID && t.Status != domain.TokenExpired {
			return t, nil
		}
	}
	return domain.QueueToken{}, domain.ErrNotFound
}

func (f *fakeTokenStore) Insert(_ context.Context, token domain.QueueToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.tokens[token.ID] = token
	return nil
}

func (f *fakeTokenStore) CompareAndSetStatus(_ context.Context, tokenID uuid.UUID, expected, next domain.TokenStatus, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[tokenID]
	if !ok || t.Status != expected {
		return domain.ErrConflict
	}
	t.Status = next
	if expiresAt != nil {
		t.ExpiresAt = expiresAt
	}
	f.tokens[tokenID] = t
	return nil
}

func (f *fakeTokenStore) NextQueueOrder(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return f.seq, nil
}

func (f *fakeTokenStore) ListWaitingOrdered(_ context.Context, limit int) ([]domain.QueueToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var waiting []domain.QueueToken
	for _, t := range f.tokens {
		if t.Status == domain.TokenWaiting {
			waiting = append(waiting, t)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		if waiting[i].QueueOrder != waiting[j].QueueOrder {
			return waiting[i].QueueOrder < waiting[j].QueueOrder
		}
		return waiting[i].IssuedAt.Before(waiting[j].IssuedAt)
	})
	if len(waiting) > limit {
		waiting = waiting[:limit]
	}
	return waiting, nil
}

func (f *fakeTokenStore) ListActiveExpired(_ context.Context, now time.Time) ([]domain.QueueToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.QueueToken
	for _, t := range f.tokens {
		if t.Status == domain.TokenActive && t.ExpiresAt != nil && !now.Before(*t.ExpiresAt) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTokenStore) CountActive(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.Status == domain.TokenActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeTokenStore) CountWaitingBefore(_ context.Context, queueOrder int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.Status == domain.TokenWaiting && t.QueueOrder < queueOrder {
			n++
		}
	}
	return n, nil
}

func (f *fakeTokenStore) byValue(token string) domain.QueueToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.Token == token {
			return t
		}
	}
	return domain.QueueToken{}
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store *fakeTokenStore, maxActive int) *Service {
	return NewService(store, clock.NewFixed(testNow), Config{
		MaxActive:   maxActive,
		SessionTTL:  10 * time.Minute,
		WaitPerSlot: 10 * time.Second,
	}, observability.NewNopLogger())
}

func TestService_IssueToken(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store, 5)
	userID := uuid.New()

	token, err := svc.IssueToken(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token == "" {
		t.Fatal("expected a token value")
	}

	stored := store.byValue(token)
	if stored.Status != domain.TokenWaiting {
		t.Errorf("expected WAITING, got %s", stored.Status)
	}
	if stored.QueueOrder != 1 {
		t.Errorf("expected queue order 1, got %d", stored.QueueOrder)
	}

	_, err = svc.IssueToken(context.Background(), userID)
	if !errors.Is(err, domain.ErrDuplicateToken) {
		t.Errorf("expected ErrDuplicateToken, got %v", err)
	}
}

func TestService_IssueToken_RaceOnInsert(t *testing.T) {
	// A double submit can pass the pre-check on both requests; the loser's
	// insert then trips the one-live-token-per-user index and must surface
	// as a duplicate, not an internal error.
	store := newFakeTokenStore()
	store.insertErr = domain.ErrDuplicateToken
	svc := newTestService(store, 5)

	_, err := svc.IssueToken(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrDuplicateToken) {
		t.Errorf("expected ErrDuplicateToken, got %v", err)
	}
}

func TestService_IssueToken_AfterExpiry(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store, 5)
	userID := uuid.New()

	token, err := svc.IssueToken(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Release(context.Background(), token); err != nil {
		t.Fatal(err)
	}

	// Once the first token is EXPIRED the user may queue again.
	if _, err := svc.IssueToken(context.Background(), userID); err != nil {
		t.Fatalf("expected reissue to succeed, got %v", err)
	}
}

func TestService_GetTokenInfo(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store, 5)

	_, err := svc.GetTokenInfo(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	first := uuid.New()
	second := uuid.New()
	if _, err := svc.IssueToken(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.IssueToken(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	info, err := svc.GetTokenInfo(context.Background(), second)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if info.Status != domain.TokenWaiting {
		t.Errorf("expected WAITING, got %s", info.Status)
	}
	if info.QueueOrder != 2 {
		t.Errorf("expected queue order 2, got %d", info.QueueOrder)
	}
	// One token ahead plus the user's own slot.
	if info.RemainingWait != 20*time.Second {
		t.Errorf("expected 20s wait estimate, got %v", info.RemainingWait)
	}
}

func TestService_ValidateToken(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store, 1)

	result, err := svc.ValidateToken(context.Background(), "no-such-token")
	if err != nil {
		t.Fatal(err)
	}
	if result != NotAvailable {
		t.Errorf("unknown token: expected NOT_AVAILABLE, got %s", result)
	}

	userID := uuid.New()
	token, err := svc.IssueToken(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}

	result, _ = svc.ValidateToken(context.Background(), token)
	if result != NotAvailable {
		t.Errorf("waiting token: expected NOT_AVAILABLE, got %s", result)
	}

	if err := svc.Promote(context.Background()); err != nil {
		t.Fatal(err)
	}
	result, _ = svc.ValidateToken(context.Background(), token)
	if result != Valid {
		t.Errorf("active token: expected VALID, got %s", result)
	}

	stored := store.byValue(token)
	if stored.ExpiresAt == nil || !stored.ExpiresAt.Equal(testNow.Add(10*time.Minute)) {
		t.Errorf("expected expiry now+10m, got %v", stored.ExpiresAt)
	}

	// A session expiry in the past makes the token unusable even while ACTIVE.
	past := testNow.Add(-time.Minute)
	store.mu.Lock()
	tok := store.tokens[stored.ID]
	tok.ExpiresAt = &past
	store.tokens[stored.ID] = tok
	store.mu.Unlock()

	result, _ = svc.ValidateToken(context.Background(), token)
	if result != NotAvailable {
		t.Errorf("stale active token: expected NOT_AVAILABLE, got %s", result)
	}
}

func TestService_Promote_FIFOWithinCapacity(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store, 2)

	users := make([]uuid.UUID, 4)
	tokens := make([]string, 4)
	for i := range users {
		users[i] = uuid.New()
		tok, err := svc.IssueToken(context.Background(), users[i])
		if err != nil {
			t.Fatal(err)
		}
		tokens[i] = tok
	}

	if err := svc.Promote(context.Background()); err != nil {
		t.Fatal(err)
	}

	for i, tok := range tokens {
		stored := store.byValue(tok)
		want := domain.TokenWaiting
		if i < 2 {
			want = domain.TokenActive
		}
		if stored.Status != want {
			t.Errorf("token %d: expected %s, got %s", i, want, stored.Status)
		}
	}

	// No free capacity: another pass promotes nothing.
	if err := svc.Promote(context.Background()); err != nil {
		t.Fatal(err)
	}
	active, _ := store.CountActive(context.Background())
	if active != 2 {
		t.Errorf("expected 2 active after second promote, got %d", active)
	}

	// Releasing one slot lets exactly the next token in line through.
	if err := svc.Release(context.Background(), tokens[0]); err != nil {
		t.Fatal(err)
	}
	if err := svc.Promote(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := store.byValue(tokens[2]).Status; got != domain.TokenActive {
		t.Errorf("expected third token ACTIVE, got %s", got)
	}
	if got := store.byValue(tokens[3]).Status; got != domain.TokenWaiting {
		t.Errorf("expected fourth token still WAITING, got %s", got)
	}
}

func TestService_Release_Idempotent(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store, 1)
	userID := uuid.New()

	token, err := svc.IssueToken(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Promote(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := svc.Release(context.Background(), token); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := svc.Release(context.Background(), token); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
	if err := svc.Release(context.Background(), "unknown"); err != nil {
		t.Fatalf("unknown token release should be a no-op, got %v", err)
	}

	if got := store.byValue(token).Status; got != domain.TokenExpired {
		t.Errorf("expected EXPIRED, got %s", got)
	}
}

func TestService_ExpireOverdue(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store, 2)

	fresh := uuid.New()
	stale := uuid.New()
	freshTok, _ := svc.IssueToken(context.Background(), fresh)
	staleTok, _ := svc.IssueToken(context.Background(), stale)
	if err := svc.Promote(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Age one of the sessions past its window.
	past := testNow.Add(-time.Second)
	id := store.byValue(staleTok).ID
	store.mu.Lock()
	tok := store.tokens[id]
	tok.ExpiresAt = &past
	store.tokens[id] = tok
	store.mu.Unlock()

	if err := svc.ExpireOverdue(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := store.byValue(staleTok).Status; got != domain.TokenExpired {
		t.Errorf("expected stale token EXPIRED, got %s", got)
	}
	if got := store.byValue(freshTok).Status; got != domain.TokenActive {
		t.Errorf("expected fresh token ACTIVE, got %s", got)
	}
}
