package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/concert-reservations/internal/domain"
	"github.com/robertarktes/concert-reservations/internal/observability"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fixture wires an in-memory settlement world. The tx runner snapshots state
// before the callback and restores it when the callback errors, mirroring a
// database rollback.
type fixture struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]domain.Reservation
	seats        map[uuid.UUID]domain.Seat
	users        map[uuid.UUID]domain.User
	events       []stagedEvent
	settled      int
}

type stagedEvent struct {
	eventType string
	payload   any
}

func newFixture() *fixture {
	return &fixture{
		reservations: make(map[uuid.UUID]domain.Reservation),
		seats:        make(map[uuid.UUID]domain.Seat),
		users:        make(map[uuid.UUID]domain.User),
	}
}

func (f *fixture) Get(_ context.Context, id uuid.UUID) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return res, nil
}

func (f *fixture) Finalize(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	switch {
	case res.Status == domain.ReservationPaid:
		return domain.ErrReservationAlreadyPaid
	case res.ExpiredAt(testNow):
		return domain.ErrReservationExpired
	}
	res.Status = domain.ReservationPaid
	f.reservations[id] = res

	seat := f.seats[res.SeatID]
	seat.Status = domain.SeatReserved
	f.seats[res.SeatID] = seat
	return nil
}

type seatGetter struct{ f *fixture }

func (g seatGetter) Get(_ context.Context, seatID uuid.UUID) (domain.Seat, error) {
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	seat, ok := g.f.seats[seatID]
	if !ok {
		return domain.Seat{}, domain.ErrNotFound
	}
	return seat, nil
}

type userStore struct{ f *fixture }

func (u userStore) Get(_ context.Context, userID uuid.UUID) (domain.User, error) {
	u.f.mu.Lock()
	defer u.f.mu.Unlock()
	user, ok := u.f.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (u userStore) DebitPoints(_ context.Context, userID uuid.UUID, amount int64) error {
	u.f.mu.Lock()
	defer u.f.mu.Unlock()
	user, ok := u.f.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if user.Points < amount {
		return domain.ErrNotEnoughPoints
	}
	user.Points -= amount
	u.f.users[userID] = user
	return nil
}

func (u userStore) CreditPoints(_ context.Context, userID uuid.UUID, amount int64) error {
	u.f.mu.Lock()
	defer u.f.mu.Unlock()
	user, ok := u.f.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	user.Points += amount
	u.f.users[userID] = user
	return nil
}

type eventOutbox struct{ f *fixture }

func (o eventOutbox) Enqueue(_ context.Context, eventType string, payload any) error {
	o.f.mu.Lock()
	defer o.f.mu.Unlock()
	o.f.events = append(o.f.events, stagedEvent{eventType: eventType, payload: payload})
	return nil
}

type txRunner struct{ f *fixture }

func (t txRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.f.mu.Lock()
	reservations := make(map[uuid.UUID]domain.Reservation, len(t.f.reservations))
	for k, v := range t.f.reservations {
		reservations[k] = v
	}
	seats := make(map[uuid.UUID]domain.Seat, len(t.f.seats))
	for k, v := range t.f.seats {
		seats[k] = v
	}
	users := make(map[uuid.UUID]domain.User, len(t.f.users))
	for k, v := range t.f.users {
		users[k] = v
	}
	events := len(t.f.events)
	t.f.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.f.mu.Lock()
		t.f.reservations = reservations
		t.f.seats = seats
		t.f.users = users
		t.f.events = t.f.events[:events]
		t.f.mu.Unlock()
		return err
	}
	return nil
}

type auditor struct{ f *fixture }

func (a auditor) ReservationSettled(context.Context, domain.Reservation, int64) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	a.f.settled++
	return nil
}

func newTestService(f *fixture) *Service {
	return NewService(f, seatGetter{f}, userStore{f}, eventOutbox{f}, txRunner{f}, auditor{f}, observability.NewNopLogger())
}

func (f *fixture) seed(points, price int64, status domain.ReservationStatus, expiresAt time.Time) (userID, resID uuid.UUID) {
	userID = uuid.New()
	seatID := uuid.New()
	resID = uuid.New()
	f.users[userID] = domain.User{ID: userID, Name: "buyer", Points: points}
	f.seats[seatID] = domain.Seat{ID: seatID, ConcertOptionID: uuid.New(), SeatNo: 7, Price: price, Status: domain.SeatHeld}
	f.reservations[resID] = domain.Reservation{
		ID:        resID,
		UserID:    userID,
		SeatID:    seatID,
		Status:    status,
		CreatedAt: testNow.Add(-time.Minute),
		ExpiresAt: expiresAt,
	}
	return userID, resID
}

func TestService_Pay(t *testing.T) {
	f := newFixture()
	userID, resID := f.seed(50000, 10000, domain.ReservationTempAssigned, testNow.Add(4*time.Minute))
	svc := newTestService(f)

	result, err := svc.Pay(context.Background(), resID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != domain.ReservationPaid {
		t.Errorf("expected PAID result, got %s", result.Status)
	}
	if result.Price != 10000 || result.SeatNo != 7 {
		t.Errorf("unexpected result %+v", result)
	}

	if got := f.users[userID].Points; got != 40000 {
		t.Errorf("expected balance 40000, got %d", got)
	}
	if got := f.reservations[resID].Status; got != domain.ReservationPaid {
		t.Errorf("expected reservation PAID, got %s", got)
	}
	if len(f.events) != 1 {
		t.Fatalf("expected one staged event, got %d", len(f.events))
	}
	if f.events[0].eventType != EventReservationSettled {
		t.Errorf("expected %s event, got %s", EventReservationSettled, f.events[0].eventType)
	}
	ev, ok := f.events[0].payload.(SettledEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", f.events[0].payload)
	}
	if ev.ReservationID != resID || ev.UserID != userID {
		t.Errorf("unexpected event payload %+v", ev)
	}
	if f.settled != 1 {
		t.Errorf("expected one settlement audit, got %d", f.settled)
	}
}

func TestService_Pay_NotEnoughPoints(t *testing.T) {
	f := newFixture()
	userID, resID := f.seed(500, 10000, domain.ReservationTempAssigned, testNow.Add(4*time.Minute))
	svc := newTestService(f)

	_, err := svc.Pay(context.Background(), resID)
	if !errors.Is(err, domain.ErrNotEnoughPoints) {
		t.Fatalf("expected ErrNotEnoughPoints, got %v", err)
	}

	if got := f.users[userID].Points; got != 500 {
		t.Errorf("expected untouched balance, got %d", got)
	}
	if got := f.reservations[resID].Status; got != domain.ReservationTempAssigned {
		t.Errorf("expected reservation still TEMP_ASSIGNED, got %s", got)
	}
	if len(f.events) != 0 {
		t.Errorf("expected no staged events, got %d", len(f.events))
	}
}

func TestService_Pay_Expired_RollsBackDebit(t *testing.T) {
	f := newFixture()
	userID, resID := f.seed(50000, 10000, domain.ReservationTempAssigned, testNow.Add(-time.Minute))
	svc := newTestService(f)

	_, err := svc.Pay(context.Background(), resID)
	if !errors.Is(err, domain.ErrReservationExpired) {
		t.Fatalf("expected ErrReservationExpired, got %v", err)
	}

	// The debit happened inside the transaction and must not survive it.
	if got := f.users[userID].Points; got != 50000 {
		t.Errorf("expected debit rolled back to 50000, got %d", got)
	}
	if len(f.events) != 0 {
		t.Errorf("expected no staged events, got %d", len(f.events))
	}
}

func TestService_Pay_AlreadyPaid(t *testing.T) {
	f := newFixture()
	userID, resID := f.seed(50000, 10000, domain.ReservationPaid, testNow.Add(4*time.Minute))
	svc := newTestService(f)

	_, err := svc.Pay(context.Background(), resID)
	if !errors.Is(err, domain.ErrReservationAlreadyPaid) {
		t.Fatalf("expected ErrReservationAlreadyPaid, got %v", err)
	}
	if got := f.users[userID].Points; got != 50000 {
		t.Errorf("expected untouched balance, got %d", got)
	}
}

func TestService_Pay_ReservationNotFound(t *testing.T) {
	svc := newTestService(newFixture())
	_, err := svc.Pay(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestService_Points(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	f.users[userID] = domain.User{ID: userID, Name: "buyer", Points: 1000}
	svc := newTestService(f)

	balance, err := svc.GetPoints(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if balance != 1000 {
		t.Errorf("expected 1000, got %d", balance)
	}

	balance, err = svc.ChargePoints(context.Background(), userID, 2500)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if balance != 3500 {
		t.Errorf("expected 3500, got %d", balance)
	}

	if _, err := svc.ChargePoints(context.Background(), userID, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero amount, got %v", err)
	}
	if _, err := svc.ChargePoints(context.Background(), userID, -10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative amount, got %v", err)
	}

	if _, err := svc.GetPoints(context.Background(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}
