package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/concert-reservations/internal/adapters/crdb"
	"github.com/robertarktes/concert-reservations/internal/observability"
)

// fakeStore refuses batch reads and marks outside a transaction, mirroring
// the lock scope of SKIP LOCKED.
type fakeStore struct {
	records []crdb.OutboxRecord
	marked  map[uuid.UUID]bool
	inTx    bool
}

func newFakeStore(records ...crdb.OutboxRecord) *fakeStore {
	return &fakeStore{records: records, marked: make(map[uuid.UUID]bool)}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.inTx = true
	defer func() { f.inTx = false }()
	return fn(ctx)
}

func (f *fakeStore) GetUnpublished(_ context.Context, limit int) ([]crdb.OutboxRecord, error) {
	if !f.inTx {
		return nil, errors.New("batch read outside transaction")
	}
	var out []crdb.OutboxRecord
	for _, rec := range f.records {
		if f.marked[rec.ID] {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkPublished(_ context.Context, id uuid.UUID, _ time.Time) error {
	if !f.inTx {
		return errors.New("mark outside transaction")
	}
	f.marked[id] = true
	return nil
}

func (f *fakeStore) OldestUnpublishedAge(context.Context, time.Time) (time.Duration, error) {
	return 0, nil
}

type fakeBroker struct {
	published []string
	failKey   string
}

func (b *fakeBroker) Publish(_ context.Context, key string, _ amqp.Publishing) error {
	if key == b.failKey {
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, key)
	return nil
}

func record(eventType string) crdb.OutboxRecord {
	return crdb.OutboxRecord{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   []byte(`{}`),
		CreatedAt: time.Now(),
		Status:    "NEW",
		DedupeKey: uuid.NewString(),
	}
}

func TestPublisher_RelayPublishesAndMarks(t *testing.T) {
	first := record("reservation.settled")
	second := record("reservation.settled")
	store := newFakeStore(first, second)
	broker := &fakeBroker{}
	p := NewPublisher(store, broker, observability.NewNopLogger())

	p.relay(context.Background())

	if len(broker.published) != 2 {
		t.Fatalf("expected two published events, got %d", len(broker.published))
	}
	if !store.marked[first.ID] || !store.marked[second.ID] {
		t.Error("expected both records marked published")
	}

	// Nothing left for the next pass.
	broker.published = nil
	p.relay(context.Background())
	if len(broker.published) != 0 {
		t.Errorf("expected no republish, got %d", len(broker.published))
	}
}

func TestPublisher_RelayKeepsFailedRecords(t *testing.T) {
	ok := record("reservation.settled")
	failing := record("reservation.failed")
	store := newFakeStore(ok, failing)
	broker := &fakeBroker{failKey: "reservation.failed"}
	p := NewPublisher(store, broker, observability.NewNopLogger())

	p.relay(context.Background())

	if !store.marked[ok.ID] {
		t.Error("expected the accepted record marked published")
	}
	if store.marked[failing.ID] {
		t.Error("expected the rejected record to stay NEW for the next pass")
	}
}
