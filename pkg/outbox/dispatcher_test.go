package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"ventureops/pkg/circuitbreaker"
	"ventureops/pkg/trace"
)

type fakeStore struct {
	mu     sync.Mutex
	events map[int64]*Event
}

func newFakeStore(events ...Event) *fakeStore {
	s := &fakeStore{events: map[int64]*Event{}}
	for i := range events {
		e := events[i]
		if e.Status == "" {
			e.Status = StatusPending
		}
		s.events[e.ID] = &e
	}
	return s
}

func (s *fakeStore) list(status string, limit int) []Event {
	var out []Event
	for id := int64(1); id <= int64(len(s.events)); id++ {
		if e, ok := s.events[id]; ok && e.Status == status && len(out) < limit {
			out = append(out, *e)
		}
	}
	return out
}

func (s *fakeStore) PendingEvents(_ context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(StatusPending, limit), nil
}

func (s *fakeStore) FailedEvents(_ context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(StatusFailed, limit), nil
}

func (s *fakeStore) GetEvent(_ context.Context, id int64) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return Event{}, ErrEventNotFound
	}
	return *e, nil
}

func (s *fakeStore) MarkSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id].Status = StatusSent
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, maxRetries int, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.events[id]
	e.RetryCount++
	if e.RetryCount >= maxRetries {
		e.Status = StatusFailed
	}
	return nil
}

func (s *fakeStore) status(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id].Status
}

type fakePublisher struct {
	err      error
	calls    int
	traceIDs []string
	ids      []string
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, _ string, _ []byte, messageID string) error {
	p.calls++
	p.traceIDs = append(p.traceIDs, trace.FromContext(ctx))
	p.ids = append(p.ids, messageID)
	return p.err
}

func event(id int64, traceID string) Event {
	payload, _ := json.Marshal(map[string]any{"event_id": "evt", "trace_id": traceID})
	return Event{ID: id, EventID: fmt.Sprintf("evt-%d", id), RoutingKey: "task.created", Payload: payload}
}

func TestProcessPendingMarksSent(t *testing.T) {
	t.Parallel()

	store := newFakeStore(event(1, "trace-a"), event(2, ""))
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub, nil, zap.NewNop())

	if sent := d.ProcessPending(context.Background()); sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	if store.status(1) != StatusSent || store.status(2) != StatusSent {
		t.Fatalf("statuses = %s/%s, want sent", store.status(1), store.status(2))
	}
	if pub.traceIDs[0] != "trace-a" {
		t.Fatalf("trace id = %q, want trace-a", pub.traceIDs[0])
	}
	if pub.ids[0] != "evt-1" {
		t.Fatalf("message id = %q, want evt-1", pub.ids[0])
	}
}

func TestProcessPendingParksAfterMaxRetries(t *testing.T) {
	t.Parallel()

	store := newFakeStore(event(1, ""))
	pub := &fakePublisher{err: errors.New("channel closed")}
	breaker := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 100})
	d := NewDispatcher(store, pub, breaker, zap.NewNop()).WithMaxRetries(2)

	d.ProcessPending(context.Background())
	if store.status(1) != StatusPending {
		t.Fatalf("status after first failure = %s, want pending", store.status(1))
	}
	d.ProcessPending(context.Background())
	if store.status(1) != StatusFailed {
		t.Fatalf("status after max retries = %s, want failed", store.status(1))
	}
}

func TestProcessPendingStopsWhenCircuitOpens(t *testing.T) {
	t.Parallel()

	store := newFakeStore(event(1, ""), event(2, ""), event(3, ""))
	pub := &fakePublisher{err: errors.New("broker down")}
	breaker := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 1, Timeout: time.Hour})
	d := NewDispatcher(store, pub, breaker, zap.NewNop())

	d.ProcessPending(context.Background())
	if pub.calls != 1 {
		t.Fatalf("publish calls = %d, want 1 before the circuit opened", pub.calls)
	}
}

func TestReplayFailedEvents(t *testing.T) {
	t.Parallel()

	failed := event(1, "")
	failed.Status = StatusFailed
	store := newFakeStore(failed, event(2, ""))
	pub := &fakePublisher{}
	svc := NewReplayService(store, pub, zap.NewNop())

	n, err := svc.ReplayFailedEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ReplayFailedEvents() error = %v", err)
	}
	if n != 1 || store.status(1) != StatusSent {
		t.Fatalf("replayed = %d status = %s, want 1/sent", n, store.status(1))
	}
	if err := svc.ReplayEvent(context.Background(), 99); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("ReplayEvent(99) error = %v, want %v", err, ErrEventNotFound)
	}
}
