package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ventureops/internal/repository"
	"ventureops/internal/testutil"
	"ventureops/pkg/apperr"
)

func TestTimerRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{name: "rounds half up", elapsed: 150 * time.Second, want: 3},
		{name: "rounds down", elapsed: 89 * time.Second, want: 1},
		{name: "under half a minute", elapsed: 20 * time.Second, want: 0},
		{name: "hours", elapsed: 2 * time.Hour, want: 120},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			ctx := context.Background()
			p := testutil.Principal(f.emp)
			task := f.create(t, f.manager, f.emp.ID)[0]

			started, err := f.svc.StartTimer(ctx, p, task.ID)
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			if !started.TimerRunning() || !started.ActiveTimerStart.Equal(f.clock.Now()) {
				t.Fatalf("expected running timer at %v, got %v", f.clock.Now(), started.ActiveTimerStart)
			}

			f.clock.Advance(tt.elapsed)
			stopped, err := f.svc.StopTimer(ctx, p, task.ID)
			if err != nil {
				t.Fatalf("stop: %v", err)
			}
			if stopped.TimerRunning() {
				t.Fatal("timer must be idle after stop")
			}
			if len(stopped.TimeLogs) != 1 {
				t.Fatalf("expected exactly one time log, got %d", len(stopped.TimeLogs))
			}
			entry := stopped.TimeLogs[0]
			if entry.DurationMinutes != tt.want || entry.UserID != f.emp.ID {
				t.Fatalf("unexpected log: %+v", entry)
			}
			if got := entry.EndTime.Sub(entry.StartTime); got != tt.elapsed {
				t.Fatalf("log interval %v, want %v", got, tt.elapsed)
			}
		})
	}
}

func TestStartTwiceIsInvalidState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	p := testutil.Principal(f.emp)
	task := f.create(t, f.manager, f.emp.ID)[0]

	first, err := f.svc.StartTimer(ctx, p, task.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(5 * time.Minute)
	if _, err := f.svc.StartTimer(ctx, p, task.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	after, err := f.svc.Get(ctx, p, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !after.ActiveTimerStart.Equal(*first.ActiveTimerStart) {
		t.Fatalf("failed start changed the timer: %v -> %v", first.ActiveTimerStart, after.ActiveTimerStart)
	}
	if len(after.TimeLogs) != 0 {
		t.Fatalf("failed start wrote %d logs", len(after.TimeLogs))
	}
}

func TestStopIdleIsInvalidState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	p := testutil.Principal(f.emp)
	task := f.create(t, f.manager, f.emp.ID)[0]

	if _, err := f.svc.StopTimer(ctx, p, task.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := f.svc.StartTimer(ctx, p, task.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.StopTimer(ctx, p, task.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := f.svc.StopTimer(ctx, p, task.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state on double stop, got %v", err)
	}
	after, err := f.svc.Get(ctx, p, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(after.TimeLogs) != 1 {
		t.Fatalf("expected one log, got %d", len(after.TimeLogs))
	}
}

func TestTimerAuthorization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, f.manager, f.emp.ID)[0]

	if _, err := f.svc.StartTimer(ctx, testutil.Principal(f.emp2), task.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-assignee employee: expected forbidden, got %v", err)
	}
	if _, err := f.svc.StartTimer(ctx, testutil.Principal(f.outsider), task.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("foreign manager: expected forbidden, got %v", err)
	}
	if _, err := f.svc.StartTimer(ctx, testutil.Principal(f.admin), 9999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.StartTimer(ctx, testutil.Principal(f.manager), task.ID); err != nil {
		t.Fatalf("manager in venture: %v", err)
	}
	stopped, err := f.svc.StopTimer(ctx, testutil.Principal(f.manager), task.ID)
	if err != nil {
		t.Fatalf("manager stop: %v", err)
	}
	if stopped.TimeLogs[0].UserID != f.manager.ID {
		t.Fatalf("log must be attributed to the stopping principal, got %d", stopped.TimeLogs[0].UserID)
	}
}

func TestConcurrentStartAllowsOneRunningTimer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	p := testutil.Principal(f.emp)
	task := f.create(t, f.manager, f.emp.ID)[0]

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		invalid int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.StartTimer(ctx, p, task.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrInvalidState):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || invalid != callers-1 {
		t.Fatalf("expected 1 success and %d rejections, got %d and %d", callers-1, ok, invalid)
	}
	running, err := f.store.CountActiveTimers(ctx, f.adminScope())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if running != 1 {
		t.Fatalf("expected 1 running timer, got %d", running)
	}
}

func TestEndToEndUnassignedTask(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	admin := testutil.Principal(f.admin)

	tasks := f.create(t, f.admin)
	if len(tasks) != 1 || tasks[0].AssigneeID != nil || tasks[0].Assignee != nil {
		t.Fatalf("expected one unassigned task, got %+v", tasks)
	}
	id := tasks[0].ID
	before := len(tasks[0].TimeLogs)

	if _, err := f.svc.StartTimer(ctx, admin, id); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(10 * time.Minute)
	stopped, err := f.svc.StopTimer(ctx, admin, id)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(stopped.TimeLogs) != before+1 || stopped.ActiveTimerStart != nil {
		t.Fatalf("expected one more log and idle timer, got %d logs and %v", len(stopped.TimeLogs), stopped.ActiveTimerStart)
	}

	listed, err := f.svc.List(ctx, admin, repository.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || len(listed[0].TimeLogs) != 1 || listed[0].TimeLogs[0].DurationMinutes != 10 {
		t.Fatalf("list must materialize time logs: %+v", listed)
	}
}
