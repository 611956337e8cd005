package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/rbac"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ventureops.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func seedVenture(t *testing.T, store *Store, name string) int {
	t.Helper()
	v := model.Venture{Name: name}
	if err := store.CreateVenture(context.Background(), &v); err != nil {
		t.Fatalf("create venture: %v", err)
	}
	return v.ID
}

func seedUser(t *testing.T, store *Store, empID string, role rbac.Role, ventureID *int) model.User {
	t.Helper()
	u := model.User{
		EmpID:        empID,
		FullName:     "User " + empID,
		PasswordHash: "x",
		Role:         role,
		VentureID:    ventureID,
		IsActive:     true,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(" "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestCreateTasksMaterializesVentureAndAssignee(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	v1 := seedVenture(t, store, "north")
	v2 := seedVenture(t, store, "south")
	manager := seedUser(t, store, "M1", rbac.RoleManager, &v1)
	emp := seedUser(t, store, "E1", rbac.RoleEmployee, &v2)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	spec := model.TaskSpec{Title: "Audit"}
	tasks, err := store.CreateTasks(ctx, []model.Task{
		spec.NewTask(manager.ID, &emp.ID, now),
		spec.NewTask(manager.ID, nil, now),
	})
	if err != nil {
		t.Fatalf("create tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(tasks))
	}
	if tasks[0].VentureID == nil || *tasks[0].VentureID != v2 {
		t.Fatalf("assigned venture = %v, want %d", tasks[0].VentureID, v2)
	}
	if tasks[0].Assignee == nil || tasks[0].Assignee.FullName != emp.FullName {
		t.Fatalf("assignee = %+v, want %q", tasks[0].Assignee, emp.FullName)
	}
	if tasks[1].VentureID == nil || *tasks[1].VentureID != v1 {
		t.Fatalf("unassigned venture = %v, want creator venture %d", tasks[1].VentureID, v1)
	}
	if tasks[0].Status != model.StatusAssigned || tasks[0].Priority != model.PriorityMedium {
		t.Fatalf("defaults = %s/%s", tasks[0].Status, tasks[0].Priority)
	}
	if !tasks[0].CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want %v", tasks[0].CreatedAt, now)
	}
}

func TestCreateTasksIsAtomic(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	admin := seedUser(t, store, "A1", rbac.RoleAdmin, nil)
	missing := 999

	now := time.Now().UTC()
	spec := model.TaskSpec{Title: "Broken batch"}
	_, err := store.CreateTasks(ctx, []model.Task{
		spec.NewTask(admin.ID, nil, now),
		spec.NewTask(admin.ID, &missing, now),
	})
	if err == nil {
		t.Fatal("expected foreign key failure")
	}
	tasks, err := store.ListTasks(ctx, rbac.Scope{Kind: rbac.ScopeAll}, repository.Page{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("tasks after failed batch = %d, want 0", len(tasks))
	}
}

func TestListTasksAppliesScope(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	v1 := seedVenture(t, store, "v1")
	v2 := seedVenture(t, store, "v2")
	admin := seedUser(t, store, "A1", rbac.RoleAdmin, nil)
	e1 := seedUser(t, store, "E1", rbac.RoleEmployee, &v1)
	e2 := seedUser(t, store, "E2", rbac.RoleEmployee, &v2)

	now := time.Now().UTC()
	spec := model.TaskSpec{Title: "t"}
	if _, err := store.CreateTasks(ctx, []model.Task{
		spec.NewTask(admin.ID, &e1.ID, now),
		spec.NewTask(admin.ID, &e2.ID, now),
		spec.NewTask(admin.ID, &e1.ID, now),
	}); err != nil {
		t.Fatalf("create tasks: %v", err)
	}

	tests := []struct {
		name  string
		scope rbac.Scope
		want  int
	}{
		{name: "all", scope: rbac.Scope{Kind: rbac.ScopeAll}, want: 3},
		{name: "venture", scope: rbac.Scope{Kind: rbac.ScopeVenture, VentureID: v1}, want: 2},
		{name: "subject", scope: rbac.Scope{Kind: rbac.ScopeSubject, UserID: e2.ID}, want: 1},
		{name: "none", scope: rbac.Scope{Kind: rbac.ScopeNone}, want: 0},
	}
	for _, tt := range tests {
		got, err := store.ListTasks(ctx, tt.scope, repository.Page{})
		if err != nil {
			t.Fatalf("%s: list tasks: %v", tt.name, err)
		}
		if len(got) != tt.want {
			t.Fatalf("%s: tasks = %d, want %d", tt.name, len(got), tt.want)
		}
	}

	page, err := store.ListTasks(ctx, rbac.Scope{Kind: rbac.ScopeAll}, repository.Page{Skip: 1, Limit: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].AssigneeID == nil || *page[0].AssigneeID != e2.ID {
		t.Fatalf("page = %+v, want second task", page)
	}
}

func TestTimerLifecycle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	admin := seedUser(t, store, "A1", rbac.RoleAdmin, nil)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tasks, err := store.CreateTasks(ctx, []model.Task{model.TaskSpec{Title: "t"}.NewTask(admin.ID, nil, start)})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	id := tasks[0].ID

	if _, _, err := store.StopTimer(ctx, id, admin.ID, start); !errors.Is(err, repository.ErrTimerIdle) {
		t.Fatalf("stop idle error = %v, want %v", err, repository.ErrTimerIdle)
	}
	running, err := store.StartTimer(ctx, id, admin.ID, start)
	if err != nil {
		t.Fatalf("start timer: %v", err)
	}
	if running.ActiveTimerStart == nil || !running.ActiveTimerStart.Equal(start) {
		t.Fatalf("active_timer_start = %v, want %v", running.ActiveTimerStart, start)
	}
	if _, err := store.StartTimer(ctx, id, admin.ID, start.Add(time.Minute)); !errors.Is(err, repository.ErrTimerRunning) {
		t.Fatalf("second start error = %v, want %v", err, repository.ErrTimerRunning)
	}

	end := start.Add(90 * time.Second)
	stopped, log, err := store.StopTimer(ctx, id, admin.ID, end)
	if err != nil {
		t.Fatalf("stop timer: %v", err)
	}
	if stopped.ActiveTimerStart != nil {
		t.Fatalf("active_timer_start = %v, want nil", stopped.ActiveTimerStart)
	}
	if log.DurationMinutes != 2 {
		t.Fatalf("duration = %d, want 2", log.DurationMinutes)
	}
	if len(stopped.TimeLogs) != 1 || stopped.TimeLogs[0].ID != log.ID {
		t.Fatalf("time_logs = %+v, want the appended log", stopped.TimeLogs)
	}

	if _, err := store.StartTimer(ctx, 404, admin.ID, end); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("start missing error = %v, want %v", err, repository.ErrNotFound)
	}
	if _, _, err := store.StopTimer(ctx, 404, admin.ID, end); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("stop missing error = %v, want %v", err, repository.ErrNotFound)
	}

	total, err := store.SumMinutes(ctx, repository.TimeLogFilter{Scope: rbac.Scope{Kind: rbac.ScopeAll}})
	if err != nil {
		t.Fatalf("sum minutes: %v", err)
	}
	if total != 2 {
		t.Fatalf("total minutes = %d, want 2", total)
	}
}

func TestUpdateTaskAppliesNulls(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	admin := seedUser(t, store, "A1", rbac.RoleAdmin, nil)
	emp := seedUser(t, store, "E1", rbac.RoleEmployee, nil)
	desc := "initial"
	now := time.Now().UTC()
	tasks, err := store.CreateTasks(ctx, []model.Task{model.TaskSpec{Title: "t", Description: &desc}.NewTask(admin.ID, &emp.ID, now)})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	patch := model.TaskPatch{
		Description: model.Null[string](),
		AssigneeID:  model.Null[int](),
		Progress:    model.Some(40),
	}
	got, err := store.UpdateTask(ctx, tasks[0].ID, patch, admin.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if got.Description != nil || got.AssigneeID != nil || got.Assignee != nil {
		t.Fatalf("nulls not applied: %+v", got)
	}
	if got.Progress != 40 {
		t.Fatalf("progress = %d, want 40", got.Progress)
	}
	if _, err := store.UpdateTask(ctx, 404, patch, admin.ID, now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("update missing error = %v, want %v", err, repository.ErrNotFound)
	}
}

func TestCreateUserDuplicateEmpID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	seedUser(t, store, "E1", rbac.RoleEmployee, nil)
	dup := model.User{EmpID: "E1", FullName: "x", PasswordHash: "x", Role: rbac.RoleEmployee, IsActive: true}
	if err := store.CreateUser(context.Background(), &dup); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate error = %v, want %v", err, repository.ErrDuplicate)
	}
	if _, err := store.LookupAccount(context.Background(), 999); !errors.Is(err, rbac.ErrAccountNotFound) {
		t.Fatalf("lookup error = %v, want %v", err, rbac.ErrAccountNotFound)
	}
}

func TestReviewLeaveOnlyFromPending(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	v := seedVenture(t, store, "v")
	emp := seedUser(t, store, "E1", rbac.RoleEmployee, &v)
	mgr := seedUser(t, store, "M1", rbac.RoleManager, &v)

	leave := model.Leave{
		UserID:    emp.ID,
		LeaveType: model.LeaveSick,
		StartDate: model.NewDate(2026, 4, 1),
		EndDate:   model.NewDate(2026, 4, 2),
		Status:    model.LeavePending,
		AppliedAt: time.Now().UTC(),
	}
	if err := store.CreateLeave(ctx, &leave); err != nil {
		t.Fatalf("create leave: %v", err)
	}
	got, err := store.ReviewLeave(ctx, leave.ID, model.LeaveApproved, mgr.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("review leave: %v", err)
	}
	if got.Status != model.LeaveApproved || got.ReviewedByID == nil || *got.ReviewedByID != mgr.ID {
		t.Fatalf("reviewed leave = %+v", got)
	}
	if got.VentureID == nil || *got.VentureID != v {
		t.Fatalf("leave venture = %v, want %d", got.VentureID, v)
	}
	if _, err := store.ReviewLeave(ctx, leave.ID, model.LeaveRejected, mgr.ID, time.Now().UTC()); !errors.Is(err, repository.ErrStateChanged) {
		t.Fatalf("second review error = %v, want %v", err, repository.ErrStateChanged)
	}
}

func TestAcknowledgeAnnouncementOnce(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	emp := seedUser(t, store, "E1", rbac.RoleEmployee, nil)
	a := model.Announcement{Title: "Hello", Content: "World", IsActive: true, CreatedAt: time.Now().UTC()}
	if err := store.CreateAnnouncement(ctx, &a); err != nil {
		t.Fatalf("create announcement: %v", err)
	}
	ack := model.AnnouncementAck{AnnouncementID: a.ID, UserID: emp.ID, AcknowledgedAt: time.Now().UTC()}
	if err := store.AcknowledgeAnnouncement(ctx, &ack); err != nil {
		t.Fatalf("first ack: %v", err)
	}
	again := ack
	if err := store.AcknowledgeAnnouncement(ctx, &again); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("second ack error = %v, want %v", err, repository.ErrDuplicate)
	}
}

func TestInsertActivityDedupesEventID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	a := model.Activity{
		EventID:    "evt-1",
		TaskID:     7,
		ActorID:    1,
		Kind:       "timer.started",
		Payload:    json.RawMessage(`{"started_at":"2026-03-02T09:00:00Z"}`),
		OccurredAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	if err := store.InsertActivity(ctx, &a); err != nil {
		t.Fatalf("insert activity: %v", err)
	}
	dup := a
	if err := store.InsertActivity(ctx, &dup); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate error = %v, want %v", err, repository.ErrDuplicate)
	}
	got, err := store.ListTaskActivity(ctx, 7, repository.Page{})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(got) != 1 || got[0].Kind != "timer.started" {
		t.Fatalf("activity = %+v", got)
	}
}
