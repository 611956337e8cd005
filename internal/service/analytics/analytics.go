// Package analytics computes the dashboard report. Nothing is cached; every
// call reads the task store and the ledger afresh.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/internal/service/ledger"
	"ventureops/pkg/rbac"
)

// WeeklyWindowDays is the length of the trailing activity window, today included.
const WeeklyWindowDays = 7

type DayActivity struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
}

type Report struct {
	TasksCompleted   int            `json:"tasks_completed"`
	TotalTasks       int            `json:"total_tasks"`
	TasksByStatus    map[string]int `json:"tasks_by_status"`
	TotalHoursLogged float64        `json:"total_hours_logged"`
	ActiveTimers     int            `json:"active_timers"`
	WeeklyActivity   []DayActivity  `json:"weekly_activity"`
	CompletionRate   float64        `json:"completion_rate"`
}

type Service struct {
	tasks  repository.TaskRepository
	ledger *ledger.Ledger
	now    func() time.Time
}

func NewService(tasks repository.TaskRepository, l *ledger.Ledger) *Service {
	return &Service{tasks: tasks, ledger: l, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Round2 rounds to two decimals, halves away from zero (2.125 -> 2.13),
// not half-to-even.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Dashboard builds the report over p's task scope.
func (s *Service) Dashboard(ctx context.Context, p rbac.Principal) (Report, error) {
	scope := rbac.ScopeFor(p, rbac.ResourceTask)

	counts, err := s.tasks.CountTasksByStatus(ctx, scope)
	if err != nil {
		return Report{}, fmt.Errorf("count tasks: %w", err)
	}
	report := Report{TasksByStatus: make(map[string]int, len(counts))}
	for status, n := range counts {
		if n == 0 {
			continue
		}
		report.TasksByStatus[string(status)] = n
		report.TotalTasks += n
	}
	report.TasksCompleted = counts[model.StatusCompleted]
	if report.TotalTasks > 0 {
		report.CompletionRate = Round2(float64(report.TasksCompleted) / float64(report.TotalTasks) * 100)
	}

	minutes, err := s.ledger.SumMinutes(ctx, repository.TimeLogFilter{Scope: scope})
	if err != nil {
		return Report{}, fmt.Errorf("sum minutes: %w", err)
	}
	report.TotalHoursLogged = Round2(float64(minutes) / 60)

	if report.ActiveTimers, err = s.tasks.CountActiveTimers(ctx, scope); err != nil {
		return Report{}, fmt.Errorf("count active timers: %w", err)
	}

	if report.WeeklyActivity, err = s.weekly(ctx, scope); err != nil {
		return Report{}, err
	}
	return report, nil
}

func (s *Service) weekly(ctx context.Context, scope rbac.Scope) ([]DayActivity, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(WeeklyWindowDays - 1))
	until := today.AddDate(0, 0, 1)

	logs, err := s.ledger.List(ctx, repository.TimeLogFilter{Scope: scope, Since: &since})
	if err != nil {
		return nil, fmt.Errorf("list weekly logs: %w", err)
	}
	perDay := make(map[string]int)
	for _, l := range logs {
		start := l.StartTime.UTC()
		if !start.Before(until) {
			continue
		}
		perDay[start.Format("2006-01-02")] += l.DurationMinutes
	}

	days := make([]DayActivity, 0, len(perDay))
	for day, m := range perDay {
		if m == 0 {
			continue
		}
		days = append(days, DayActivity{Date: day, Hours: Round2(float64(m) / 60)})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}
