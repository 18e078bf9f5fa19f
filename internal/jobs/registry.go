package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/rankforge/pkg/logger"
	"github.com/okian/rankforge/pkg/metrics"
)

// TaskFunc is a runnable background task.
type TaskFunc func(ctx context.Context, deps *Deps, args []string) error

// Task is a named background task.
type Task struct {
	Name        string
	Description string
	Run         TaskFunc
}

// Registry holds every known task.
type Registry struct {
	tasks map[string]Task
	order []string
}

// NewRegistry returns a registry with all built-in tasks registered.
func NewRegistry() *Registry {
	r := &Registry{tasks: make(map[string]Task)}

	r.register(Task{"recalculate-pp-status", "reclassify one user's scores under the pp key (args: user mode)", RecalculatePPStatus})
	r.register(Task{"recalculate-score-status", "reclassify one user's scores under the total-score key (args: user mode)", RecalculateScoreStatus})
	r.register(Task{"recalculate-statuses-all", "reclassify every user's scores (args: [exclude-pp])", RecalculateStatusesAll})
	r.register(Task{"recalculate-stats", "recompute one user's weighted aggregates (args: user mode)", RecalculateStats})
	r.register(Task{"recalculate-stats-all", "recompute weighted aggregates for everyone", RecalculateStatsAll})
	r.register(Task{"restore-stats", "rebuild missing stats rows from scores (args: user [remove])", RestoreStats})
	r.register(Task{"update-ranks", "reconcile stored ranks against the leaderboard cache", UpdateRanks})
	r.register(Task{"index-ranks", "rebuild an empty leaderboard index from ground truth (args: [mode])", IndexRanks})
	r.register(Task{"update-ppv1", "refresh legacy ppv1 aggregates for everyone", UpdatePPv1})
	r.register(Task{"recalculate-pp", "recalculate pp of best scores for everyone (args: [sequential|pool|isolated])", RecalculatePP})
	r.register(Task{"recalculate-failed-pp", "retry scores whose pp calculation failed", RecalculateFailedPP})
	r.register(Task{"recalculate-all-scores", "paginated pp sweep over every score", RecalculateAllScores})
	r.register(Task{"change-country", "move a user between country leaderboards (args: user country)", ChangeCountry})
	r.register(Task{"update-site-stats", "push site-wide totals into the cache", UpdateSiteStats})

	return r
}

func (r *Registry) register(t Task) {
	r.tasks[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Get returns the named task.
func (r *Registry) Get(name string) (Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Names lists registered task names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Descriptions maps task names to their descriptions.
func (r *Registry) Descriptions() map[string]string {
	out := make(map[string]string, len(r.tasks))
	for name, t := range r.tasks {
		out[name] = t.Description
	}
	return out
}

// RunTask executes one task, tagging logs with a run id and recording
// run metrics. Task errors are returned, not fatal to the caller.
func (r *Registry) RunTask(ctx context.Context, deps *Deps, name string, args []string) error {
	task, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}

	log := deps.log().Named(name)
	runID := uuid.NewString()
	start := time.Now()

	log.Info(ctx, "running task", logger.String("run_id", runID))
	metrics.RecordJobRun(name)

	err := task.Run(ctx, deps, args)

	elapsed := time.Since(start)
	metrics.ObserveJobDuration(name, elapsed.Seconds())

	if err != nil {
		log.Error(ctx, "task failed",
			logger.String("run_id", runID),
			logger.Error(err),
			logger.Float64("seconds", elapsed.Seconds()),
		)
		return err
	}

	log.Info(ctx, "task done",
		logger.String("run_id", runID),
		logger.Float64("seconds", elapsed.Seconds()),
	)
	return nil
}

// ScheduledTask pairs a task with its run interval.
type ScheduledTask struct {
	Name     string   `json:"name"`
	Interval int      `json:"interval"`
	Args     []string `json:"args"`

	lastRun time.Time
}

// LoadSchedule reads scheduled tasks from a JSON file.
func LoadSchedule(path string) ([]ScheduledTask, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}

	var tasks []ScheduledTask
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("parse schedule file: %w", err)
	}

	for i := range tasks {
		if tasks[i].Interval <= 0 {
			tasks[i].Interval = 60
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Interval < tasks[j].Interval })
	return tasks, nil
}

// Loop tick resolution.
const loopTick = time.Second

// RunLoop drives scheduled tasks until ctx is canceled. Each due task runs
// on its own goroutine; a task due again before its previous run finished
// waits for the next tick after that run completes.
func (r *Registry) RunLoop(ctx context.Context, deps *Deps, scheduled []ScheduledTask) {
	log := deps.log().Named("loop")
	log.Info(ctx, "scheduling tasks", logger.Int("count", len(scheduled)))
	for _, t := range scheduled {
		log.Info(ctx, "scheduled", logger.String("task", t.Name), logger.Int("interval", t.Interval))
	}

	running := make([]bool, len(scheduled))
	done := make(chan int)

	ticker := time.NewTicker(loopTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case i := <-done:
			running[i] = false
		case <-ticker.C:
			for i := range scheduled {
				t := &scheduled[i]
				if running[i] || time.Since(t.lastRun) < time.Duration(t.Interval)*time.Second {
					continue
				}

				t.lastRun = time.Now()
				running[i] = true
				go func(i int, t ScheduledTask) {
					// Errors are already logged by RunTask; the loop
					// simply tries again on the next interval.
					_ = r.RunTask(ctx, deps, t.Name, t.Args)
					select {
					case done <- i:
					case <-ctx.Done():
					}
				}(i, *t)
			}
		}
	}
}
