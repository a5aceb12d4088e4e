package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"commissionflow/internal/platform/querier"
)

const (
	JobIdempotencyPurge = "idempotency_purge"
	JobAuditRetention   = "audit_retention"
)

// RunFunc performs one job and returns details worth keeping in job_runs.
type RunFunc func(context.Context) (any, error)

// Recorder observes finished runs.
type Recorder interface {
	RecordJob(job, status string)
}

// Service runs maintenance jobs on one worker goroutine. Scheduled jobs are
// enqueued every interval; runs are recorded in job_runs when a database is
// configured.
type Service struct {
	DB       querier.Querier
	Logger   zerolog.Logger
	Recorder Recorder
	Interval time.Duration

	queue     chan job
	mu        sync.Mutex
	scheduled []job
}

type job struct {
	Type string
	Run  RunFunc
}

func New(db querier.Querier, logger zerolog.Logger, interval time.Duration) *Service {
	return &Service{
		DB:       db,
		Logger:   logger,
		Interval: interval,
		queue:    make(chan job, 32),
	}
}

// Schedule registers a job to run on every tick. Call before Start.
func (s *Service) Schedule(jobType string, run RunFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, job{Type: jobType, Run: run})
}

// Scheduled lists the registered job types in registration order.
func (s *Service) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.scheduled))
	for _, j := range s.scheduled {
		out = append(out, j.Type)
	}
	return out
}

// Start launches the worker and, when Interval is positive, the scheduler.
// Both stop when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Interval > 0 {
		s.Logger.Info().Strs("jobs", s.Scheduled()).Dur("interval", s.Interval).Msg("maintenance scheduler started")
		go s.schedule(ctx, s.Interval)
	}
}

// Enqueue hands a job to the worker. A full queue drops the job.
func (s *Service) Enqueue(jobType string, run RunFunc) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		s.Logger.Warn().Str("jobType", jobType).Msg("job queue full")
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				s.Logger.Warn().Err(err).Str("jobType", j.Type).Msg("job run failed")
			}
		}
	}
}

func (s *Service) schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			jobs := append([]job(nil), s.scheduled...)
			s.mu.Unlock()
			for _, j := range jobs {
				s.Enqueue(j.Type, j.Run)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.DB != nil {
		if err := s.DB.QueryRow(ctx, `
      INSERT INTO job_runs (job_type, status)
      VALUES ($1, $2)
      RETURNING id
    `, j.Type, "running").Scan(&runID); err != nil {
			s.Logger.Warn().Err(err).Msg("job run insert failed")
		}
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	if s.Recorder != nil {
		s.Recorder.RecordJob(j.Type, status)
	}

	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		s.Logger.Warn().Err(marshalErr).Msg("job details marshal failed")
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			s.Logger.Warn().Err(updErr).Msg("job run update failed")
		}
	}
	s.Logger.Debug().Str("jobType", j.Type).Str("status", status).Msg("job finished")
	return details, err
}

// Pruner deletes rows older than a cutoff.
type Pruner func(ctx context.Context, cutoff time.Time) (int64, error)

// Retention builds a job that prunes everything older than maxAge.
func Retention(maxAge time.Duration, prune Pruner) RunFunc {
	return func(ctx context.Context) (any, error) {
		cutoff := time.Now().Add(-maxAge)
		deleted, err := prune(ctx, cutoff)
		return map[string]any{
			"cutoff":  cutoff,
			"deleted": deleted,
		}, err
	}
}
