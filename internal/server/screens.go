package server

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/history"
	"github.com/aristath/screener/internal/jobs"
	"github.com/aristath/screener/internal/screener"
)

// ScreenService bridges the HTTP layer, the job manager and the screening
// pipeline: it validates screen requests, submits them as background jobs
// and records finished runs in the history store.
type ScreenService struct {
	pipeline *screener.Pipeline
	manager  *jobs.Manager
	runs     *history.Store
	log      zerolog.Logger
}

// NewScreenService creates a new screen service
func NewScreenService(pipeline *screener.Pipeline, manager *jobs.Manager, runs *history.Store, log zerolog.Logger) *ScreenService {
	return &ScreenService{
		pipeline: pipeline,
		manager:  manager,
		runs:     runs,
		log:      log.With().Str("component", "screens").Logger(),
	}
}

// Create validates a screen request and submits it as a background job.
// Validation failures reject the request before any job enters the table;
// they are the only way submission can fail.
func (s *ScreenService) Create(strategyName string, sctx screener.Context) (string, error) {
	if err := s.pipeline.Validate(strategyName, sctx); err != nil {
		return "", err
	}

	fingerprint, err := screener.Fingerprint(strategyName, sctx)
	if err != nil {
		return "", err
	}

	jobID := s.manager.Submit(strategyName, func(jobID string, cancelled jobs.CancelCheck, report jobs.ProgressFunc) ([]string, error) {
		result, err := s.pipeline.Execute(context.Background(), strategyName, sctx,
			func() bool { return cancelled() },
			func(percent int, message string) { report(percent, message) },
		)

		s.recordRun(jobID, strategyName, fingerprint, result, err)

		if errors.Is(err, screener.ErrCancelled) {
			return nil, jobs.ErrCancelled
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	})

	return jobID, nil
}

// recordRun persists the run outcome; history failures are logged, never
// propagated into the job result.
func (s *ScreenService) recordRun(jobID, strategy, fingerprint string, result []string, runErr error) {
	if s.runs == nil {
		return
	}

	run := history.Run{
		JobID:       jobID,
		Strategy:    strategy,
		Fingerprint: fingerprint,
	}
	switch {
	case runErr == nil:
		run.Status = string(jobs.StatusCompleted)
		run.Candidates = len(result)
		run.Result = result
	case errors.Is(runErr, screener.ErrCancelled):
		run.Status = string(jobs.StatusCancelled)
	default:
		run.Status = string(jobs.StatusFailed)
		run.Message = runErr.Error()
	}

	if err := s.runs.Record(run); err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to record run history")
	}
}

// Status returns a job snapshot
func (s *ScreenService) Status(jobID string) (jobs.Job, error) {
	return s.manager.Status(jobID)
}

// Cancel requests cancellation of a job. The bool is false when the job was
// already terminal.
func (s *ScreenService) Cancel(jobID string) (bool, error) {
	return s.manager.Cancel(jobID)
}
