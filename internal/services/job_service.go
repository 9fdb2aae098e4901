package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	jobsrepo "github.com/kotobalab/kotoba-backend/internal/data/repos/jobs"
	types "github.com/kotobalab/kotoba-backend/internal/domain"
	domainjobs "github.com/kotobalab/kotoba-backend/internal/domain/jobs"
	"github.com/kotobalab/kotoba-backend/internal/jobs/relations"
	"github.com/kotobalab/kotoba-backend/internal/pkg/dbctx"
	apperrors "github.com/kotobalab/kotoba-backend/internal/pkg/errors"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
)

// JobService is the control surface for background jobs: enqueue, inspect,
// cancel. Execution belongs to the worker; this service only writes job_run
// rows and rejects payloads that the handler would immediately fail on.
type JobService struct {
	log  *logger.Logger
	db   *gorm.DB
	repo jobsrepo.JobRunRepo
}

func NewJobService(db *gorm.DB, repo jobsrepo.JobRunRepo, baseLog *logger.Logger) *JobService {
	return &JobService{
		log:  baseLog.With("service", "job_service"),
		db:   db,
		repo: repo,
	}
}

// Start validates the payload for the given job type and enqueues a run.
func (s *JobService) Start(ctx context.Context, jobType string, payload map[string]any) (*types.JobRun, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload not serializable: %v", apperrors.ErrInvalidArgument, err)
	}

	if err := validatePayload(jobType, raw); err != nil {
		return nil, err
	}

	job := &types.JobRun{
		ID:      uuid.New(),
		JobType: jobType,
		Status:  domainjobs.JobStatusQueued,
		Stage:   "queued",
		Payload: datatypes.JSON(raw),
	}
	created, err := s.repo.Create(dbctx.Context{Ctx: ctx}, []*types.JobRun{job})
	if err != nil {
		return nil, err
	}
	s.log.Info("job enqueued", "job_id", job.ID, "job_type", jobType)
	return created[0], nil
}

func validatePayload(jobType string, raw []byte) error {
	switch jobType {
	case domainjobs.JobTypeRelationBuild:
		var cfg relations.BuildConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
		}
		cfg.JobType = jobType
		cfg.ApplyDefaults()
		return cfg.Validate()
	case domainjobs.JobTypeDictionaryImport:
		var cfg relations.ImportConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
		}
		if len(cfg.Entries) == 0 {
			return fmt.Errorf("%w: dictionary_import requires entries", apperrors.ErrInvalidArgument)
		}
		for _, e := range cfg.Entries {
			if e.Kanji == "" && e.Kana == "" {
				return fmt.Errorf("%w: entry missing both kanji and kana", apperrors.ErrInvalidArgument)
			}
		}
		return nil
	case domainjobs.JobTypeClusterAnalysis:
		var cfg relations.ClusterConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown job type %q", apperrors.ErrInvalidArgument, jobType)
	}
}

// Get returns one run by id.
func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	job, err := s.repo.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %s", apperrors.ErrNotFound, id)
	}
	return job, nil
}

// Recent lists the newest runs, optionally filtered by job type.
func (s *JobService) Recent(ctx context.Context, jobType string, limit int) ([]*types.JobRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListRecent(dbctx.Context{Ctx: ctx}, jobType, limit)
}

// Cancel requests cooperative cancellation. Terminal runs are left alone and
// reported as an invalid argument; a running handler notices the flipped
// status at its next checkpoint.
func (s *JobService) Cancel(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	now := time.Now()
	ok, err := s.repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, id, []string{
		domainjobs.JobStatusSucceeded,
		domainjobs.JobStatusFailed,
		domainjobs.JobStatusCancelled,
	}, map[string]interface{}{
		"status":     domainjobs.JobStatusCancelled,
		"stage":      "cancelled",
		"message":    "cancelled by request",
		"locked_at":  nil,
		"updated_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: job is not cancellable", apperrors.ErrInvalidArgument)
	}
	s.log.Info("job cancelled", "job_id", id)
	return s.Get(ctx, id)
}
