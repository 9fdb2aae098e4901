package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/kotobalab/kotoba-backend/internal/domain"
	domainjobs "github.com/kotobalab/kotoba-backend/internal/domain/jobs"
	"github.com/kotobalab/kotoba-backend/internal/data/repos/testutil"
	"github.com/kotobalab/kotoba-backend/internal/pkg/dbctx"
)

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewJobRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	now := time.Now().UTC()

	queued := &types.JobRun{
		ID:        uuid.New(),
		JobType:   domainjobs.JobTypeRelationBuild,
		Status:    domainjobs.JobStatusQueued,
		Stage:     "queued",
		Payload:   datatypes.JSON([]byte(`{}`)),
		Result:    datatypes.JSON([]byte(`{}`)),
		CreatedAt: now.Add(-3 * time.Hour),
		UpdatedAt: now.Add(-3 * time.Hour),
	}
	failedRetryable := &types.JobRun{
		ID:          uuid.New(),
		JobType:     domainjobs.JobTypeRelationBuild,
		Status:      domainjobs.JobStatusFailed,
		Stage:       "failed",
		Attempts:    1,
		LastErrorAt: ptrTime(now.Add(-2 * time.Hour)),
		Payload:     datatypes.JSON([]byte(`{}`)),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now.Add(-2 * time.Hour),
	}

	if _, err := repo.Create(dbc, []*types.JobRun{queued, failedRetryable}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(dbc, queued.ID)
	if err != nil || got == nil || got.ID != queued.ID {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}

	// Oldest runnable first.
	claimed, err := repo.ClaimNextRunnable(dbc, 5, 30*time.Second, 30*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed == nil || claimed.ID != queued.ID {
		t.Fatalf("expected oldest queued job claimed, got %v", claimed)
	}

	after, err := repo.GetByID(dbc, queued.ID)
	if err != nil {
		t.Fatalf("GetByID after claim: %v", err)
	}
	if after.Status != domainjobs.JobStatusRunning || after.Attempts != 1 {
		t.Fatalf("claim must set running/attempts: %+v", after)
	}

	// Guarded updates refuse to touch cancelled jobs.
	if err := repo.UpdateFields(dbc, queued.ID, map[string]interface{}{"status": domainjobs.JobStatusCancelled}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	ok, err := repo.UpdateFieldsUnlessStatus(dbc, queued.ID, []string{domainjobs.JobStatusCancelled}, map[string]interface{}{
		"progress": 50,
	})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if ok {
		t.Fatalf("update must be rejected for cancelled job")
	}

	status, err := repo.GetStatus(dbc, queued.ID)
	if err != nil || status != domainjobs.JobStatusCancelled {
		t.Fatalf("GetStatus: err=%v status=%q", err, status)
	}

	recent, err := repo.ListRecent(dbc, domainjobs.JobTypeRelationBuild, 10)
	if err != nil || len(recent) < 2 {
		t.Fatalf("ListRecent: err=%v len=%d", err, len(recent))
	}
}

func TestClaimSkipsExhaustedFailures(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewJobRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	now := time.Now().UTC()
	exhausted := &types.JobRun{
		ID:          uuid.New(),
		JobType:     domainjobs.JobTypeRelationBuild,
		Status:      domainjobs.JobStatusFailed,
		Stage:       "failed",
		Attempts:    5,
		LastErrorAt: ptrTime(now.Add(-1 * time.Hour)),
		Payload:     datatypes.JSON([]byte(`{}`)),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now.Add(-1 * time.Hour),
		UpdatedAt:   now.Add(-1 * time.Hour),
	}
	if _, err := repo.Create(dbc, []*types.JobRun{exhausted}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(dbc, 5, 30*time.Second, 30*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed != nil && claimed.ID == exhausted.ID {
		t.Fatalf("job past its attempt budget must not be claimed")
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
