package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kotobalab/kotoba-backend/internal/data/repos/jobs"
	types "github.com/kotobalab/kotoba-backend/internal/domain"
	domainjobs "github.com/kotobalab/kotoba-backend/internal/domain/jobs"
	"github.com/kotobalab/kotoba-backend/internal/pkg/dbctx"
)

// Notifier receives job lifecycle events for live status fan-out. A nil
// notifier is valid and drops events.
type Notifier interface {
	JobProgress(job *types.JobRun, stage string, progress int, message string)
	JobFailed(job *types.JobRun, stage string, errorMessage string)
	JobDone(job *types.JobRun)
}

/*
Context is the execution contract between the job system and pipeline code:
it wraps the claimed job_run row, the database handle, and the only
sanctioned ways to report progress or terminate execution. Pipelines never
write job_run fields directly.

All lifecycle writes go through UpdateFieldsUnlessStatus guarded on
"cancelled", so a cancel request is never overwritten by a late update.
*/
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    jobs.JobRunRepo
	Notify  Notifier
	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo jobs.JobRunRepo, notify Notifier) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	_ = c.decodePayload()
	return c
}

// decodePayload parses Job.Payload into a map. A decode failure leaves an
// empty map and returns the error; handlers validate required fields anyway.
func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// Payload returns the decoded payload map, never nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// UnmarshalPayload decodes the raw payload JSON into a typed config struct.
func (c *Context) UnmarshalPayload(out any) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(c.Job.Payload, out)
}

// Cancelled re-reads the persisted status; pipelines poll it between work
// units for cooperative cancellation.
func (c *Context) Cancelled() bool {
	if c.Job == nil || c.Job.ID == uuid.Nil || c.Repo == nil {
		return false
	}
	status, err := c.Repo.GetStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID)
	if err != nil {
		return false
	}
	return status == domainjobs.JobStatusCancelled
}

// Progress publishes a non-terminal status update: stage/progress/message
// plus heartbeat, guarded against cancelled jobs, mirrored in memory, and
// forwarded to the notifier.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	ctx := c.ctx()
	now := time.Now()

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Job.ID, []string{domainjobs.JobStatusCancelled}, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobProgress(c.Job, stage, pct, msg)
	}
}

// SetResult snapshots an intermediate result payload without changing status,
// so status polls can expose running aggregates.
func (c *Context) SetResult(result any) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	b, err := json.Marshal(result)
	if err != nil {
		return
	}
	res := datatypes.JSON(b)
	ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.ctx()}, c.Job.ID, []string{domainjobs.JobStatusCancelled}, map[string]interface{}{
		"result": res,
	})
	if ok {
		c.Job.Result = res
	}
}

// Fail marks the run terminally failed. Rejected silently if the job was
// cancelled first.
func (c *Context) Fail(stage string, err error) {
	if c == nil {
		return
	}
	ctx := c.ctx()
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Job.ID, []string{domainjobs.JobStatusCancelled}, map[string]interface{}{
			"status":        domainjobs.JobStatusFailed,
			"stage":         stage,
			"message":       "",
			"error":         msg,
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = domainjobs.JobStatusFailed
		c.Job.Stage = stage
		c.Job.Message = ""
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobFailed(c.Job, stage, msg)
	}
}

// Succeed marks the run terminally succeeded and persists the final result.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	ctx := c.ctx()
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Job.ID, []string{domainjobs.JobStatusCancelled}, map[string]interface{}{
			"status":       domainjobs.JobStatusSucceeded,
			"stage":        finalStage,
			"progress":     100,
			"message":      "",
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = domainjobs.JobStatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Message = ""
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobDone(c.Job)
	}
}

func (c *Context) ctx() context.Context {
	if c.Ctx != nil {
		return c.Ctx
	}
	return context.Background()
}
