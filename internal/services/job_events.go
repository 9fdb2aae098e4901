package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/kotobalab/kotoba-backend/internal/domain"
	"github.com/kotobalab/kotoba-backend/internal/platform/envutil"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
)

// JobEvent is the wire shape published on the job events channel. Pollers of
// the status endpoint see the same data; this channel just removes the poll.
type JobEvent struct {
	JobID    string `json:"job_id"`
	JobType  string `json:"job_type"`
	Event    string `json:"event"`
	Stage    string `json:"stage,omitempty"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	At       string `json:"at"`
}

// RedisJobEvents publishes job lifecycle events to a Redis channel. It
// implements runtime.Notifier; a nil *RedisJobEvents is valid and silently
// drops events, so the worker runs fine without Redis.
type RedisJobEvents struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisJobEventsFromEnv returns (nil, nil) when REDIS_ADDR is unset.
func NewRedisJobEventsFromEnv(baseLog *logger.Logger) (*RedisJobEvents, error) {
	addr := strings.TrimSpace(envutil.Str("REDIS_ADDR", ""))
	if addr == "" {
		return nil, nil
	}
	channel := strings.TrimSpace(envutil.Str("REDIS_JOB_CHANNEL", "job_events"))

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisJobEvents{
		log:     baseLog.With("service", "job_events"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (p *RedisJobEvents) publish(ev JobEvent) {
	if p == nil || p.rdb == nil {
		return
	}
	ev.At = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		p.log.Warn("job event publish failed", "error", err)
	}
}

func (p *RedisJobEvents) JobProgress(job *types.JobRun, stage string, progress int, message string) {
	if job == nil {
		return
	}
	p.publish(JobEvent{
		JobID:    job.ID.String(),
		JobType:  job.JobType,
		Event:    "progress",
		Stage:    stage,
		Progress: progress,
		Message:  message,
	})
}

func (p *RedisJobEvents) JobFailed(job *types.JobRun, stage string, errorMessage string) {
	if job == nil {
		return
	}
	p.publish(JobEvent{
		JobID:   job.ID.String(),
		JobType: job.JobType,
		Event:   "failed",
		Stage:   stage,
		Error:   errorMessage,
	})
}

func (p *RedisJobEvents) JobDone(job *types.JobRun) {
	if job == nil {
		return
	}
	p.publish(JobEvent{
		JobID:    job.ID.String(),
		JobType:  job.JobType,
		Event:    "done",
		Stage:    job.Stage,
		Progress: 100,
	})
}

// Close releases the Redis connection.
func (p *RedisJobEvents) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
