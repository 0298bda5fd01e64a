package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/seatrush/reservation-engine/internal/domain"
	pkgredis "github.com/seatrush/reservation-engine/pkg/redis"
	"github.com/seatrush/reservation-engine/pkg/telemetry"
)

//go:embed scripts/enqueue_job.lua
var enqueueJobScript string

//go:embed scripts/claim_job.lua
var claimJobScript string

//go:embed scripts/complete_job.lua
var completeJobScript string

//go:embed scripts/fail_job.lua
var failJobScript string

//go:embed scripts/cancel_job.lua
var cancelJobScript string

// Script names for caching
const (
	scriptEnqueueJob  = "enqueue_job"
	scriptClaimJob    = "claim_job"
	scriptCompleteJob = "complete_job"
	scriptFailJob     = "fail_job"
	scriptCancelJob   = "cancel_job"
)

// RedisJobRepository implements JobRepository using Redis lists and hashes
type RedisJobRepository struct {
	client    *pkgredis.Client
	queue     string
	retention time.Duration
}

var _ JobRepository = (*RedisJobRepository)(nil)

// NewRedisJobRepository creates a new RedisJobRepository for the named queue
func NewRedisJobRepository(client *pkgredis.Client, queue string, retention time.Duration) *RedisJobRepository {
	if queue == "" {
		queue = "reservations"
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisJobRepository{
		client:    client,
		queue:     queue,
		retention: retention,
	}
}

func (r *RedisJobRepository) waitingKey() string {
	return fmt.Sprintf("jobs:%s:waiting", r.queue)
}

func (r *RedisJobRepository) statsKey() string {
	return fmt.Sprintf("jobs:%s:stats", r.queue)
}

func (r *RedisJobRepository) jobKeyPrefix() string {
	return fmt.Sprintf("job:%s:", r.queue)
}

func (r *RedisJobRepository) jobKey(jobID string) string {
	return r.jobKeyPrefix() + jobID
}

func (r *RedisJobRepository) idemKey(key string) string {
	return fmt.Sprintf("jobs:%s:idem:%s", r.queue, key)
}

// LoadScripts pre-loads all queue Lua scripts into Redis
func (r *RedisJobRepository) LoadScripts(ctx context.Context) error {
	scripts := map[string]string{
		scriptEnqueueJob:  enqueueJobScript,
		scriptClaimJob:    claimJobScript,
		scriptCompleteJob: completeJobScript,
		scriptFailJob:     failJobScript,
		scriptCancelJob:   cancelJobScript,
	}

	for name, script := range scripts {
		if _, err := r.client.LoadScript(ctx, name, script); err != nil {
			return fmt.Errorf("failed to load script %s: %w", name, err)
		}
	}

	return nil
}

// Enqueue adds a job to the queue, deduplicating on idempotency key
func (r *RedisJobRepository) Enqueue(ctx context.Context, job *domain.ReservationJob) (string, bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.job.enqueue")
	defer span.End()

	span.SetAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("event_id", job.Payload.EventID),
	)

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", false, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	keys := []string{
		r.waitingKey(),
		r.jobKey(job.ID),
		r.statsKey(),
		r.idemKey(job.Payload.IdempotencyKey),
	}
	enqueuedAt := job.EnqueuedAt.Format(time.RFC3339Nano)
	args := []interface{}{
		job.ID,                     // ARGV[1]: job id
		string(job.Type),           // ARGV[2]: job type
		string(payload),            // ARGV[3]: payload JSON
		enqueuedAt,                 // ARGV[4]: enqueued_at
		int(r.retention.Seconds()), // ARGV[5]: idem mapping TTL
	}

	result := r.client.EvalWithFallback(ctx, scriptEnqueueJob, enqueueJobScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return "", false, fmt.Errorf("failed to execute enqueue_job script: %w", classifyRedisError(result.Err()))
	}

	values, err := result.Slice()
	if err != nil || len(values) < 2 {
		span.SetStatus(codes.Error, "unexpected script result")
		return "", false, fmt.Errorf("unexpected enqueue_job script result: %v", result.Val())
	}

	enqueued, _ := toInt64(values[0])
	jobID, _ := values[1].(string)

	if enqueued == 0 {
		span.SetAttributes(attribute.Bool("deduped", true))
		span.SetStatus(codes.Ok, "deduped")
		return jobID, true, nil
	}

	span.SetStatus(codes.Ok, "")
	return jobID, false, nil
}

// Claim atomically pops the oldest queued job and flips it to PROCESSING
func (r *RedisJobRepository) Claim(ctx context.Context) (*domain.ReservationJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.job.claim")
	defer span.End()

	keys := []string{r.waitingKey(), r.statsKey()}
	args := []interface{}{
		r.jobKeyPrefix(),
		time.Now().Format(time.RFC3339Nano),
	}

	result := r.client.EvalWithFallback(ctx, scriptClaimJob, claimJobScript, keys, args...)
	if result.Err() != nil {
		if errors.Is(result.Err(), redis.Nil) {
			span.SetStatus(codes.Ok, "empty")
			return nil, nil
		}
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return nil, fmt.Errorf("failed to execute claim_job script: %w", classifyRedisError(result.Err()))
	}

	jobID, ok := result.Val().(string)
	if !ok || jobID == "" {
		span.SetStatus(codes.Ok, "empty")
		return nil, nil
	}

	span.SetAttributes(attribute.String("job_id", jobID))

	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return job, nil
}

// Complete records the terminal result of a processed job
func (r *RedisJobRepository) Complete(ctx context.Context, jobID string, resultJSON string, attempts int) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.job.complete")
	defer span.End()

	span.SetAttributes(attribute.String("job_id", jobID))

	keys := []string{r.jobKey(jobID), r.statsKey()}
	args := []interface{}{
		resultJSON,
		attempts,
		time.Now().Format(time.RFC3339Nano),
		int(r.retention.Seconds()),
	}

	result := r.client.EvalWithFallback(ctx, scriptCompleteJob, completeJobScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return fmt.Errorf("failed to execute complete_job script: %w", classifyRedisError(result.Err()))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Fail records a terminal failure after attempts were exhausted
func (r *RedisJobRepository) Fail(ctx context.Context, jobID string, lastError string, attempts int) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.job.fail")
	defer span.End()

	span.SetAttributes(attribute.String("job_id", jobID))

	keys := []string{r.jobKey(jobID), r.statsKey()}
	args := []interface{}{
		lastError,
		attempts,
		time.Now().Format(time.RFC3339Nano),
		int(r.retention.Seconds()),
	}

	result := r.client.EvalWithFallback(ctx, scriptFailJob, failJobScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return fmt.Errorf("failed to execute fail_job script: %w", classifyRedisError(result.Err()))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Cancel removes a job from the queue while it is still QUEUED
func (r *RedisJobRepository) Cancel(ctx context.Context, jobID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.job.cancel")
	defer span.End()

	span.SetAttributes(attribute.String("job_id", jobID))

	keys := []string{r.waitingKey(), r.jobKey(jobID), r.statsKey()}
	args := []interface{}{
		jobID,
		time.Now().Format(time.RFC3339Nano),
		int(r.retention.Seconds()),
	}

	result := r.client.EvalWithFallback(ctx, scriptCancelJob, cancelJobScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return false, fmt.Errorf("failed to execute cancel_job script: %w", classifyRedisError(result.Err()))
	}

	code, err := result.Int64()
	if err != nil {
		span.SetStatus(codes.Error, "unexpected script result")
		return false, fmt.Errorf("unexpected cancel_job script result: %v", result.Val())
	}

	switch code {
	case 1:
		span.SetStatus(codes.Ok, "cancelled")
		return true, nil
	case 0:
		span.SetStatus(codes.Ok, "not cancellable")
		return false, nil
	default:
		span.SetStatus(codes.Ok, "not found")
		return false, domain.ErrJobNotFound
	}
}

// GetByID retrieves a job record
func (r *RedisJobRepository) GetByID(ctx context.Context, jobID string) (*domain.ReservationJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.job.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("job_id", jobID))

	fields, err := r.client.HGetAll(ctx, r.jobKey(jobID)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get job: %w", classifyRedisError(err))
	}

	if len(fields) == 0 {
		span.SetStatus(codes.Ok, "not found")
		return nil, domain.ErrJobNotFound
	}

	job, err := jobFromHash(fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return job, nil
}

// Stats returns a snapshot of queue counters. The waiting figure comes
// from the list length, the rest from the stats hash.
func (r *RedisJobRepository) Stats(ctx context.Context) (*domain.QueueStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.job.stats")
	defer span.End()

	waiting, err := r.client.LLen(ctx, r.waitingKey()).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read queue length: %w", classifyRedisError(err))
	}

	fields, err := r.client.HGetAll(ctx, r.statsKey()).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read queue stats: %w", classifyRedisError(err))
	}

	stats := &domain.QueueStats{Waiting: waiting}
	stats.Active = parseCounter(fields["active"])
	stats.Completed = parseCounter(fields["completed"])
	stats.Failed = parseCounter(fields["failed"])
	stats.Total = stats.Waiting + stats.Active + stats.Completed + stats.Failed

	span.SetStatus(codes.Ok, "")
	return stats, nil
}

// jobFromHash reconstructs a job record from its Redis hash fields
func jobFromHash(fields map[string]string) (*domain.ReservationJob, error) {
	job := &domain.ReservationJob{
		ID:        fields["id"],
		Type:      domain.JobType(fields["type"]),
		State:     domain.JobState(fields["state"]),
		Result:    fields["result"],
		LastError: fields["last_error"],
	}

	if raw := fields["payload"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job payload: %w", err)
		}
	}

	if raw := fields["attempts"]; raw != "" {
		attempts, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse job attempts: %w", err)
		}
		job.Attempts = attempts
	}

	if t, ok := parseJobTime(fields["enqueued_at"]); ok {
		job.EnqueuedAt = t
	}
	if t, ok := parseJobTime(fields["updated_at"]); ok {
		job.UpdatedAt = t
	}
	if t, ok := parseJobTime(fields["started_at"]); ok {
		job.StartedAt = &t
	}
	if t, ok := parseJobTime(fields["finished_at"]); ok {
		job.FinishedAt = &t
	}

	return job, nil
}

func parseJobTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseCounter(raw string) int64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// toInt64 converts a Lua script return value to int64
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
