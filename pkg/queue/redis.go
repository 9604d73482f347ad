package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"DeskSync/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue buffers messages in a Redis list so producers (mutation path,
// log collector) never block on the downstream publisher. Messages with no
// registered job are still accepted: the consumer logs and drops them, which
// keeps a producer working while its consumer is being rolled out.
type RedisQueue struct {
	logger *logger.Logger
	config *Config
	client *redis.Client
	prefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix overrides the Redis key namespace.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) { r.prefix = prefix }
}

// NewRedisQueue creates the queue. Register jobs before Start.
func NewRedisQueue(lgr *logger.Logger, cfg *Config, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &RedisQueue{
		logger: lgr,
		config: cfg,
		client: client,
		prefix: "desksync:queue",
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterJob binds a consumer to its message type.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.jobs[job.Kind()]; dup {
		r.logger.Warn("queue: job already registered", logger.String("kind", job.Kind()))
		return
	}
	r.jobs[job.Kind()] = job
}

// Start verifies the Redis connection and launches the workers and the retry
// mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.running = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.wg.Add(1)
	go r.retryMover()

	r.logger.Info("queue: started",
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr))
	return nil
}

// Stop drains the workers, bounded by ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		r.logger.Warn("queue: workers did not drain", logger.Error(ctx.Err()))
		return ctx.Err()
	case <-done:
		r.logger.Info("queue: stopped")
		return nil
	}
}

// PublishMessage enqueues one message. Implements Publisher.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	r.mu.RUnlock()
	if !running {
		return fmt.Errorf("queue not running")
	}

	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), b).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return nil
}

func (r *RedisQueue) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		r.consumeOne()
	}
}

func (r *RedisQueue) consumeOne() {
	res, err := r.client.BRPop(r.ctx, time.Second, r.queueKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		r.logger.Error("queue: pop failed", logger.Error(err))
		time.Sleep(time.Second)
		return
	}
	if len(res) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.logger.Error("queue: undecodable message dropped", logger.Error(err))
		return
	}

	r.mu.RLock()
	job := r.jobs[msg.Type]
	r.mu.RUnlock()
	if job == nil {
		r.logger.Warn("queue: no consumer for message",
			logger.String("type", msg.Type), logger.String("id", msg.ID))
		return
	}

	if err := job.Handle(r.ctx, msg.Payload); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.retryOrPark(msg, err)
	}
}

// retryOrPark schedules a failed message for redelivery, or parks it on the
// dead-letter list once the retry budget is spent.
func (r *RedisQueue) retryOrPark(msg Message, cause error) {
	msg.Attempts++
	if msg.Attempts > r.config.RetryLimit {
		r.logger.Error("queue: message parked",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID),
			logger.Error(cause))
		r.push(r.deadKey(), msg)
		return
	}

	b, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("queue: encode retry", logger.Error(err))
		return
	}
	due := time.Now().Add(r.config.RetryDelay)
	if err := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{
		Score:  float64(due.Unix()),
		Member: b,
	}).Err(); err != nil {
		r.logger.Error("queue: schedule retry", logger.Error(err))
		return
	}
	r.logger.Warn("queue: message retry scheduled",
		logger.String("type", msg.Type),
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts),
		logger.Error(cause))
}

func (r *RedisQueue) push(key string, msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("queue: encode message", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), key, b).Err(); err != nil {
		r.logger.Error("queue: push failed", logger.Error(err))
	}
}

// retryMover moves due retries back onto the main list.
func (r *RedisQueue) retryMover() {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.moveDueRetries()
		}
	}
}

func (r *RedisQueue) moveDueRetries() {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{Min: "0", Max: now}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Error("queue: fetch due retries", logger.Error(err))
		}
		return
	}

	for _, member := range due {
		pipe := r.client.TxPipeline()
		pipe.ZRem(r.ctx, r.retryKey(), member)
		pipe.LPush(r.ctx, r.queueKey(), member)
		if _, err := pipe.Exec(r.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error("queue: redeliver retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) queueKey() string { return r.prefix + ":messages" }
func (r *RedisQueue) retryKey() string { return r.prefix + ":retry" }
func (r *RedisQueue) deadKey() string  { return r.prefix + ":dead" }
