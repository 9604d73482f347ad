package middleware

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"DeskSync/internal/domain/models"
	domrepo "DeskSync/internal/domain/repository"
	"DeskSync/pkg/logger"
)

// Patcher is the store surface the pipeline needs.
type Patcher interface {
	ApplyPatch(domain models.Domain, value any)
}

// Scoper resolves the account whose events the session should apply.
type Scoper interface {
	ActiveScope() models.ViewScope
}

// PushPipeline sits between the event stream and one session's store. It
// validates payloads, drops events addressed to accounts outside the active
// scope, throttles per topic, and forwards patches in delivery order through
// a buffered hand-off. Overflow drops the oldest buffered event: push data is
// superseded by the next poll anyway.
type PushPipeline struct {
	store   Patcher
	scopes  Scoper
	metrics domrepo.Metrics
	logger  *logger.Logger

	minGap time.Duration
	buf    chan bufferedEvent
	stopCh chan struct{}

	mu       sync.Mutex
	started  bool
	lastSeen map[string]time.Time // per-topic last accepted time
}

type bufferedEvent struct {
	account models.AccountID
	domain  models.Domain
	value   any
	topic   string
}

// PipelineOption configures PushPipeline.
type PipelineOption func(*PushPipeline)

// WithMaxEventsPerSec caps accepted events per topic per second.
func WithMaxEventsPerSec(n int) PipelineOption {
	return func(p *PushPipeline) {
		if n > 0 {
			p.minGap = time.Second / time.Duration(n)
		}
	}
}

// WithBufferSize sets the hand-off buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *PushPipeline) {
		if n > 0 {
			p.buf = make(chan bufferedEvent, n)
		}
	}
}

// NewPushPipeline creates a pipeline for one session.
func NewPushPipeline(store Patcher, scopes Scoper, metrics domrepo.Metrics, lgr *logger.Logger, opts ...PipelineOption) *PushPipeline {
	p := &PushPipeline{
		store:    store,
		scopes:   scopes,
		metrics:  metrics,
		logger:   lgr,
		minGap:   time.Second / 10,
		buf:      make(chan bufferedEvent, 256),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the applier goroutine: the single consumer of the buffer,
// which preserves delivery order into the store.
func (p *PushPipeline) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		for {
			select {
			case <-p.stopCh:
				return
			case ev := <-p.buf:
				// re-check at apply time: the scope may have changed while
				// the event sat in the buffer
				if ev.account != p.scopes.ActiveScope().ActiveAccount() {
					p.metrics.RecordStaleDrop(string(ev.domain))
					continue
				}
				p.store.ApplyPatch(ev.domain, ev.value)
				p.metrics.RecordPatch(ev.topic)
			}
		}
	}()
}

// Stop halts the applier.
func (p *PushPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Handle is the stream handler for all subscribed topics.
func (p *PushPipeline) Handle(topic string, payload []byte) {
	if err := p.process(topic, payload); err != nil {
		p.logger.Debug("pipeline: event dropped",
			logger.String("topic", topic), logger.Error(err))
	}
}

func (p *PushPipeline) process(topic string, payload []byte) error {
	switch topic {
	case models.TopicStewardPrediction:
		var ev models.StewardPredictionEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", topic, err)
		}
		if err := validatePrediction(&ev); err != nil {
			return err
		}
		if ev.Account != p.scopes.ActiveScope().ActiveAccount() {
			// event addressed to an account this session is not viewing
			return nil
		}
		if !p.allow(topic, time.Now()) {
			return nil
		}
		p.enqueue(bufferedEvent{
			account: ev.Account,
			domain:  models.DomainStewardPrediction,
			value:   models.StewardPrediction{Current: ev.Prediction, History: ev.History},
			topic:   topic,
		})
		return nil
	default:
		return fmt.Errorf("unknown topic %q", topic)
	}
}

// enqueue hands the event to the applier, dropping the oldest on overflow.
func (p *PushPipeline) enqueue(ev bufferedEvent) {
	select {
	case p.buf <- ev:
		return
	default:
	}
	select {
	case <-p.buf:
	default:
	}
	select {
	case p.buf <- ev:
	default:
	}
}

func validatePrediction(ev *models.StewardPredictionEvent) error {
	if ev.Account == "" {
		return fmt.Errorf("account empty")
	}
	if ev.Prediction.Symbol == "" {
		return fmt.Errorf("prediction symbol empty")
	}
	if ev.Prediction.Confidence < 0 || ev.Prediction.Confidence > 1 {
		return fmt.Errorf("confidence out of range")
	}
	return nil
}

func (p *PushPipeline) allow(topic string, now time.Time) bool {
	if p.minGap <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[topic]
	if !last.IsZero() && now.Sub(last) < p.minGap {
		return false
	}
	p.lastSeen[topic] = now
	return true
}
