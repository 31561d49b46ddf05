package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/voltahq/volta/internal/shared/infrastructure/eventbus"
)

// ProcessorConfig holds configuration for the outbox processor.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

// DefaultProcessorConfig returns sensible defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     100 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: 1 * time.Second,
		RetryBackoffMax:  1 * time.Minute,
	}
}

// Processor polls the outbox and publishes events to the message broker.
// Publishes go through a circuit breaker so a down broker degrades into fast
// failures and backoff instead of hammering the connection.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	config    ProcessorConfig
	logger    *slog.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex
}

// NewProcessor creates a new outbox processor.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "outbox-publisher",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Processor{
		repo:      repo,
		publisher: publisher,
		breaker:   breaker,
		config:    config,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the polling loop in a goroutine.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
	)
}

// Stop gracefully stops the processor.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("outbox processor stopped")
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error("failed to process outbox batch", "error", err)
			}
		}
	}
}

func (p *Processor) processBatch(ctx context.Context) error {
	messages, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if err := p.publish(ctx, msg); err != nil {
			p.logger.Warn("failed to publish message",
				"id", msg.ID,
				"routing_key", msg.RoutingKey,
				"event_id", msg.EventID,
				"error", err,
			)
			if !msg.CanRetry(p.config.MaxRetries) {
				if markErr := p.repo.MarkDead(ctx, msg.ID, err.Error()); markErr != nil {
					p.logger.Error("failed to dead-letter message", "id", msg.ID, "error", markErr)
				}
				continue
			}
			nextRetry := time.Now().Add(p.backoff(msg.RetryCount))
			if markErr := p.repo.MarkFailed(ctx, msg.ID, err.Error(), nextRetry); markErr != nil {
				p.logger.Error("failed to record publish failure", "id", msg.ID, "error", markErr)
			}
			continue
		}

		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			p.logger.Error("failed to mark message published", "id", msg.ID, "error", err)
		}
	}

	return nil
}

func (p *Processor) publish(ctx context.Context, msg *Message) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload)
	})
	return err
}

// backoff returns the exponential retry delay for the given attempt count.
func (p *Processor) backoff(retryCount int) time.Duration {
	d := p.config.RetryBackoffBase << uint(retryCount)
	if d > p.config.RetryBackoffMax || d <= 0 {
		return p.config.RetryBackoffMax
	}
	return d
}
