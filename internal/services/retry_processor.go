package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budget/internal/log"
)

// Retrier reschedules saves that did not reach the remote store.
type Retrier interface {
	RetryAll() int
}

type RetryProcessorConfig struct {
	// Interval between retry sweeps (default: 30s)
	Interval time.Duration
}

func DefaultRetryProcessorConfig() RetryProcessorConfig {
	return RetryProcessorConfig{Interval: 30 * time.Second}
}

// RetryProcessor periodically sweeps open sessions for failed saves.
type RetryProcessor struct {
	retrier Retrier
	config  RetryProcessorConfig
	logger  *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRetryProcessor(retrier Retrier, config RetryProcessorConfig, logger *log.Logger) *RetryProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultRetryProcessorConfig().Interval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &RetryProcessor{
		retrier: retrier,
		config:  config,
		logger:  logger.WithComponent(log.ComponentRetry),
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *RetryProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("retry processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	p.logger.InfoContext(ctx, "Retry processor started", "interval", p.config.Interval)
	return nil
}

// Stop ends the loop and waits for it, bounded by ctx.
func (p *RetryProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Retry processor stopped")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Retry processor stop timed out")
		return ctx.Err()
	}
}

func (p *RetryProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RetryProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep runs one retry pass and returns how many saves were rescheduled.
func (p *RetryProcessor) Sweep(ctx context.Context) int {
	n := p.retrier.RetryAll()
	if n > 0 {
		p.logger.InfoContext(ctx, "Rescheduled failed saves", "count", n)
	}
	return n
}
