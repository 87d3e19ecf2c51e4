package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// AlertStore persists alerts before they are handed to notifiers.
type AlertStore interface {
	Save(ctx context.Context, alert *fraud.FraudAlert) error
}

// Notifier delivers an alert to an external channel (pager, queue,
// webhook). Delivery failures are the notifier's problem to retry.
type Notifier interface {
	Notify(ctx context.Context, alert *fraud.FraudAlert) error
}

// AlertPublisher records alerts durably and fans them out to notifiers
// from a buffered queue. Publish never blocks the scoring path: when the
// queue is full the alert is still persisted and only the fan-out is
// dropped, with a log line.
type AlertPublisher struct {
	store     AlertStore
	notifiers []Notifier
	logger    *zap.Logger

	queue chan *fraud.FraudAlert
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewAlertPublisher creates a publisher with the given queue capacity.
// Call Start before publishing and Close on shutdown.
func NewAlertPublisher(store AlertStore, logger *zap.Logger, buffer int, notifiers ...Notifier) *AlertPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &AlertPublisher{
		store:     store,
		notifiers: notifiers,
		logger:    logger,
		queue:     make(chan *fraud.FraudAlert, buffer),
		done:      make(chan struct{}),
	}
}

// Start launches the fan-out worker.
func (p *AlertPublisher) Start() {
	p.wg.Add(1)
	go p.run()
}

func (p *AlertPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case alert := <-p.queue:
			p.dispatch(alert)
		case <-p.done:
			// Drain what is already queued, then stop.
			for {
				select {
				case alert := <-p.queue:
					p.dispatch(alert)
				default:
					return
				}
			}
		}
	}
}

func (p *AlertPublisher) dispatch(alert *fraud.FraudAlert) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, n := range p.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			p.logger.Warn("alert notification failed",
				zap.String("alert_id", alert.ID.String()),
				zap.String("alert_type", string(alert.AlertType)),
				zap.Error(err))
		}
	}
}

// Publish persists the alert and queues it for fan-out.
func (p *AlertPublisher) Publish(ctx context.Context, alert *fraud.FraudAlert) error {
	if p.store != nil {
		if err := p.store.Save(ctx, alert); err != nil {
			return fmt.Errorf("failed to persist alert: %w", err)
		}
	}

	select {
	case p.queue <- alert:
	default:
		p.logger.Warn("alert queue full, skipping fan-out",
			zap.String("alert_id", alert.ID.String()),
			zap.String("alert_type", string(alert.AlertType)))
	}
	return nil
}

// Close stops the worker after draining the queue.
func (p *AlertPublisher) Close() {
	p.once.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}

// LogNotifier writes alerts to the log. The default notifier in
// environments without an external alerting channel.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, alert *fraud.FraudAlert) error {
	n.Logger.Info("fraud alert",
		zap.String("alert_id", alert.ID.String()),
		zap.String("alert_type", string(alert.AlertType)),
		zap.String("severity", string(alert.Severity)),
		zap.String("user_id", alert.UserID.String()),
		zap.String("message", alert.Message))
	return nil
}
