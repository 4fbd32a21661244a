// Package webhook delivers canonical event envelopes to each
// instance's configured webhook URL. The dispatcher stays
// fire-and-forget: it publishes to the bus, this service journals the
// delivery attempt in an outbox table and drains it with a worker
// pool, so retry bookkeeping never back-pressures the session manager.
package webhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/talkincode/wagate/internal/bus"
	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/repository"
	"github.com/talkincode/wagate/internal/wamanager"
	"github.com/talkincode/wagate/pkg/metrics"
)

// Config tunes the delivery service.
type Config struct {
	Workers      int
	MaxRetries   int
	Timeout      time.Duration
	DrainEvery   time.Duration
	RetryBackoff time.Duration
	DrainBatch   int
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.DrainEvery <= 0 {
		c.DrainEvery = 5 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 30 * time.Second
	}
	if c.DrainBatch <= 0 {
		c.DrainBatch = 100
	}
}

// Service subscribes to the event bus and drains the delivery outbox.
type Service struct {
	cfg        Config
	broker     *bus.Broker
	deliveries DeliveryRepository
	instances  repository.InstanceRepository
	pool       *ants.Pool
	stopChan   chan struct{}
	handler    func(ev *wamanager.Event)
}

func NewService(cfg Config, broker *bus.Broker, deliveries DeliveryRepository,
	instances repository.InstanceRepository) (*Service, error) {
	cfg.defaults()
	pool, err := ants.NewPool(cfg.Workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:        cfg,
		broker:     broker,
		deliveries: deliveries,
		instances:  instances,
		pool:       pool,
		stopChan:   make(chan struct{}),
	}, nil
}

// Start subscribes to the firehose topic and begins the drain loop.
func (s *Service) Start(ctx context.Context) error {
	s.handler = s.enqueue
	if err := s.broker.Subscribe(bus.TopicAll, s.handler); err != nil {
		return err
	}
	go s.drainLoop(ctx)
	zap.L().Info("webhook delivery service started",
		zap.Int("workers", s.cfg.Workers),
		zap.Duration("drain_every", s.cfg.DrainEvery))
	return nil
}

// Stop unsubscribes and releases the worker pool.
func (s *Service) Stop() {
	if s.handler != nil {
		_ = s.broker.Unsubscribe(bus.TopicAll, s.handler)
	}
	close(s.stopChan)
	s.pool.Release()
	zap.L().Info("webhook delivery service stopped")
}

// enqueue files an outbox row for every envelope whose instance has a
// webhook URL and subscribes to the envelope's kind. Runs on the bus's
// async delivery goroutine, never on the dispatcher's.
func (s *Service) enqueue(ev *wamanager.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	inst, err := s.instances.GetByID(ctx, ev.InstanceID)
	if err != nil {
		zap.L().Debug("webhook: instance lookup failed, event skipped",
			zap.Int64("instance_id", ev.InstanceID), zap.Error(err))
		return
	}
	if inst.WebhookUrl == "" || !Subscribed(inst.Events, string(ev.Kind)) {
		return
	}

	payload, err := ev.Encode()
	if err != nil {
		zap.L().Warn("webhook: envelope encode failed", zap.Error(err))
		return
	}
	row := &domain.WebhookDelivery{
		InstanceID: ev.InstanceID,
		EventID:    ev.ID,
		Kind:       string(ev.Kind),
		Url:        inst.WebhookUrl,
		Payload:    string(payload),
	}
	if err := s.deliveries.Enqueue(ctx, row); err != nil {
		zap.L().Warn("webhook: enqueue failed",
			zap.Int64("instance_id", ev.InstanceID), zap.Error(err))
	}
}

// Subscribed reports whether the comma separated kind filter admits
// kind. An empty filter admits everything.
func Subscribed(filter, kind string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	for _, k := range strings.Split(filter, ",") {
		if strings.TrimSpace(k) == kind {
			return true
		}
	}
	return false
}

func (s *Service) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.DrainEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.drainDue(ctx)
		}
	}
}

// drainDue submits every due outbox row to the worker pool. Deliveries
// for different instances run concurrently; a dead endpoint only costs
// its own retries.
func (s *Service) drainDue(ctx context.Context) {
	rows, err := s.deliveries.GetDue(ctx, s.cfg.MaxRetries, s.cfg.DrainBatch)
	if err != nil {
		zap.L().Error("webhook: outbox query failed", zap.Error(err))
		return
	}
	for _, row := range rows {
		row := row
		if err := s.pool.Submit(func() { s.deliver(row) }); err != nil {
			zap.L().Warn("webhook: pool submit failed", zap.Error(err))
			return
		}
	}
}

func (s *Service) deliver(row *domain.WebhookDelivery) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout+5*time.Second)
	defer cancel()

	var code int
	err := gout.POST(row.Url).
		SetTimeout(s.cfg.Timeout).
		SetHeader(gout.H{
			"Content-Type":      "application/json",
			"X-Wagate-Event":    row.Kind,
			"X-Wagate-Event-Id": fmt.Sprintf("%d", row.EventID),
			"X-Wagate-Instance": fmt.Sprintf("%d", row.InstanceID),
		}).
		SetBody(row.Payload).
		Code(&code).
		Do()
	if err == nil && code >= 200 && code < 300 {
		metrics.Counter(metrics.WebhookDelivered, 1)
		if err := s.deliveries.MarkSent(ctx, row.ID); err != nil {
			zap.L().Warn("webhook: mark sent failed", zap.Int64("id", row.ID), zap.Error(err))
		}
		return
	}

	reason := fmt.Sprintf("http status %d", code)
	if err != nil {
		reason = err.Error()
	}
	metrics.Counter(metrics.WebhookFailed, 1)
	nextTry := time.Now().Add(s.cfg.RetryBackoff * time.Duration(row.Retries+1))
	if err := s.deliveries.MarkFailed(ctx, row.ID, reason, nextTry); err != nil {
		zap.L().Warn("webhook: mark failed failed", zap.Int64("id", row.ID), zap.Error(err))
	}
	zap.L().Debug("webhook: delivery failed",
		zap.Int64("instance_id", row.InstanceID),
		zap.String("url", row.Url),
		zap.String("reason", reason),
		zap.Int("retries", row.Retries+1))
}

// Purge removes finished outbox rows older than cutoff.
func (s *Service) Purge(ctx context.Context, cutoff time.Time) {
	n, err := s.deliveries.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		zap.L().Warn("webhook: purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Info("webhook: purged finished deliveries", zap.Int64("count", n))
	}
}
