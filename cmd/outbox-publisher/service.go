package main

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/davidruizdev/storefront-backend/pkg/config"
	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	"github.com/davidruizdev/storefront-backend/pkg/logger"
	"github.com/davidruizdev/storefront-backend/pkg/metrics"
	"github.com/davidruizdev/storefront-backend/pkg/pubsub"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishRetries = 3
	publishBackoffBase    = 250 * time.Millisecond
)

type outboxRepository interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publisherFactory func(eventType string) publisher

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	Repository       outboxRepository
	PubSub           *pubsub.Client
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxMetrics
}

// Service drains outbox_events into Pub/Sub: fetch a batch, publish each
// event, and mark the row published or failed.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	repo         outboxRepository
	publisherFor publisherFactory
	metrics      *metrics.OutboxMetrics
	batchSize    int
	pollInterval time.Duration
	retryBase    time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		if params.PubSub == nil {
			return nil, errors.New("pubsub client is required")
		}
		factory = func(string) publisher {
			return newGCPPublisher(params.PubSub.OrdersPublisher())
		}
	}

	batchSize := params.Config.Outbox.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		repo:         params.Repository,
		publisherFor: factory,
		metrics:      params.Metrics,
		batchSize:    batchSize,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
		retryBase:    publishBackoffBase,
	}, nil
}

// Run polls until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.publishBatch(ctx); err != nil {
				s.logg.Error(ctx, "outbox batch failed", err)
			}
		}
	}
}

func (s *Service) publishBatch(ctx context.Context) error {
	start := time.Now()

	events, err := s.repo.FetchUnpublished(s.batchSize)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SetBacklog(len(events))
	}
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		if err := s.publishEvent(ctx, event); err != nil {
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				s.logg.Error(ctx, "mark outbox event failed", markErr)
			}
			if s.metrics != nil {
				s.metrics.IncFailed(string(event.EventType))
			}
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"event_id":   event.ID.String(),
				"event_type": event.EventType,
			})
			s.logg.Error(logCtx, "outbox event publish failed", err)
			continue
		}

		if err := s.repo.MarkPublished(event.ID); err != nil {
			s.logg.Error(ctx, "mark outbox event published", err)
			continue
		}
		if s.metrics != nil {
			s.metrics.IncPublished(string(event.EventType))
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveBatch(time.Since(start))
	}
	return nil
}

func (s *Service) publishEvent(ctx context.Context, event models.OutboxEvent) error {
	pub := s.publisherFor(string(event.EventType))
	if pub == nil {
		return errors.New("no publisher for event type " + string(event.EventType))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
		},
	}

	backoff := retry.WithMaxRetries(defaultPublishRetries, retry.NewExponential(s.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		result := pub.Publish(ctx, msg)
		if result == nil {
			return errors.New("publisher returned no result")
		}
		if _, err := result.Get(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
