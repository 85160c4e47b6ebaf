package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobForecastRefresh = "forecast_refresh"
	JobHealthCheck     = "health_check"
)

// ErrMalformedMessage is returned for payloads that are not valid job messages.
var ErrMalformedMessage = errors.New("malformed job message")

// RefreshMessage represents a forecast refresh job message.
type RefreshMessage struct {
	JobType string `json:"job_type"`

	// Cities limits a forecast_refresh to the listed cities. For a
	// health_check the first entry is probed.
	Cities []string `json:"cities,omitempty"`
}

// Disposition tells the subscriber what to do with a message.
type Disposition int

const (
	Ack Disposition = iota
	Nack
)

// JobRunner executes job messages against a RefreshJob. It holds no Pub/Sub
// state so it can be driven by any transport.
type JobRunner struct {
	job    *RefreshJob
	logger zerolog.Logger
}

// NewJobRunner creates a JobRunner.
func NewJobRunner(job *RefreshJob, logger zerolog.Logger) *JobRunner {
	return &JobRunner{job: job, logger: logger}
}

// Handle decodes and runs one message. Unknown job types are acknowledged so
// they are not redelivered; failures are negatively acknowledged.
func (r *JobRunner) Handle(ctx context.Context, data []byte) (Disposition, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Nack, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	var err error
	switch msg.JobType {
	case JobForecastRefresh:
		err = r.handleForecastRefresh(ctx, msg)
	case JobHealthCheck:
		err = r.handleHealthCheck(ctx, msg)
	default:
		r.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return Ack, nil
	}
	if err != nil {
		return Nack, err
	}
	return Ack, nil
}

func (r *JobRunner) handleForecastRefresh(ctx context.Context, msg RefreshMessage) error {
	var result *RefreshResult
	if targets := TargetsFromCities(msg.Cities); len(targets) > 0 {
		cfg := r.job.config
		cfg.Targets = targets
		result = r.job.run(ctx, cfg)
	} else {
		result = r.job.Run(ctx)
	}

	// Consider it successful if at least half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.Targets)
	}
	return nil
}

func (r *JobRunner) handleHealthCheck(ctx context.Context, msg RefreshMessage) error {
	city := ""
	if len(msg.Cities) > 0 {
		city = strings.TrimSpace(msg.Cities[0])
	}
	if city == "" {
		city = r.job.config.OrderedTargets()[0].City
	}

	r.logger.Debug().Str("city", city).Msg("running health check")

	result := r.job.RunCity(ctx, city)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed for %s: %d errors", city, result.Failed)
	}
	return nil
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	runner           *JobRunner
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		runner:           NewJobRunner(cfg.RefreshJob, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	disposition, err := h.runner.Handle(ctx, msg.Data)
	if disposition == Nack {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed")
	msg.Ack()
}
