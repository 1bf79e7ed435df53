// Package bus consumes alerts published on the Redis alert channel
// and feeds them into the ingest pipeline.
package bus

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/soclab/mitigator/cmd/manager/models"
	"github.com/soclab/mitigator/common/logger"
	rediscommon "github.com/soclab/mitigator/common/redis"
)

// Ingestor processes one parsed alert.
type Ingestor interface {
	Ingest(ctx context.Context, alert *models.Alert) ([]*models.Attack, error)
}

// Subscriber subscribes to the alert channel and dispatches incoming
// alerts to a bounded worker pool. Malformed alerts are dropped with
// a warning; ingest failures are logged per alert.
type Subscriber struct {
	redis    *rediscommon.Client
	ingestor Ingestor
	channel  string
	workers  int
	log      *logger.Logger
}

// NewSubscriber creates an alert bus subscriber.
func NewSubscriber(client *rediscommon.Client, ingestor Ingestor, channel string, workers int, log *logger.Logger) *Subscriber {
	if workers < 1 {
		workers = 1
	}
	return &Subscriber{
		redis:    client,
		ingestor: ingestor,
		channel:  channel,
		workers:  workers,
		log:      log,
	}
}

// Run consumes the alert channel until the context is cancelled or
// the subscription closes. In-flight alerts are drained before
// returning.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub, err := s.redis.Subscribe(ctx, s.channel)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	ch := pubsub.Channel()
	s.log.Info("alert bus started", "channel", s.channel, "workers", s.workers)

	for {
		select {
		case <-ctx.Done():
			g.Wait() //nolint:errcheck
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				g.Wait() //nolint:errcheck
				return nil
			}
			payload := msg.Payload
			g.Go(func() error {
				s.handle(gctx, payload)
				return nil
			})
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, payload string) {
	log := s.log.WithIngestID(uuid.NewString())

	alert, err := models.ParseAlertJSON([]byte(payload))
	if err != nil {
		var invalid *models.InvalidAlertError
		if errors.As(err, &invalid) {
			log.Warn("malformed alert dropped", "error", err)
		} else {
			log.Error("alert decode failed", "error", err)
		}
		return
	}

	log.Info("alert received", "rule_id", alert.RuleID(), "techniques", alert.Techniques())
	if _, err := s.ingestor.Ingest(ctx, alert); err != nil {
		log.Error("alert ingest failed", "error", err)
	}
}
