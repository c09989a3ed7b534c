package workers

import (
	"context"
	"log/slog"
	"time"

	"opencast/contexts/identity-access/organization-service/application"
	"opencast/contexts/identity-access/organization-service/ports"
)

// OutboxRelay drains pending audit events to the message bus. Rows are
// published in creation order; a publish failure stops the batch so the
// row is retried on the next run.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topic := r.Topic
	if topic == "" {
		topic = "identity-access.organization-events"
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("org outbox list failed",
			"event", "org_outbox_list_failed",
			"module", "identity-access/organization-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		if err := r.Publisher.Publish(ctx, topic, row); err != nil {
			logger.Error("org outbox publish failed",
				"event", "org_outbox_publish_failed",
				"module", "identity-access/organization-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", row.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			return err
		}
		logger.Debug("org outbox event published",
			"event", "org_outbox_published",
			"module", "identity-access/organization-service",
			"layer", "worker",
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}
