package api

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"winsync/internal/list"
	"winsync/internal/types"
)

const messageGroupAttr = "MessageGroupId"

// SQSHandler applies list events delivered by a FIFO queue. Lists persist across
// invocations of a warm function so their acknowledged windows survive between batches.
type SQSHandler struct {
	Lists *list.Registry
}

// HandleSQSEvent applies each record in order. Once a record fails, every later record of
// the same message group is reported as failed without being applied, so redelivery
// replays the group in its original order.
func (h *SQSHandler) HandleSQSEvent(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	log.Infof("Processing batch of %d messages", len(sqsEvent.Records))

	var batchItemFailures []events.SQSBatchItemFailure
	failedGroups := map[string]bool{}

	for _, record := range sqsEvent.Records {
		group := record.Attributes[messageGroupAttr]
		if failedGroups[group] {
			log.WithFields(log.Fields{
				"messageID": record.MessageId,
				"group":     group,
			}).Warn("Skipping message behind a failed one in its group")
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}
		if err := h.processMessage(ctx, record); err != nil {
			log.WithError(err).Errorf("Failed to process message %s", record.MessageId)
			failedGroups[group] = true
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}

	return events.SQSEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

// processMessage applies a single queued list event
func (h *SQSHandler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var ev types.ListEvent
	if err := json.Unmarshal([]byte(record.Body), &ev); err != nil {
		return fmt.Errorf("parse message body: %w", err)
	}
	if ev.ListID == "" {
		ev.ListID = record.Attributes[messageGroupAttr]
	}

	l, err := h.Lists.Get(ev.ListID)
	if err != nil {
		return fmt.Errorf("lookup list: %w", err)
	}

	res, err := Apply(ctx, l, ev)
	if err != nil {
		return fmt.Errorf("apply %s event: %w", ev.Type, err)
	}

	fields := log.Fields{
		"list":      ev.ListID,
		"type":      ev.Type,
		"status":    res.Status,
		"messageID": record.MessageId,
	}
	switch {
	case res.Stale:
		// a stale ack is consumed, not redelivered
		log.WithFields(fields).WithField("updateId", ev.UpdateID).Debug("Stale acknowledgment ignored")
	case res.Committed:
		fields["updateId"] = res.Awaiting
		log.WithFields(fields).Info("Batch published")
	default:
		log.WithFields(fields).Debug("Event applied")
	}
	return nil
}
