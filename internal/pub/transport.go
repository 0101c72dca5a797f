package pub

import (
	"context"

	log "github.com/sirupsen/logrus"

	"winsync/internal/ports"
	"winsync/internal/types"
)

// Transport publishes every committed batch of a list as one frame to a fixed target.
type Transport struct {
	pub       ports.Publisher
	target    string
	threshold int
}

func NewTransport(p ports.Publisher, cfg types.TargetConfig) *Transport {
	return &Transport{pub: p, target: cfg.Target, threshold: cfg.CompressThreshold}
}

func (t *Transport) Send(ctx context.Context, b types.Batch) error {
	frame, err := EncodeBatch(b, t.threshold)
	if err != nil {
		return err
	}
	if err := t.pub.PublishRaw(ctx, t.target, frame); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"list":     b.ListID,
		"updateId": b.UpdateID,
		"target":   t.target,
		"bytes":    len(frame),
	}).Debug("batch published")
	return nil
}

var _ ports.Transport = (*Transport)(nil)
