package pub

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type logPub struct{ level log.Level }

// NewLog writes every payload to the log. Meant for development.
func NewLog(level log.Level) *logPub { return &logPub{level: level} }

func (l *logPub) PublishRaw(_ context.Context, target string, payload []byte) error {
	log.WithFields(log.Fields{"target": target, "bytes": len(payload)}).Log(l.level, string(payload))
	return nil
}
