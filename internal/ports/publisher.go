package ports

import "context"

// Publisher is a raw message sink: an SNS topic, a Redis channel, a log.
type Publisher interface {
	PublishRaw(ctx context.Context, target string, payload []byte) error
}
