package ports

import (
	"context"
	"winsync/internal/types"
)

// Transport delivers committed batches to the remote side. A batch is handed over whole;
// operations inside it MUST be applied remotely in slice order.
type Transport interface {
	Send(ctx context.Context, batch types.Batch) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, batch types.Batch) error

func (f TransportFunc) Send(ctx context.Context, batch types.Batch) error { return f(ctx, batch) }

// ArtifactTable is the host-maintained side table mapping row keys to externally rendered
// artifacts. The engine consults it but never owns the artifacts.
type ArtifactTable interface {
	ExternalID(key string) (string, bool)
	Forget(key string)
}
