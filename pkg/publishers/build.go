package publishers

import (
	"context"
	"fmt"
)

// Builder creates a Publisher from a config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

var builders = map[string]Builder{
	TypeHTTP:      newHTTPPublisher,
	TypeSQS:       newSQSPublisher,
	TypeSNS:       newSNSPublisher,
	TypeGCPPubSub: newGCPPubSubPublisher,
}

// Build creates a publisher per config and returns them behind one Fanout.
// Publishers built before a failure are closed.
func Build(ctx context.Context, cfgs []PublisherConfig, log Logger) (*Fanout, error) {
	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		build, ok := builders[cfg.Type]
		if !ok {
			_ = NewFanout(pubs).Close()
			return nil, fmt.Errorf("publisher %q: unsupported type %q", cfg.ID, cfg.Type)
		}
		pub, err := build(ctx, cfg, log)
		if err != nil {
			_ = NewFanout(pubs).Close()
			return nil, fmt.Errorf("build publisher %q: %w", cfg.ID, err)
		}
		pubs = append(pubs, pub)
	}
	return NewFanout(pubs), nil
}
