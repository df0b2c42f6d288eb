package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/logging"
)

// FallbackBroadcaster tries each transport in order and returns the first
// success. It is used to prefer the relay over the ledger node.
type FallbackBroadcaster struct {
	log        logging.Logger
	transports []namedBroadcaster
}

type namedBroadcaster struct {
	name string
	b    Broadcaster
}

func NewFallbackBroadcaster(log logging.Logger) *FallbackBroadcaster {
	return &FallbackBroadcaster{log: log}
}

// Add appends a transport. Nil transports are skipped so an unconfigured
// relay can be passed as is.
func (f *FallbackBroadcaster) Add(name string, b Broadcaster) *FallbackBroadcaster {
	if b != nil {
		f.transports = append(f.transports, namedBroadcaster{name: name, b: b})
	}
	return f
}

func (f *FallbackBroadcaster) Broadcast(ctx context.Context, env models.Envelope) (string, error) {
	if len(f.transports) == 0 {
		return "", fmt.Errorf("%w: no transport configured", ErrUnavailable)
	}
	var errs []error
	for _, t := range f.transports {
		ref, err := t.b.Broadcast(ctx, env)
		if err == nil {
			return ref, nil
		}
		f.log.Warn(ctx, "broadcast failed", "transport", t.name, "id", env.ID, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}
