// Package platform defines the lifecycle shared by the service's components.
package platform

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

type Platform interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

const stopTimeout = 5 * time.Second

// Run starts every component and blocks until the first one fails or ctx is
// cancelled, then stops them all. A plain context cancellation is a normal
// shutdown, not an error.
func Run(ctx context.Context, components ...Platform) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range components {
		c := c
		g.Go(func() error {
			return c.Start(gctx)
		})
	}

	err := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	for _, c := range components {
		c.Stop(stopCtx)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
