package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
)

const embeddedTick = time.Second

// NewEmbedded starts an in-process Redis server and returns a Client
// connected to it. It backs single-instance runs where no Redis server is
// available. Closing the client stops the server.
func NewEmbedded(ctx context.Context) (*Client, error) {
	srv := miniredis.NewMiniRedis()
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("failed to start embedded redis: %w", err)
	}

	c, err := NewClient(ctx, srv.Addr())
	if err != nil {
		srv.Close()
		return nil, err
	}

	// miniredis only expires keys when its clock is moved forward
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(embeddedTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.FastForward(embeddedTick)
			case <-done:
				return
			}
		}
	}()

	c.stop = sync.OnceFunc(func() {
		close(done)
		srv.Close()
	})
	slog.Info("using embedded redis", "addr", srv.Addr())
	return c, nil
}
