package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultTorStartupTimeout bounds the bootstrap of the embedded daemon.
const DefaultTorStartupTimeout = 3 * time.Minute

// Tor is a running embedded Tor daemon whose SOCKS5 listener can be handed
// to New as Options.Proxy.
type Tor struct {
	mu      sync.Mutex
	process *tornago.TorProcess
}

// StartTor launches an embedded Tor daemon on OS-assigned ports and waits
// for it to bootstrap. Cancelling ctx abandons the wait; a daemon that
// finishes starting afterwards is stopped in the background.
func StartTor(ctx context.Context, startupTimeout time.Duration) (*Tor, error) {
	if startupTimeout <= 0 {
		startupTimeout = DefaultTorStartupTimeout
	}

	cfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(startupTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	type started struct {
		process *tornago.TorProcess
		err     error
	}
	ch := make(chan started, 1)
	go func() {
		p, err := tornago.StartTorDaemon(cfg)
		ch <- started{process: p, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if s := <-ch; s.err == nil {
				_ = s.process.Stop() //nolint:errcheck // abandoned startup
			}
		}()
		return nil, ctx.Err()
	case s := <-ch:
		if s.err != nil {
			return nil, fmt.Errorf("failed to start embedded Tor daemon: %w", s.err)
		}
		return &Tor{process: s.process}, nil
	}
}

// SocksAddr returns the SOCKS5 address of the daemon.
func (t *Tor) SocksAddr() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.process == nil {
		return "", ErrTorNotRunning
	}
	return t.process.SocksAddr(), nil
}

// Stop shuts the daemon down. Stopping twice is a no-op.
func (t *Tor) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.process == nil {
		return nil
	}
	err := t.process.Stop()
	t.process = nil
	return err
}
