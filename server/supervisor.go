package server

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const DefaultRestartBackoff = time.Second

// Supervisor keeps a listener bound and served. Bind and serve failures
// are logged and retried after Backoff, forever, until ctx is done.
type Supervisor struct {
	Addr    string
	Backoff time.Duration
	Logger  *log.Logger

	// Bind opens the listener, defaults to net.Listen on Addr.
	Bind func(ctx context.Context) (net.Listener, error)
	// Serve runs until the listener fails or ctx ends.
	Serve func(ctx context.Context, l net.Listener) error
	// OnListening is called with every freshly bound listener.
	OnListening func(l net.Listener)

	loggerOnce sync.Once
}

func (sv *Supervisor) logger() *log.Logger {
	sv.loggerOnce.Do(func() {
		if sv.Logger == nil {
			sv.Logger = log.NewWithOptions(os.Stderr, log.Options{
				Prefix: "Supervisor: ",
				Level:  log.GetLevel(),
			})
		}
	})
	return sv.Logger
}

func (sv *Supervisor) bind(ctx context.Context) (net.Listener, error) {
	if sv.Bind != nil {
		return sv.Bind(ctx)
	}
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", sv.Addr)
	if err != nil {
		return nil, &TransportError{Op: "bind", Err: err}
	}
	return l, nil
}

// Run returns only when ctx is done.
func (sv *Supervisor) Run(ctx context.Context) error {
	backoff := sv.Backoff
	if backoff <= 0 {
		backoff = DefaultRestartBackoff
	}

	for {
		l, err := sv.bind(ctx)
		if err != nil {
			sv.logger().Error("failed to bind", "addr", sv.Addr, "err", err)
		} else {
			sv.logger().Info("listening", "addr", l.Addr().String())
			if sv.OnListening != nil {
				sv.OnListening(l)
			}
			err = sv.Serve(ctx, l)
			l.Close()
			if err != nil {
				sv.logger().Error("server stopped", "err", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
