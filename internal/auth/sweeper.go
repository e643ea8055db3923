package auth

import (
	"log/slog"
	"time"
)

// Sweeper periodically removes expired sessions from a Registry. It runs
// for the lifetime of the process; the owning process calls Close at
// shutdown. Each tick holds the registry lock only for one scan, so
// request-path operations are never blocked for long.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewSweeper creates a Sweeper for the registry. Start launches it.
func NewSweeper(reg *Registry, cfg Config) *Sweeper {
	cfg.applyDefaults()
	return &Sweeper{
		registry: reg,
		interval: cfg.SweepInterval,
		logger:   cfg.Logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	go s.loop()
}

// Close stops the sweep loop and waits for it to exit.
func (s *Sweeper) Close() error {
	close(s.stop)
	<-s.done
	return nil
}

func (s *Sweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.registry.SweepExpired()
			if removed > 0 {
				s.logger.Info("swept expired sessions",
					slog.Int("removed", removed),
					slog.Int("active", s.registry.Len()))
			} else {
				s.logger.Debug("expiry sweep removed nothing")
			}
		case <-s.stop:
			return
		}
	}
}
