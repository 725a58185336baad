package store

import (
	"context"
	"log"
	"sync"
	"time"
)

// SweeperConfig represents idle sweeper configuration
type SweeperConfig struct {
	// SweepInterval is how often the sweeper scans for idle sessions
	SweepInterval time.Duration
	// IdleTimeout is the inactivity age after which a session is evicted
	IdleTimeout time.Duration
}

// DefaultSweeperConfig returns the default sweeper configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		SweepInterval: time.Minute,
		IdleTimeout:   30 * time.Minute,
	}
}

// Sweeper evicts idle sessions in the background.
type Sweeper struct {
	store      *Service
	config     SweeperConfig
	shutdownCh chan struct{}
	once       sync.Once
}

// NewSweeper creates an idle session sweeper.
func NewSweeper(store *Service, config SweeperConfig) *Sweeper {
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweeperConfig().SweepInterval
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultSweeperConfig().IdleTimeout
	}
	return &Sweeper{
		store:      store,
		config:     config,
		shutdownCh: make(chan struct{}),
	}
}

// Start begins the eviction loop
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-ticker.C:
			if _, err := s.store.EvictIdle(ctx, s.config.IdleTimeout); err != nil {
				// Log error but continue
				log.Printf("error evicting idle sessions: %v", err)
			}
		}
	}
}

// Shutdown stops the sweeper
func (s *Sweeper) Shutdown() {
	s.once.Do(func() { close(s.shutdownCh) })
}
