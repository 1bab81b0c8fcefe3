package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds per client limits for expensive endpoints such as exports.
type Config struct {
	Enabled bool          `mapstructure:"enabled"`
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		RPS:     0.5,
		Burst:   5,
		IdleTTL: 10 * time.Minute,
	}
}

// Limiter keeps a token bucket per key. Buckets idle for longer than IdleTTL
// are dropped by a background sweep.
type Limiter struct {
	mu       sync.Mutex
	c        Config
	limiters map[string]*entry
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a limiter and starts its cleanup loop.
func NewLimiter(c *Config) *Limiter {
	if c == nil {
		dc := DefaultConfig()
		c = &dc
	}
	cfg := *c
	if cfg.RPS <= 0 {
		cfg.RPS = 0.5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.IdleTTL == 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	l := &Limiter{
		c:        cfg,
		limiters: make(map[string]*entry),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether a request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	if !l.c.Enabled {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.limiters[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(rate.Limit(l.c.RPS), l.c.Burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

// GetRemaining returns the whole tokens currently available for key.
func (l *Limiter) GetRemaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[key]
	if !ok {
		return l.c.Burst
	}
	return int(e.lim.TokensAt(l.now()))
}

// Close stops the cleanup loop.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.c.IdleTTL)
	for key, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}
