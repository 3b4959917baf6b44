package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RefresherConfig tunes the background reload loop. Zero values fall back to
// DefaultRefresherConfig.
type RefresherConfig struct {
	// Interval is how often the catalog is reloaded from its source even
	// without a change notification. The upload job rotates handles every 48
	// hours, so an hourly backstop keeps expiry evaluation fresh without
	// hammering the source. Default: 1h.
	Interval time.Duration

	// LoadTimeout bounds a single reload. Default: 30s.
	LoadTimeout time.Duration
}

// DefaultRefresherConfig returns safe production defaults.
func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{
		Interval:    time.Hour,
		LoadTimeout: 30 * time.Second,
	}
}

// Run drives the catalog's background refresh until ctx is cancelled. It
// reloads on a ticker and, when the source supports push notification,
// also on change events. A failed reload keeps the previous snapshot serving;
// the failure is logged and retried on the next trigger.
//
// Call it in a goroutine from main:
//
//	go cat.Run(ctx, cfg)
func (c *Catalog) Run(ctx context.Context, cfg RefresherConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRefresherConfig().Interval
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultRefresherConfig().LoadTimeout
	}

	c.logger.Info("catalog: refresher starting",
		"source", c.source.String(),
		"interval", cfg.Interval,
	)

	// Change notifications are coalesced through a size-1 channel so a burst
	// of filesystem events triggers a single reload.
	changed := make(chan struct{}, 1)

	var wg sync.WaitGroup
	if watcher, ok := c.source.(Watcher); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Watch(ctx, func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			}); err != nil {
				c.logger.Error("catalog: watcher stopped, periodic reload remains", "error", err)
			}
		}()
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			c.logger.Info("catalog: refresher stopped")
			return
		case <-ticker.C:
			c.refreshOnce(ctx, cfg.LoadTimeout, "interval")
		case <-changed:
			c.refreshOnce(ctx, cfg.LoadTimeout, "change")
		}
	}
}

// refreshOnce performs a single bounded reload, tagged with a run ID so the
// log lines of one refresh can be correlated.
func (c *Catalog) refreshOnce(ctx context.Context, timeout time.Duration, trigger string) {
	runID := uuid.NewString()
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.Reload(loadCtx); err != nil {
		c.logger.Error("catalog: refresh failed, keeping previous snapshot",
			"refresh_id", runID,
			"trigger", trigger,
			"error", err,
		)
		return
	}

	snap := c.Snapshot()
	c.logger.Info("catalog: refreshed",
		"refresh_id", runID,
		"trigger", trigger,
		"entries", snap.Len(),
	)
}
