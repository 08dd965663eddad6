package poll

import (
	"context"
	"time"

	"sesamum.org/internal/obs"
)

// ProbeFunc returns nil while the upstream is reachable.
type ProbeFunc func(ctx context.Context) error

// WatchConnectivity probes every interval and reports transitions to set,
// starting from the assumption that the upstream is online. It blocks until
// ctx is done.
func WatchConnectivity(ctx context.Context, every time.Duration, probe ProbeFunc, set func(online bool)) {
	if every <= 0 {
		return
	}
	online := true
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, every)
		err := probe(pctx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		now := err == nil
		if now == online {
			return
		}
		online = now
		if online {
			obs.Info("connectivity restored", nil)
		} else {
			obs.Warn("connectivity lost", map[string]any{"err": err})
		}
		set(online)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
