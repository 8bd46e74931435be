package index

import (
	"context"
	"os"
	"time"

	"github.com/dcarrero/mboxshell-go/config"
	"github.com/dcarrero/mboxshell-go/internal/logging"
)

// WatchStaleness periodically checks whether archivePath's on-disk index
// is still current, calling onStale once each time it notices staleness.
// It never rebuilds the index itself; that decision is left to the caller
// (typically: re-run Load). It runs its loop in the calling goroutine,
// starts no goroutine of its own, and returns when ctx is cancelled.
// Nothing in this package runs it implicitly.
func WatchStaleness(ctx context.Context, archivePath string, cfg config.Config, interval time.Duration, onStale func()) {
	log := logging.WithComponent("index")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Debug().Str("archive", archivePath).Dur("interval", interval).Msg("staleness watch started")

	for {
		select {
		case <-ticker.C:
			if isStale(archivePath, cfg) {
				log.Info().Str("archive", archivePath).Msg("index staleness detected")
				onStale()
			}
		case <-ctx.Done():
			log.Debug().Str("archive", archivePath).Msg("staleness watch stopped")
			return
		}
	}
}

func isStale(archivePath string, cfg config.Config) bool {
	info, err := os.Stat(archivePath)
	if err != nil {
		return true
	}

	for _, idxPath := range []string{adjacentPath(archivePath), cachePath(archivePath, cfg)} {
		_, stale, err := loadFromFile(idxPath, archivePath, info)
		if err == nil {
			return stale
		}
		if !os.IsNotExist(err) {
			return true
		}
	}
	return true
}
