package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Watcher syncs a source on a fixed interval until its context ends.
type Watcher struct {
	importer *Importer
	interval time.Duration
}

func NewWatcher(importer *Importer, interval time.Duration) *Watcher {
	return &Watcher{importer: importer, interval: interval}
}

// Run syncs once immediately, then on every tick. Sync failures are logged and the
// next tick tries again.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	source := w.importer.Source().Name()
	log.Info().Str("source", source).Dur("interval", w.interval).Msg("ingest: watcher started")

	for {
		w.syncOnce(ctx)
		select {
		case <-ctx.Done():
			log.Info().Str("source", source).Msg("ingest: watcher stopped")
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) syncOnce(ctx context.Context) {
	result, err := w.importer.Sync(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("ingest: sync failed")
		}
		return
	}
	if len(result.Imported) > 0 || len(result.Failed) > 0 {
		log.Info().
			Str("source", result.Source).
			Int("imported", len(result.Imported)).
			Int("failed", len(result.Failed)).
			Int("skipped", result.Skipped).
			Msg("ingest: sync complete")
	}
}
