package places

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/angelmondragon/placemates-backend/pkg/storage/gcs"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type blobSweeper interface {
	List(ctx context.Context, prefix string) ([]gcs.Object, error)
	Delete(ctx context.Context, object string) error
}

// PurgeResult counts the blobs seen and removed under a place prefix.
type PurgeResult struct {
	Found   int
	Deleted int
	Failed  int
	Listed  bool
}

// Purger deletes every blob under a place's prefix. Failures are logged and
// counted, never returned.
type Purger struct {
	blobs   blobSweeper
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
	limit   int
}

func NewPurger(blobs blobSweeper, logg *logger.Logger, m *metrics.EngineMetrics, limit int) *Purger {
	if limit <= 0 {
		limit = defaultFanOutLimit
	}
	return &Purger{blobs: blobs, logg: logg, metrics: m, limit: limit}
}

// Purge lists the prefix once and deletes each object as an independent task.
// An object already gone counts as deleted.
func (p *Purger) Purge(ctx context.Context, placeID uuid.UUID) PurgeResult {
	start := time.Now()
	defer func() { p.metrics.ObserveDuration("purge_blobs", time.Since(start)) }()

	prefix := BlobPrefix(placeID)
	ctx = p.logg.WithField(ctx, "blob_prefix", prefix)

	objects, err := p.blobs.List(ctx, prefix)
	if err != nil {
		p.logg.Error(ctx, "listing place blobs failed", err)
		return PurgeResult{}
	}
	result := PurgeResult{Found: len(objects), Listed: true}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(p.limit)
	for _, obj := range objects {
		g.Go(func() error {
			err := p.blobs.Delete(ctx, obj.Name)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				p.metrics.IncBlobDelete(metrics.ResultSuccess)
				result.Deleted++
			case errors.Is(err, gcs.ErrObjectNotFound):
				p.metrics.IncBlobDelete(metrics.ResultMissing)
				result.Deleted++
			default:
				p.metrics.IncBlobDelete(metrics.ResultFailure)
				result.Failed++
				p.logg.Warn(p.logg.WithFields(ctx, map[string]any{
					"object": obj.Name,
					"error":  err.Error(),
				}), "blob delete failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"found":   result.Found,
		"deleted": result.Deleted,
		"failed":  result.Failed,
	}), "place blobs purged")
	return result
}
