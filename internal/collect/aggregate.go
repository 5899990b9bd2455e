package collect

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mintdeck/mintdeck/internal/models"
)

// RecentActivityN is how many activity records a full snapshot carries.
const RecentActivityN = 50

// HostSource yields the host OS slice of a snapshot.
type HostSource interface {
	Collect() models.HostResources
}

// RemoteSource probes the mint and yields its health slice.
type RemoteSource interface {
	Check(ctx context.Context) InfoResult
}

// EntitySource yields the mint-database slice.
type EntitySource interface {
	Collect(ctx context.Context) models.EntityCounts
}

// ActivitySource yields the in-memory activity slice.
type ActivitySource interface {
	Summary(n int) models.ActivitySummary
}

// Aggregator merges every metric source into one snapshot. The three
// I/O-bound adapters run concurrently, so the wall-clock cost of a build
// is bounded by the slowest probe rather than their sum. No adapter
// failure ever escapes: each one degrades its own field.
type Aggregator struct {
	host     HostSource
	remote   RemoteSource
	entities EntitySource
	activity ActivitySource
}

// NewAggregator wires the four sources together. All must be non-nil
// except entities, which may be nil when no database is configured.
func NewAggregator(host HostSource, remote RemoteSource, entities EntitySource, activity ActivitySource) *Aggregator {
	return &Aggregator{host: host, remote: remote, entities: entities, activity: activity}
}

// BuildSnapshot assembles a fresh snapshot. It never returns an error.
func (a *Aggregator) BuildSnapshot(ctx context.Context) models.Snapshot {
	snap, _ := a.BuildStatus(ctx)
	return snap
}

// BuildStatus is BuildSnapshot plus the raw mint info payload captured
// by the probe, for the dashboard's info passthrough.
func (a *Aggregator) BuildStatus(ctx context.Context) (models.Snapshot, json.RawMessage) {
	var (
		snap models.Snapshot
		info json.RawMessage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap.OS = a.host.Collect()
		return nil
	})
	g.Go(func() error {
		res := a.remote.Check(gctx)
		snap.Mint = res.Health
		info = res.Info
		return nil
	})
	g.Go(func() error {
		if a.entities == nil {
			snap.DB = models.EntityCounts{Available: false, Reason: "mint database not configured"}
			return nil
		}
		snap.DB = a.entities.Collect(gctx)
		return nil
	})
	// Sources never return errors; Wait only synchronizes.
	_ = g.Wait()

	snap.Monitoring = a.activity.Summary(RecentActivityN)
	snap.GeneratedAtMs = time.Now().UnixMilli()
	return snap, info
}
