package collect

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mintdeck/mintdeck/internal/models"
)

// DefaultQueryTimeout bounds each individual aggregate query.
const DefaultQueryTimeout = 5 * time.Second

// tableSpec describes one allow-listed mint table. Alias covers schema
// drift across mint versions (the outputs table used to be "promises").
// Only names from this fixed list are ever interpolated into SQL; the
// adapter never touches external input and never issues anything but
// SELECT aggregates.
type tableSpec struct {
	name        string
	alias       string
	stateCol    string
	createdCol  string
	windowStats bool
}

var mintTables = []tableSpec{
	{name: "mint_quotes", stateCol: "state", createdCol: "created_time", windowStats: true},
	{name: "melt_quotes", stateCol: "state", createdCol: "created_time", windowStats: true},
	{name: "outputs", alias: "promises"},
	{name: "proofs_used", alias: "proofs"},
	{name: "keysets"},
}

// EntityCounter reads row counts out of the mint's SQLite database.
// The database is opened strictly read-only and only the fixed query set
// above is ever issued. Every individual query is independently
// fault-tolerant: a missing table or a timed-out query turns into a nil
// figure, never into a failed collection pass.
type EntityCounter struct {
	path         string
	queryTimeout time.Duration
	log          *zap.Logger

	mu sync.Mutex
	db *gorm.DB
}

// NewEntityCounter creates a counter for the database at path. An empty
// path means the adapter permanently reports "not configured".
func NewEntityCounter(path string, queryTimeout time.Duration, log *zap.Logger) *EntityCounter {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EntityCounter{path: path, queryTimeout: queryTimeout, log: log}
}

// Configured reports whether a database location was supplied.
func (c *EntityCounter) Configured() bool { return c != nil && c.path != "" }

// Collect runs the aggregate query pass and returns the entity counts
// slice of a snapshot. It never returns an error: unavailability is an
// explicit marker with a reason.
func (c *EntityCounter) Collect(ctx context.Context) models.EntityCounts {
	if !c.Configured() {
		return models.EntityCounts{Available: false, Reason: "mint database not configured"}
	}
	if _, err := os.Stat(c.path); err != nil {
		return models.EntityCounts{Available: false, Reason: fmt.Sprintf("mint database not found at %s", c.path)}
	}
	db, err := c.open()
	if err != nil {
		return models.EntityCounts{Available: false, Reason: fmt.Sprintf("opening mint database: %v", err)}
	}

	counts := models.EntityCounts{
		Available: true,
		Tables:    make(map[string]models.TableCounts, len(mintTables)),
	}

	cutoff1h := time.Now().Add(-time.Hour).Unix()
	cutoff24h := time.Now().Add(-24 * time.Hour).Unix()

	for _, spec := range mintTables {
		actual := c.resolveTable(ctx, db, spec.name)
		if actual == "" && spec.alias != "" {
			actual = c.resolveTable(ctx, db, spec.alias)
		}
		if actual == "" {
			// Neither the primary name nor the alias exists in this
			// schema version.
			counts.Tables[spec.name] = models.TableCounts{}
			continue
		}

		tc := models.TableCounts{
			Total: c.countQuery(ctx, db, "SELECT COUNT(*) FROM "+actual),
		}
		if spec.stateCol != "" {
			tc.ByState = c.stateCounts(ctx, db, actual, spec.stateCol)
		}
		if spec.windowStats && spec.createdCol != "" {
			tc.Recent = &models.WindowCounts{
				Last1h:  c.countQuery(ctx, db, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s >= ?", actual, spec.createdCol), cutoff1h),
				Last24h: c.countQuery(ctx, db, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s >= ?", actual, spec.createdCol), cutoff24h),
			}
		}
		counts.Tables[spec.name] = tc
	}

	if keysets := c.resolveTable(ctx, db, "keysets"); keysets != "" {
		counts.ActiveKeysets = c.countQuery(ctx, db, "SELECT COUNT(*) FROM "+keysets+" WHERE active = 1")
	}

	return counts
}

// open lazily opens the database read-only and caches the handle.
func (c *EntityCounter) open() (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db, nil
	}
	dsn := fmt.Sprintf("file:%s?mode=ro", c.path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

// resolveTable returns name if the table exists, else "".
func (c *EntityCounter) resolveTable(ctx context.Context, db *gorm.DB, name string) string {
	qctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()
	var found string
	err := db.WithContext(qctx).
		Raw("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name).
		Scan(&found).Error
	if err != nil {
		c.log.Debug("table lookup failed", zap.String("table", name), zap.Error(err))
		return ""
	}
	return found
}

// countQuery runs one allow-listed COUNT query with its own timeout.
func (c *EntityCounter) countQuery(ctx context.Context, db *gorm.DB, query string, args ...any) *int64 {
	qctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()
	var n int64
	if err := db.WithContext(qctx).Raw(query, args...).Scan(&n).Error; err != nil {
		c.log.Debug("count query failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return &n
}

// stateCounts runs one grouped count; a failure yields no map at all.
func (c *EntityCounter) stateCounts(ctx context.Context, db *gorm.DB, table, stateCol string) map[string]int64 {
	qctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()
	var rows []struct {
		State string
		N     int64
	}
	query := fmt.Sprintf("SELECT %s AS state, COUNT(*) AS n FROM %s GROUP BY %s", stateCol, table, stateCol)
	if err := db.WithContext(qctx).Raw(query).Scan(&rows).Error; err != nil {
		c.log.Debug("state count query failed", zap.String("table", table), zap.Error(err))
		return nil
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.State] = r.N
	}
	return out
}
