package collect

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// seedMintDB creates a database shaped like an older mint schema: quotes
// with states and created timestamps, a "promises" table instead of
// "outputs", active and retired keysets, and no proofs table at all.
func seedMintDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mint.sqlite3")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	now := time.Now().Unix()
	stmts := []string{
		`CREATE TABLE mint_quotes (quote TEXT, state TEXT, created_time INTEGER)`,
		`CREATE TABLE melt_quotes (quote TEXT, state TEXT, created_time INTEGER)`,
		`CREATE TABLE promises (b_ TEXT, amount INTEGER)`,
		`CREATE TABLE keysets (id TEXT, active INTEGER)`,
	}
	for _, stmt := range stmts {
		require.NoError(t, db.Exec(stmt).Error)
	}

	quotes := []struct {
		state string
		age   int64
	}{
		{"PAID", 60},           // within the last hour
		{"PAID", 2 * 3600},     // within the last day
		{"UNPAID", 60},         // within the last hour
		{"ISSUED", 48 * 3600},  // older than a day
		{"ISSUED", 100 * 3600}, // older than a day
	}
	for _, q := range quotes {
		require.NoError(t, db.Exec(
			`INSERT INTO mint_quotes (quote, state, created_time) VALUES ('q', ?, ?)`,
			q.state, now-q.age).Error)
	}
	require.NoError(t, db.Exec(
		`INSERT INTO melt_quotes (quote, state, created_time) VALUES ('m', 'PENDING', ?)`, now-30).Error)
	for i := 0; i < 4; i++ {
		require.NoError(t, db.Exec(`INSERT INTO promises (b_, amount) VALUES ('b', 8)`).Error)
	}
	require.NoError(t, db.Exec(`INSERT INTO keysets (id, active) VALUES ('k1', 1)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO keysets (id, active) VALUES ('k2', 1)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO keysets (id, active) VALUES ('k0', 0)`).Error)

	return path
}

func TestEntityCounterCollect(t *testing.T) {
	path := seedMintDB(t)
	c := NewEntityCounter(path, time.Second, nil)

	counts := c.Collect(context.Background())
	require.True(t, counts.Available)

	mq := counts.Tables["mint_quotes"]
	require.NotNil(t, mq.Total)
	assert.Equal(t, int64(5), *mq.Total)
	assert.Equal(t, int64(2), mq.ByState["PAID"])
	assert.Equal(t, int64(1), mq.ByState["UNPAID"])
	assert.Equal(t, int64(2), mq.ByState["ISSUED"])
	require.NotNil(t, mq.Recent)
	require.NotNil(t, mq.Recent.Last1h)
	assert.Equal(t, int64(2), *mq.Recent.Last1h)
	require.NotNil(t, mq.Recent.Last24h)
	assert.Equal(t, int64(3), *mq.Recent.Last24h)

	require.NotNil(t, counts.ActiveKeysets)
	assert.Equal(t, int64(2), *counts.ActiveKeysets)
}

func TestEntityCounterAliasFallback(t *testing.T) {
	path := seedMintDB(t)
	c := NewEntityCounter(path, time.Second, nil)

	counts := c.Collect(context.Background())
	require.True(t, counts.Available)

	// No "outputs" table exists; the count must come from "promises".
	outputs := counts.Tables["outputs"]
	require.NotNil(t, outputs.Total)
	assert.Equal(t, int64(4), *outputs.Total)

	// Neither "proofs_used" nor "proofs" exists: nil, not an error.
	proofs := counts.Tables["proofs_used"]
	assert.Nil(t, proofs.Total)
}

func TestEntityCounterNotConfigured(t *testing.T) {
	c := NewEntityCounter("", time.Second, nil)
	counts := c.Collect(context.Background())
	assert.False(t, counts.Available)
	assert.Contains(t, counts.Reason, "not configured")
}

func TestEntityCounterMissingFile(t *testing.T) {
	c := NewEntityCounter(filepath.Join(t.TempDir(), "missing.sqlite3"), time.Second, nil)
	counts := c.Collect(context.Background())
	assert.False(t, counts.Available)
	assert.Contains(t, counts.Reason, "not found")
}

func TestEntityCounterShapeIsSnapshotReady(t *testing.T) {
	// Every allow-listed table gets an entry even when missing, so the
	// dashboard always has a key to render.
	path := seedMintDB(t)
	counts := NewEntityCounter(path, time.Second, nil).Collect(context.Background())

	for _, name := range []string{"mint_quotes", "melt_quotes", "outputs", "proofs_used", "keysets"} {
		_, ok := counts.Tables[name]
		assert.True(t, ok, "missing table key %s", name)
	}
}
