package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	os.Unsetenv("DATABASE_DRIVER")
	os.Unsetenv("ALLOWED_ORIGINS")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "5200", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionAbandonAfter)
	assert.True(t, cfg.Otel.Enabled)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("CATALOG_TIMEOUT", "750ms")
	t.Setenv("R2_ACCOUNT_ID", "acct")
	t.Setenv("R2_ACCESS_KEY_ID", "key")
	t.Setenv("R2_ACCESS_KEY_SECRET", "secret")
	t.Setenv("R2_BUCKET_NAME", "tables")
	t.Setenv("OTEL_ENDPOINT", "http://collector:4318")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 750*time.Millisecond, cfg.CatalogTimeout)
	assert.True(t, cfg.R2.Enabled())
	assert.Equal(t, "tables", cfg.R2.Bucket)
	assert.Equal(t, "http://collector:4318", cfg.Otel.Endpoint)
}

func TestParseRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "mysql")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}

func TestParseSweepInterval(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")

	t.Setenv("SESSION_SWEEP_INTERVAL", "0s")
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Zero(t, cfg.SessionSweepInterval)

	t.Setenv("SESSION_SWEEP_INTERVAL", "-1m")
	_, err = Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SWEEP_INTERVAL")
}

func TestDefaultTablesValidate(t *testing.T) {
	tables, err := DefaultTables()
	require.NoError(t, err)

	_, act, ok := tables.Lookup("garden", "tend")
	require.True(t, ok)
	assert.Equal(t, ScoringElapsed, act.Scoring)
	assert.Equal(t, "Oran Berry", act.Rewards.DefaultItem.Name)

	_, farm, ok := tables.Lookup("farm", "work")
	require.True(t, ok)
	// merged from the garden anchor, overridden locally
	assert.Equal(t, 70.0, farm.Rewards.ItemWeight)
	assert.Equal(t, "Fresh Milk", farm.Rewards.DefaultItem.Name)

	_, swab, ok := tables.Lookup("pirates_dock", "swab")
	require.True(t, ok)
	assert.Equal(t, 80.0, swab.Rewards.ItemWeight)
	assert.Equal(t, 20.0, swab.Rewards.MonsterWeight)
	assert.Equal(t, []string{"Water", "Ice"}, swab.Rewards.MonsterTypes)

	_, _, ok = tables.Lookup("garden", "fishing")
	assert.False(t, ok)

	assert.Equal(t, 1.5, tables.DifficultyFactor("hard"))
	assert.Equal(t, 1.0, tables.DifficultyFactor("unknown"))
	require.Len(t, tables.Rarities, 5)
	assert.Equal(t, "legendary", tables.Rarities[4].Name)
}

func TestDecodeTablesRejectsBadDuration(t *testing.T) {
	doc := `
difficulty: { normal: 1 }
rarities:
  - { name: common, weight: 1, level: { min: 1, max: 2 }, filters: [ { franchise: pokemon } ] }
locations:
  garden:
    cooldown: 1m
    activities:
      tend:
        scoring: elapsed
        duration: { min: 10, max: 200 }
        prompts: [ { id: p, text: t, difficulty: normal } ]
        rewards:
          coin_bundle: { min: 1, max: 2 }
          level_bundle: { min: 1, max: 2 }
          default_item: { name: x, category: items }
`
	_, err := DecodeTables([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration")
}

func TestDecodeTablesRejectsUnknownField(t *testing.T) {
	_, err := DecodeTables([]byte("locatoins: {}\n"))
	require.Error(t, err)
}

type stubFetcher struct {
	data []byte
	err  error
	key  string
}

func (f *stubFetcher) FetchObject(_ context.Context, key string) ([]byte, error) {
	f.key = key
	return f.data, f.err
}

func TestLoadTablesSources(t *testing.T) {
	ctx := context.Background()

	t.Run("embedded", func(t *testing.T) {
		tables, err := LoadTables(ctx, Config{}, nil)
		require.NoError(t, err)
		assert.Contains(t, tables.Locations, "game_corner")
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tables.yaml")
		require.NoError(t, os.WriteFile(path, defaultTables, 0o600))

		tables, err := LoadTables(ctx, Config{RewardTablesPath: path}, nil)
		require.NoError(t, err)
		assert.Len(t, tables.Locations, 4)
	})

	t.Run("r2", func(t *testing.T) {
		f := &stubFetcher{data: defaultTables}
		_, err := LoadTables(ctx, Config{RewardTablesR2Key: "tables/v2.yaml"}, f)
		require.NoError(t, err)
		assert.Equal(t, "tables/v2.yaml", f.key)
	})

	t.Run("r2 without client", func(t *testing.T) {
		_, err := LoadTables(ctx, Config{RewardTablesR2Key: "k"}, nil)
		require.Error(t, err)
	})

	t.Run("r2 error", func(t *testing.T) {
		_, err := LoadTables(ctx, Config{RewardTablesR2Key: "k"}, &stubFetcher{err: errors.New("boom")})
		require.ErrorContains(t, err, "boom")
	})
}
