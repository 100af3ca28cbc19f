package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile = ""
	purgeYes = false
	purgeStartDate, purgeEndDate = "", ""

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func useTempSource(t *testing.T) {
	t.Helper()
	t.Setenv("SOURCE_PATH", filepath.Join(t.TempDir(), "biodb.db"))
	t.Setenv("SINK_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"migrate":      false,
		"retry":        false,
		"status":       false,
		"check-source": false,
		"seed":         false,
		"purge":        false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "command %q not registered", name)
	}
}

func TestSeedThenCheckSource(t *testing.T) {
	useTempSource(t)

	out, err := run(t, "seed", "--count", "7", "--employees", "3", "--day", "2025-03-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 7 records")

	out, err = run(t, "check-source")
	require.NoError(t, err)
	assert.Contains(t, out, "Total records in ATT_TABLE: 7")
	assert.Contains(t, out, "time_stamp=2025-03-02")
}

func TestSeed_BadDay(t *testing.T) {
	useTempSource(t)

	_, err := run(t, "seed", "--day", "yesterday")
	assert.Error(t, err)
}

func TestMigrateAgainstMemorySink(t *testing.T) {
	useTempSource(t)

	_, err := run(t, "seed", "--count", "12", "--day", "2025-03-02")
	require.NoError(t, err)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_in_sqlite": 12`)
	assert.Contains(t, out, `"status": "success"`)

	out, err = run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"sqlite_records": 12`)
}

func TestPurgeRequiresYes(t *testing.T) {
	useTempSource(t)

	out, err := run(t, "purge")
	require.NoError(t, err)
	assert.Contains(t, out, "0 records match")
	assert.Contains(t, out, "--yes")

	out, err = run(t, "purge", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 0 records")
}

func TestMigrate_RequiresSinkURL(t *testing.T) {
	useTempSource(t)
	t.Setenv("SINK_BACKEND", "postgres")
	t.Setenv("SINK_URL", "")

	_, err := run(t, "migrate")
	assert.Error(t, err)
}
