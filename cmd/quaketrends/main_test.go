package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/couchcryptid/quake-trends/internal/adapter/csvstore"
	"github.com/couchcryptid/quake-trends/internal/adapter/sqlite"
	"github.com/couchcryptid/quake-trends/internal/config"
	"github.com/couchcryptid/quake-trends/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantBaseDir  string
		wantDownload bool
		wantErr      bool
	}{
		{name: "no args", args: nil, wantBaseDir: ".", wantDownload: false},
		{name: "base dir only", args: []string{"data"}, wantBaseDir: "data", wantDownload: false},
		{name: "download 1", args: []string{"data", "1"}, wantBaseDir: "data", wantDownload: true},
		{name: "download true", args: []string{"data", "true"}, wantBaseDir: "data", wantDownload: true},
		{name: "download false", args: []string{"data", "false"}, wantBaseDir: "data", wantDownload: false},
		{name: "download garbage", args: []string{"data", "maybe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := config.NewViper()
			err := applyArgs(v, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBaseDir, v.GetString(config.KeyBaseDir))
			assert.Equal(t, tt.wantDownload, v.GetBool(config.KeyDownload))
		})
	}
}

func TestRootCmd_RejectsExtraArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"a", "1", "extra"})
	cmd.SetOut(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestRootCmd_FlagsReachConfig(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.PersistentFlags().Parse([]string{
		"--log-level", "debug",
		"--kafka-brokers", "a:9092,b:9092",
		"--manifest=false",
	}))

	a := &app{v: config.NewViper()}
	bindFlags(a.v, cmd.PersistentFlags())
	cfg, err := a.loadConfig([]string{t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.ManifestEnabled)
	assert.False(t, cfg.Download)
}

// writeDataset saves a consistent two-event dataset under dir.
func writeDataset(t *testing.T, dir string) *csvstore.Store {
	t.Helper()
	store := csvstore.New(dir)
	header := []string{"time", "latitude", "longitude", "mag", "id"}

	mainEvents, err := domain.ParseCatalog(header, [][]string{
		{"2010-06-15T00:00:00.000Z", "-35", "-72", "7.0", "main0"},
		{"2005-01-01T00:00:00.000Z", "10", "20", "6.5", "main1"},
	})
	require.NoError(t, err)
	_, err = store.Save(store.MainEventsPath(), mainEvents)
	require.NoError(t, err)

	var merged *domain.Catalog
	for i, row := range mainEvents.Events {
		c, err := domain.ParseCatalog(header, [][]string{row.Fields})
		require.NoError(t, err)
		c.TagMainEvent(i)
		_, err = store.Save(store.PrecursorPath(i), c)
		require.NoError(t, err)
		if merged == nil {
			merged = domain.NewCatalog(c.Header)
		}
		require.NoError(t, merged.Append(c))
	}
	_, err = store.Save(store.MergedPath(), merged)
	require.NoError(t, err)
	return store
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Merged rows:      2")
	assert.Contains(t, out.String(), "All checks passed.")
}

func TestValidateCmd_MissingPrecursors(t *testing.T) {
	dir := t.TempDir()
	store := writeDataset(t, dir)
	mainEvents, err := store.Load(store.MainEventsPath())
	require.NoError(t, err)
	extra, err := domain.ParseCatalog(mainEvents.Header, [][]string{
		{"2011-03-11T05:46:24.120Z", "38.297", "142.373", "9.1", "main2"},
	})
	require.NoError(t, err)
	require.NoError(t, mainEvents.Append(extra))
	_, err = store.Save(store.MainEventsPath(), mainEvents)
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", dir})

	require.Error(t, cmd.Execute())
	assert.Contains(t, out.String(), "Missing precursor files for main events [2]")
}

func TestStatusCmd_NoManifest(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"status", dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "No runs recorded")
}

func TestStatusCmd(t *testing.T) {
	dir := t.TempDir()
	store := csvstore.New(dir)
	ctx := context.Background()

	manifest, err := sqlite.Open(store.ManifestPath())
	require.NoError(t, err)
	runID, err := manifest.StartRun(ctx)
	require.NoError(t, err)
	require.NoError(t, manifest.RecordFetch(ctx, domain.FetchRecord{
		RunID: runID, MainEvent: 0, File: store.PrecursorPath(0), Rows: 1200, Bytes: 2048,
	}))
	require.NoError(t, manifest.RecordFetch(ctx, domain.FetchRecord{
		RunID: runID, MainEvent: 1, File: store.PrecursorPath(1), Skipped: true,
	}))
	require.NoError(t, manifest.FinishRun(ctx, runID, nil))
	require.NoError(t, manifest.Close())

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"status", dir})

	require.NoError(t, cmd.Execute())
	got := out.String()
	assert.Contains(t, got, "Main events downloaded: 1")
	assert.Contains(t, got, runID)
	assert.Contains(t, got, "succeeded")
	assert.Contains(t, got, "1,200")
	assert.Contains(t, got, "2.0 kB")
}
