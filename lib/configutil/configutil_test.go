package configutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl string            `json:"base_url"`
	Workers int               `json:"workers"`
	Delay   string            `json:"delay"`
	Fields  map[string]string `json:"fields"`
}

func write(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "a/recorder.local.json5", LocalPath("a/recorder.json5"))
	require.Equal(t, "config.local", LocalPath("config"))
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "recorder.json5")

	_, err := ReadConfig[testConfig](name)
	require.True(t, os.IsNotExist(err))

	write(t, name, `{
		// comments and trailing commas are fine
		base_url: "https://www.thecountyrecorder.com",
		workers: 2,
		fields: {a: "1"},
	}`)
	write(t, LocalPath(name), `{workers: 4}`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "https://www.thecountyrecorder.com", cfg.BaseUrl)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, map[string]string{"a": "1"}, cfg.Fields)
}

func TestReadWithDefaults(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "recorder.json5")
	write(t, name, `{workers: 3}`)

	cfg, err := ReadWithDefaults(name, testConfig{
		BaseUrl: "https://example.com",
		Workers: 1,
		Delay:   time.Second.String(),
	})
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, "https://example.com", cfg.BaseUrl)
	require.Equal(t, "1s", cfg.Delay)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0777))
	write(t, filepath.Join(root, "telemetry.json5"), `{base_url: "found"}`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	defer os.Chdir(wd)

	cfg, err := ReadRecursively[testConfig]("telemetry.json5")
	require.NoError(t, err)
	require.Equal(t, "found", cfg.BaseUrl)
}
