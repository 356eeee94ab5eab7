package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/config"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/prompt"
)

type cliEcho struct{}

func (cliEcho) Init(context.Context, capability.Context) error { return nil }
func (cliEcho) Dispose() error                                 { return nil }
func (cliEcho) Translate(_ context.Context, req capability.TranslateRequest) (*capability.TranslateResponse, error) {
	return &capability.TranslateResponse{Text: req.Text}, nil
}

func init() {
	capability.Register("cli-echo", func() capability.Plugin { return cliEcho{} })
}

type cli struct {
	programDir string
	dataDir    string
	work       string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	base := t.TempDir()
	return &cli{
		programDir: filepath.Join(base, "app"),
		dataDir:    filepath.Join(base, "data"),
		work:       filepath.Join(base, "work"),
	}
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand("test", "none", "unknown")
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--program-dir", c.programDir, "--data-dir", c.dataDir, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) source(t *testing.T, name, id, version string) string {
	t.Helper()
	dir := filepath.Join(c.work, name)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	desc, err := json.Marshal(map[string]string{
		"PluginID":        id,
		"Name":            "Echo",
		"Version":         version,
		"ExecuteFilePath": "echo.plugin",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"), desc, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.plugin"), []byte("cli-echo\n"), 0o600))
	return dir
}

func (c *cli) list(t *testing.T) []listEntry {
	t.Helper()
	out, err := c.run(t, "list", "--json")
	require.NoError(t, err)
	var entries []listEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	return entries
}

func TestCLI_PackInstallUpgradeUninstall(t *testing.T) {
	c := newCLI(t)

	v1 := filepath.Join(c.work, "echo-1.spkg")
	out, err := c.run(t, "pack", c.source(t, "v1", "translate.echo", "1.0"), "-o", v1)
	require.NoError(t, err)
	assert.Contains(t, out, "translate.echo 1.0")
	assert.FileExists(t, v1)

	out, err = c.run(t, "install", v1)
	require.NoError(t, err)
	assert.Contains(t, out, "Installed translate.echo 1.0")

	entries := c.list(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "1.0", entries[0].Version)
	assert.Equal(t, "user", entries[0].Kind)
	assert.Equal(t, []string{"translate"}, entries[0].Capabilities)

	_, err = c.run(t, "install", v1)
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrVersionTooOld)

	v2 := filepath.Join(c.work, "echo-2.spkg")
	_, err = c.run(t, "pack", c.source(t, "v2", "translate.echo", "2.0"), "-o", v2)
	require.NoError(t, err)
	out, err = c.run(t, "install", "--yes", v2)
	require.NoError(t, err)
	assert.Contains(t, out, "staged")

	entries = c.list(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "2.0", entries[0].Version)

	out, err = c.run(t, "list", "--capability", "ocr")
	require.NoError(t, err)
	assert.Contains(t, out, "No plugins installed.")

	out, err = c.run(t, "uninstall", "--yes", "translate.echo")
	require.NoError(t, err)
	assert.Contains(t, out, "Uninstalled translate.echo")
	assert.Empty(t, c.list(t))
	assert.NoDirExists(t, entries[0].Directory)
}

func TestCLI_UnknownPlugin(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "uninstall", "--yes", "nope")
	assert.ErrorContains(t, err, `plugin "nope" is not installed`)
}

func TestCLI_PackRejectsInvalidDirectory(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.MkdirAll(c.work, 0o750))
	_, err := c.run(t, "pack", c.work)
	assert.ErrorContains(t, err, "not a valid plugin directory")
}

type refusingPrompter struct{ prompt.StaticPrompter }

func (refusingPrompter) ConfirmUpgrade(_, _ *entities.Descriptor) (bool, error) {
	return false, prompt.ErrNonInteractive
}

func TestRunInstall_NonInteractiveUpgrade(t *testing.T) {
	c := newCLI(t)
	v1 := filepath.Join(c.work, "a.spkg")
	v2 := filepath.Join(c.work, "b.spkg")
	_, err := c.run(t, "pack", c.source(t, "a", "translate.echo", "1.0"), "-o", v1)
	require.NoError(t, err)
	_, err = c.run(t, "pack", c.source(t, "b", "translate.echo", "1.1"), "-o", v2)
	require.NoError(t, err)
	_, err = c.run(t, "install", v1)
	require.NoError(t, err)

	flags := &globalFlags{programDir: c.programDir, dataDir: c.dataDir, logLevel: "error"}
	cfg, err := flags.load()
	require.NoError(t, err)
	ctx := context.Background()
	m, err := openManager(ctx, cfg, newLogger(io.Discard, cfg))
	require.NoError(t, err)
	defer func() { _ = m.Close(ctx) }()
	m.LoadPlugins(ctx)

	var out bytes.Buffer
	err = runInstall(ctx, &out, m, refusingPrompter{}, v2)
	assert.ErrorIs(t, err, prompt.ErrNonInteractive)
	assert.ErrorContains(t, err, "--yes")

	err = runInstall(ctx, &out, m, prompt.StaticPrompter{Answer: false}, v2)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Kept translate.echo 1.0")
}

func TestGlobalFlags_DataDirRederivesLayout(t *testing.T) {
	c := newCLI(t)
	flags := &globalFlags{programDir: c.programDir, dataDir: c.dataDir, locale: "zh-CN"}
	cfg, err := flags.load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.dataDir, config.PluginsFolder), cfg.PluginsDir)
	assert.Equal(t, filepath.Join(c.dataDir, config.SettingsFolder, config.PluginsFolder), cfg.SettingsDir)
	assert.Equal(t, filepath.Join(c.programDir, config.PluginsFolder), cfg.PreinstalledDir)
	assert.Equal(t, "zh-CN", cfg.Locale)
}
