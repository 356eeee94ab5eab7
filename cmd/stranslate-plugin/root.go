package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stranslate-dev/stranslate-plugin-host/config"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/archive"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/services"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/values"
	"github.com/stranslate-dev/stranslate-plugin-host/prompt"
)

// newPrompter is replaced in tests.
var newPrompter = func(assumeYes bool) prompt.Prompter {
	if assumeYes {
		return prompt.StaticPrompter{Answer: true}
	}
	return prompt.NewTerminalPrompter()
}

func newRootCommand(version, commit, date string) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "stranslate-plugin",
		Short: "Manage STranslate plugin packages",
		Long: `stranslate-plugin installs, upgrades, lists and removes STranslate plugins.

Changes that replace or remove a plugin directory take effect the next time
plugins are loaded, by this tool or by the application.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.programDir, "program-dir", "", "Application directory (default: directory of this executable)")
	pf.StringVar(&flags.configFile, "config", "", "Configuration file (default: <data-dir>/plugin-host.yaml)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Data directory holding Plugins, Settings and Cache")
	pf.StringVar(&flags.locale, "locale", "", "Locale for plugin names and descriptions, e.g. zh-CN")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newListCommand(flags),
		newInstallCommand(flags),
		newUninstallCommand(flags),
		newPackCommand(),
	)
	return rootCmd
}

// withManager loads plugins and runs fn against the manager.
func withManager(cmd *cobra.Command, flags *globalFlags, fn func(context.Context, *plugin.Manager) error) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	m, err := openManager(ctx, cfg, newLogger(cmd.ErrOrStderr(), cfg))
	if err != nil {
		return err
	}
	m.LoadPlugins(ctx)

	runErr := fn(ctx, m)
	if err := m.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func newListCommand(flags *globalFlags) *cobra.Command {
	var (
		capName string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter values.Capability
			if capName != "" {
				c, err := values.ParseCapability(capName)
				if err != nil {
					return err
				}
				filter = c
			}
			return withManager(cmd, flags, func(_ context.Context, m *plugin.Manager) error {
				ds := m.AllPluginMetaDatas()
				if !filter.IsNone() {
					ds = m.PluginsWith(filter)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), ds)
				}
				return writeTable(cmd.OutOrStdout(), ds)
			})
		},
	}

	cmd.Flags().StringVar(&capName, "capability", "", "Only list plugins with this capability (translate, dictionary, ocr, tts, vocabulary)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newInstallCommand(flags *globalFlags) *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "install <package" + services.PackageExtension + ">",
		Short: "Install a plugin package",
		Long: `Install a plugin package file.

If the plugin is already installed at an older version you are asked whether
to upgrade. The upgrade takes effect the next time plugins are loaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, flags, func(ctx context.Context, m *plugin.Manager) error {
				return runInstall(ctx, cmd.OutOrStdout(), m, newPrompter(assumeYes), args[0])
			})
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Upgrade without asking")
	return cmd
}

func runInstall(ctx context.Context, out io.Writer, m *plugin.Manager, p prompt.Prompter, path string) error {
	res := m.InstallPlugin(ctx, path)
	switch res.Status {
	case entities.InstallSucceeded:
		fmt.Fprintf(out, "Installed %s %s into %s\n", res.NewPlugin.PluginID, res.NewPlugin.Version, res.NewPlugin.PluginDirectory)
		return nil
	case entities.InstallRequiresUpgrade:
	default:
		if res.Err != nil {
			return fmt.Errorf("%s: %w", res.Message, res.Err)
		}
		return errors.New(res.Message)
	}

	ok, err := p.ConfirmUpgrade(res.NewPlugin, res.ExistingPlugin)
	if errors.Is(err, prompt.ErrNonInteractive) {
		return prompt.FormatNonInteractiveError("upgrade", res.ExistingPlugin)
	}
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(out, "Kept %s %s\n", res.ExistingPlugin.PluginID, res.ExistingPlugin.Version)
		return nil
	}
	if !m.UpgradePlugin(ctx, res.ExistingPlugin, path) {
		return fmt.Errorf("upgrade of %s failed", res.ExistingPlugin.PluginID)
	}
	fmt.Fprintf(out, "Upgrade of %s to %s staged; it takes effect on next start\n",
		res.ExistingPlugin.PluginID, res.NewPlugin.Version)
	return nil
}

func newUninstallCommand(flags *globalFlags) *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "uninstall <plugin-id>",
		Short: "Remove a plugin with its settings and cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, flags, func(ctx context.Context, m *plugin.Manager) error {
				return runUninstall(ctx, cmd.OutOrStdout(), m, newPrompter(assumeYes), args[0])
			})
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Uninstall without asking")
	return cmd
}

func runUninstall(ctx context.Context, out io.Writer, m *plugin.Manager, p prompt.Prompter, id string) error {
	d := m.Plugin(id)
	if d == nil {
		return fmt.Errorf("plugin %q is not installed", id)
	}
	ok, err := p.ConfirmUninstall(d)
	if errors.Is(err, prompt.ErrNonInteractive) {
		return prompt.FormatNonInteractiveError("uninstall", d)
	}
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if !m.UninstallPlugin(ctx, d) {
		return fmt.Errorf("uninstall of %s failed", id)
	}
	fmt.Fprintf(out, "Uninstalled %s; files are removed on next start\n", id)
	return nil
}

func newPackCommand() *cobra.Command {
	var (
		output  string
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "pack <plugin-dir>",
		Short: "Build a plugin package from a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := args[0]
			reader := services.NewMetadataReader(services.WithReaderLogger(newLogger(cmd.ErrOrStderr(), defaultLogConfig())))
			d, ok := reader.Read(ctx, dir)
			if !ok {
				return fmt.Errorf("%s is not a valid plugin directory", dir)
			}

			if output == "" {
				output = filepath.Base(filepath.Clean(dir)) + services.PackageExtension
			}
			if !strings.EqualFold(filepath.Ext(output), services.PackageExtension) {
				output += services.PackageExtension
			}
			n, err := archive.Pack(ctx, dir, output, exclude...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Packed %s %s (%d files) into %s\n", d.PluginID, d.Version, n, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Package file (default: <dir name>"+services.PackageExtension+")")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Glob patterns of files to leave out")
	return cmd
}

type listEntry struct {
	PluginID     string   `json:"plugin_id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Kind         string   `json:"kind"`
	Capabilities []string `json:"capabilities"`
	Directory    string   `json:"directory"`
}

func entriesOf(ds []*entities.Descriptor) []listEntry {
	out := make([]listEntry, 0, len(ds))
	for _, d := range ds {
		out = append(out, listEntry{
			PluginID:     d.PluginID,
			Name:         d.Name,
			Version:      d.Version,
			Kind:         d.Kind(),
			Capabilities: d.PluginType.Names(),
			Directory:    d.PluginDirectory,
		})
	}
	return out
}

func writeJSON(w io.Writer, ds []*entities.Descriptor) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entriesOf(ds))
}

func writeTable(w io.Writer, ds []*entities.Descriptor) error {
	if len(ds) == 0 {
		_, err := fmt.Fprintln(w, "No plugins installed.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVERSION\tKIND\tCAPABILITIES")
	for _, e := range entriesOf(ds) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.PluginID, e.Name, e.Version, e.Kind, strings.Join(e.Capabilities, ","))
	}
	return tw.Flush()
}

func defaultLogConfig() config.Config {
	return config.Config{LogLevel: os.Getenv(config.EnvLogLevel)}
}
