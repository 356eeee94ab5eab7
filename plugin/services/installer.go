package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/ports"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/resolvers"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/values"
)

// PackageExtension is the extension of plugin package archives.
const PackageExtension = ".spkg"

// InstalledLookup returns the loaded descriptor for a plugin id, or nil.
type InstalledLookup func(pluginID string) *entities.Descriptor

// Installer runs the install, upgrade and uninstall state machines against a
// package store. It does not own the plugin registry; callers register the
// descriptors it returns.
type Installer struct {
	store        ports.PackageStore
	extractor    ports.PackageExtractor
	reader       ports.DescriptorReader
	loader       ports.ModuleLoader
	preinstalled map[string]struct{}
	logger       *slog.Logger
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithPreinstalledIDs names plugins that are placed under the pre-installed
// root when installed.
func WithPreinstalledIDs(ids ...string) InstallerOption {
	return func(i *Installer) {
		for _, id := range ids {
			i.preinstalled[id] = struct{}{}
		}
	}
}

// WithInstallerLogger sets the logger.
func WithInstallerLogger(l *slog.Logger) InstallerOption {
	return func(i *Installer) { i.logger = l }
}

// NewInstaller creates an installer.
func NewInstaller(
	store ports.PackageStore,
	extractor ports.PackageExtractor,
	reader ports.DescriptorReader,
	loader ports.ModuleLoader,
	opts ...InstallerOption,
) *Installer {
	i := &Installer{
		store:        store,
		extractor:    extractor,
		reader:       reader,
		loader:       loader,
		preinstalled: make(map[string]struct{}),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ValidatePackagePath checks that path names an existing regular ".spkg" file.
func ValidatePackagePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return &entities.PackageValidationError{Path: path, Reason: "path is empty"}
	}
	if !strings.EqualFold(filepath.Ext(path), PackageExtension) {
		return &entities.PackageValidationError{Path: path, Reason: "expected a " + PackageExtension + " file"}
	}
	if strings.Trim(PackageName(path), ". ") == "" {
		return &entities.PackageValidationError{Path: path, Reason: "unable to determine plugin name"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &entities.PackageValidationError{Path: path, Reason: "file does not exist"}
	}
	if !info.Mode().IsRegular() {
		return &entities.PackageValidationError{Path: path, Reason: "not a regular file"}
	}
	return nil
}

// PackageName returns the package file name without its extension.
func PackageName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Install extracts, validates and places a package, then loads it.
//
// A package whose id is already installed at an older version yields
// InstallRequiresUpgrade and leaves the extracted package in its temp slot
// for Upgrade. Every other outcome removes the temp slot.
func (i *Installer) Install(ctx context.Context, packagePath string, installed InstalledLookup) *entities.InstallResult {
	if err := ValidatePackagePath(packagePath); err != nil {
		return entities.InstallFail(err.Error(), nil, err)
	}

	pkgName := PackageName(packagePath)
	slot := i.store.TempSlot(pkgName)
	keepSlot := false
	defer func() {
		if keepSlot {
			return
		}
		_ = i.store.RemoveTemp(context.WithoutCancel(ctx), slot)
	}()

	// Remnants of an earlier attempt must not leak into this one.
	_ = i.store.RemoveTemp(ctx, slot)
	if err := i.extractor.Extract(ctx, packagePath, slot); err != nil {
		i.logger.ErrorContext(ctx, "package extraction failed", "package", packagePath, "error", err)
		return entities.InstallFail(fmt.Sprintf("cannot extract package: %v", err), nil, err)
	}

	digest, err := values.ComputeFileDigest(packagePath)
	if err != nil {
		return entities.InstallFail(fmt.Sprintf("cannot hash package: %v", err), nil, err)
	}

	incoming, ok := i.reader.Read(ctx, slot)
	if !ok {
		return entities.InstallFail("package has no valid plugin descriptor", nil, entities.ErrInvalidDescriptor)
	}
	id, err := values.NewPluginID(incoming.PluginID)
	if err != nil {
		return entities.InstallFail(err.Error(), nil, fmt.Errorf("%w: %w", entities.ErrInvalidDescriptor, err))
	}

	if existing := lookup(installed, id.String()); existing != nil {
		verdict := resolvers.CompareIncoming(existing.Version, incoming.Version)
		msg := resolvers.VerdictMessage(verdict, existing.Version, incoming.Version)
		if verdict == resolvers.VerdictNewer {
			keepSlot = true
			incoming.PackageDigest = digest
			i.logger.InfoContext(ctx, "plugin requires upgrade", "plugin_id", id.String(),
				"installed", existing.Version, "incoming", incoming.Version)
			return entities.InstallUpgradeRequired(msg, incoming, existing)
		}
		i.logger.WarnContext(ctx, "plugin install rejected", "plugin_id", id.String(), "reason", verdict.String())
		return entities.InstallFail(msg, existing, verdict.Err())
	}

	if err := ctx.Err(); err != nil {
		return entities.InstallFail("install cancelled", nil, err)
	}

	_, pre := i.preinstalled[id.String()]
	target := i.store.TargetDir(pkgName, id.String(), pre)
	if err := i.store.MoveDir(ctx, slot, target); err != nil {
		i.logger.ErrorContext(ctx, "plugin placement failed", "plugin_id", id.String(), "target", target, "error", err)
		return entities.InstallFail(err.Error(), nil, err)
	}

	placed, ok := i.reader.Read(ctx, target)
	if !ok {
		return entities.InstallFail("placed package has no valid plugin descriptor", nil, entities.ErrInvalidDescriptor)
	}
	res := i.loader.Load(ctx, placed)
	if !res.IsSuccess() {
		i.logger.ErrorContext(ctx, "installed plugin failed to load", "plugin_id", id.String(), "error", res.Err)
		return entities.InstallFail(res.Message, nil, res.Err)
	}

	placed = res.Descriptor
	placed.PackageDigest = digest
	i.logger.InfoContext(ctx, "plugin installed", "plugin_id", placed.PluginID, "version", placed.Version,
		"dir", placed.PluginDirectory, "digest", digest.String())
	return entities.InstallSuccess(placed)
}

// Upgrade stages the package extracted by a prior Install next to existing
// and marks existing for deletion. The swap completes on the next discovery
// pass. A failure to mark moves the package back into its temp slot so the
// upgrade can be retried.
func (i *Installer) Upgrade(ctx context.Context, existing *entities.Descriptor, packagePath string) bool {
	if existing == nil || existing.PluginDirectory == "" {
		i.logger.ErrorContext(ctx, "upgrade requires an installed plugin", "package", packagePath)
		return false
	}
	if err := ValidatePackagePath(packagePath); err != nil {
		i.logger.ErrorContext(ctx, "upgrade rejected", "error", err)
		return false
	}

	slot := i.store.TempSlot(PackageName(packagePath))
	if info, err := os.Stat(slot); err != nil || !info.IsDir() {
		i.logger.ErrorContext(ctx, "no extracted package to upgrade from", "plugin_id", existing.PluginID, "slot", slot)
		return false
	}

	staged, err := i.store.StageUpgrade(ctx, slot, existing.PluginDirectory)
	if err != nil {
		i.logger.ErrorContext(ctx, "staging upgrade failed", "plugin_id", existing.PluginID, "error", err)
		_ = i.store.RemoveTemp(context.WithoutCancel(ctx), slot)
		return false
	}

	if err := i.store.MarkForDeletion(ctx, existing.PluginDirectory); err != nil {
		i.logger.ErrorContext(ctx, "marking outdated plugin failed", "plugin_id", existing.PluginID, "error", err)
		if uerr := i.store.UnstageUpgrade(context.WithoutCancel(ctx), staged, slot); uerr != nil {
			i.logger.ErrorContext(ctx, "rolling back staged upgrade failed", "staged", staged, "error", uerr)
		}
		return false
	}

	i.logger.InfoContext(ctx, "plugin upgrade staged", "plugin_id", existing.PluginID, "staged", staged)
	return true
}

// Uninstall marks the plugin directory and its settings and cache
// directories for deletion and discards a staged upgrade. Failures are logged
// and do not fail the operation.
func (i *Installer) Uninstall(ctx context.Context, d *entities.Descriptor) bool {
	if d == nil {
		return false
	}
	if err := i.store.DiscardUpgrade(ctx, d.PluginDirectory); err != nil {
		i.logger.WarnContext(ctx, "failed to discard staged upgrade", "plugin_id", d.PluginID, "error", err)
	}
	for _, dir := range []string{d.PluginDirectory, d.PluginSettingsDirectoryPath, d.PluginCacheDirectoryPath} {
		if dir == "" {
			continue
		}
		if err := i.store.MarkForDeletion(ctx, dir); err != nil {
			i.logger.WarnContext(ctx, "failed to mark directory for deletion", "plugin_id", d.PluginID, "dir", dir, "error", err)
		}
	}
	i.logger.InfoContext(ctx, "plugin uninstalled", "plugin_id", d.PluginID)
	return true
}

func lookup(fn InstalledLookup, id string) *entities.Descriptor {
	if fn == nil {
		return nil
	}
	return fn(id)
}
