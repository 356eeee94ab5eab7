package entities

import (
	"fmt"
	"path/filepath"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/values"
)

// Descriptor is the parsed metadata record for one installed plugin package.
//
// The exported keys below are the on-disk descriptor format. Fields tagged
// "-" are computed by the host and never persisted.
type Descriptor struct {
	PluginID        string `json:"PluginID" yaml:"PluginID" jsonschema:"required,minLength=1,description=Stable plugin identifier"`
	Name            string `json:"Name" yaml:"Name" jsonschema:"description=Display name"`
	Author          string `json:"Author" yaml:"Author"`
	Description     string `json:"Description" yaml:"Description"`
	Website         string `json:"Website" yaml:"Website"`
	Version         string `json:"Version" yaml:"Version" jsonschema:"description=Dotted numeric version"`
	ExecuteFilePath string `json:"ExecuteFilePath" yaml:"ExecuteFilePath" jsonschema:"required,minLength=1,description=Module path relative to the descriptor"`

	// PluginDirectory is the absolute directory holding the descriptor.
	PluginDirectory string `json:"-" yaml:"-"`

	// AssemblyName and PluginType are bound after a successful load.
	AssemblyName string            `json:"-" yaml:"-"`
	PluginType   values.Capability `json:"-" yaml:"-"`

	IsPrePlugin                 bool   `json:"-" yaml:"-"`
	PluginSettingsDirectoryPath string `json:"-" yaml:"-"`
	PluginCacheDirectoryPath    string `json:"-" yaml:"-"`

	// PackageDigest is only set on descriptors returned from a fresh install.
	PackageDigest values.Digest `json:"-" yaml:"-"`
}

// Clone returns a copy safe to hand to callers outside the manager.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// ExecutePath returns the absolute path of the plugin module.
func (d *Descriptor) ExecutePath() string {
	return filepath.Join(d.PluginDirectory, filepath.FromSlash(d.ExecuteFilePath))
}

// DirectoryName returns the base name of PluginDirectory. Settings and cache
// directories are keyed by it.
func (d *Descriptor) DirectoryName() string {
	if d.PluginDirectory == "" {
		return ""
	}
	return filepath.Base(d.PluginDirectory)
}

// ParsedVersion returns the dotted numeric version, or zero if unparsable.
func (d *Descriptor) ParsedVersion() values.Version {
	return values.ParseVersionOrZero(d.Version)
}

// Kind reports "pre-installed" or "user" for log output.
func (d *Descriptor) Kind() string {
	if d.IsPrePlugin {
		return "pre-installed"
	}
	return "user"
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s@%s", d.PluginID, d.Version)
}
