// Package i18n loads plugin language resources: string tables consulted by
// GetTranslation and metadata overrides for a plugin's display name and
// description.
package i18n

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// Folder is the resource directory inside a plugin package.
const Folder = "Languages"

// Fallback is used for string tables when the active locale has none.
var Fallback = language.English

const resourcePattern = Folder + "/*.{yaml,yml,json}"

// Resources are the language resources of one plugin for one locale.
type Resources struct {
	// Locale is the file base name the strings were read from.
	Locale      string
	Strings     map[string]string
	Name        string
	Description string
}

// Apply overrides the descriptor's display metadata with non-empty values.
func (r *Resources) Apply(d *entities.Descriptor) {
	if r == nil || d == nil {
		return
	}
	if strings.TrimSpace(r.Name) != "" {
		d.Name = r.Name
	}
	if strings.TrimSpace(r.Description) != "" {
		d.Description = r.Description
	}
}

type metaOverride struct {
	Name        string `json:"Name"`
	Description string `json:"Description"`
}

// Localizer resolves plugin resources for the active locale.
type Localizer struct {
	mu     sync.RWMutex
	locale language.Tag
	logger *slog.Logger
}

// Option configures a Localizer.
type Option func(*Localizer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(z *Localizer) { z.logger = l }
}

// NewLocalizer creates a localizer for locale, e.g. "zh-CN". An unparsable
// locale falls back to English.
func NewLocalizer(locale string, opts ...Option) *Localizer {
	z := &Localizer{logger: slog.Default()}
	for _, opt := range opts {
		opt(z)
	}
	z.SetLocale(locale)
	return z
}

// SetLocale changes the active locale.
func (z *Localizer) SetLocale(locale string) {
	tag, err := language.Parse(locale)
	if err != nil {
		if locale != "" {
			z.logger.Warn("unknown locale, using fallback", "locale", locale, "error", err)
		}
		tag = Fallback
	}
	z.mu.Lock()
	z.locale = tag
	z.mu.Unlock()
}

// Locale returns the active locale.
func (z *Localizer) Locale() language.Tag {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.locale
}

// Load reads the resources under pluginDir/Languages. A plugin without
// resources yields nil and no error.
func (z *Localizer) Load(pluginDir string) (*Resources, error) {
	return z.LoadFS(os.DirFS(pluginDir))
}

// LoadFS is Load over an arbitrary filesystem rooted at the plugin directory.
func (z *Localizer) LoadFS(fsys fs.FS) (*Resources, error) {
	files, err := doublestar.Glob(fsys, resourcePattern)
	if err != nil {
		return nil, fmt.Errorf("scan language resources: %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}

	tables := map[string]string{}
	metas := map[string]string{}
	for _, f := range files {
		base := path.Base(f)
		ext := path.Ext(base)
		name := strings.TrimSuffix(base, ext)
		if ext == ".json" {
			metas[name] = f
		} else {
			tables[name] = f
		}
	}

	locale := z.Locale()
	res := &Resources{}

	if name, ok := match(locale, keys(tables), true); ok {
		strs, err := readTable(fsys, tables[name])
		if err != nil {
			return nil, err
		}
		res.Locale = name
		res.Strings = strs
	}

	// Metadata overrides apply only for the active locale, never the fallback.
	if name, ok := match(locale, keys(metas), false); ok {
		meta, err := readMeta(fsys, metas[name])
		if err != nil {
			z.logger.Error("failed to read plugin metadata translation", "file", metas[name], "error", err)
		} else {
			res.Name = meta.Name
			res.Description = meta.Description
		}
	}
	return res, nil
}

// match picks the best resource name for locale. With fallback set, an
// English resource is used when nothing closer exists.
func match(locale language.Tag, names []string, fallback bool) (string, bool) {
	var (
		tags   []language.Tag
		byTags []string
	)
	for _, n := range names {
		tag, err := language.Parse(n)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		byTags = append(byTags, n)
	}
	if len(tags) == 0 {
		return "", false
	}

	_, idx, conf := language.NewMatcher(tags).Match(locale)
	if conf != language.No {
		return byTags[idx], true
	}
	if !fallback {
		return "", false
	}
	_, idx, conf = language.NewMatcher(tags).Match(Fallback)
	if conf == language.No {
		return "", false
	}
	return byTags[idx], true
}

func readTable(fsys fs.FS, name string) (map[string]string, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	strs := map[string]string{}
	if err := yaml.Unmarshal(data, &strs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return strs, nil
}

func readMeta(fsys fs.FS, name string) (*metaOverride, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	var m metaOverride
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
