package values

import (
	"fmt"
	"strings"
)

// Capability is the set of plugin contract variants a loaded module satisfies.
// A module may implement several variants at once.
type Capability uint8

const (
	CapTranslate Capability = 1 << iota
	CapDictionary
	CapOCR
	CapTTS
	CapVocabulary

	// CapNone means the module satisfies no variant of the contract.
	CapNone Capability = 0
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapTranslate, "translate"},
	{CapDictionary, "dictionary"},
	{CapOCR, "ocr"},
	{CapTTS, "tts"},
	{CapVocabulary, "vocabulary"},
}

// CapabilityExports lists the entry point names that map to each variant,
// in the order they are reported.
func CapabilityExports() []string {
	names := make([]string, 0, len(capabilityNames))
	for _, cn := range capabilityNames {
		names = append(names, cn.name)
	}
	return names
}

// ParseCapability parses a single variant name ("translate", "ocr", ...).
func ParseCapability(name string) (Capability, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, cn := range capabilityNames {
		if cn.name == name {
			return cn.c, nil
		}
	}
	return CapNone, fmt.Errorf("unknown capability %q", name)
}

// Has reports whether every bit of other is set in c.
func (c Capability) Has(other Capability) bool {
	return other != CapNone && c&other == other
}

// IsNone reports whether no variant is set.
func (c Capability) IsNone() bool {
	return c == CapNone
}

// Names returns the variant names set in c.
func (c Capability) Names() []string {
	var names []string
	for _, cn := range capabilityNames {
		if c&cn.c != 0 {
			names = append(names, cn.name)
		}
	}
	return names
}

func (c Capability) String() string {
	if c == CapNone {
		return "none"
	}
	return strings.Join(c.Names(), "|")
}
