package values

import (
	"fmt"
	"strings"
)

// PluginID is a validated plugin identifier such as "ocr.baidu".
// It is used verbatim as a directory name suffix, so it must be path safe.
type PluginID struct {
	value string
}

// NewPluginID creates a PluginID with strict validation.
// A valid identifier must:
// - Be non-empty after trimming
// - Be at most 128 characters long
// - Contain no path separators and no parent directory references
// - Contain only letters, digits, '.', '_' and '-'
func NewPluginID(id string) (PluginID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return PluginID{}, fmt.Errorf("plugin id cannot be empty")
	}

	if len(id) > 128 {
		return PluginID{}, fmt.Errorf("plugin id too long (max 128 chars)")
	}

	if strings.ContainsAny(id, `/\`) {
		return PluginID{}, fmt.Errorf("plugin id cannot contain path separators")
	}

	if strings.Contains(id, "..") {
		return PluginID{}, fmt.Errorf("plugin id cannot contain parent directory references")
	}

	for _, ch := range id {
		if !isValidIDChar(ch) {
			return PluginID{}, fmt.Errorf("invalid plugin id %q: unexpected character %q", id, ch)
		}
	}

	return PluginID{value: id}, nil
}

func isValidIDChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '.' ||
		r == '_' ||
		r == '-'
}

// MustNewPluginID creates a PluginID or panics.
func MustNewPluginID(id string) PluginID {
	pid, err := NewPluginID(id)
	if err != nil {
		panic(err)
	}
	return pid
}

func (p PluginID) String() string {
	return p.value
}

// IsEmpty returns true if this is the zero value
func (p PluginID) IsEmpty() bool {
	return p.value == ""
}
