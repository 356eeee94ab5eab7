// Package parser decodes plugin descriptor files.
package parser

import (
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// YamlDescriptorParser implements DescriptorParser for YAML.
type YamlDescriptorParser struct{}

// NewYamlDescriptorParser creates a new YamlDescriptorParser.
func NewYamlDescriptorParser() DescriptorParser {
	return &YamlDescriptorParser{}
}

// Parse unmarshals YAML bytes into a Descriptor struct.
func (p *YamlDescriptorParser) Parse(data []byte) (*entities.Descriptor, error) {
	var d entities.Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (p *YamlDescriptorParser) Format() string { return "yaml" }

// ForFile picks a parser by descriptor file extension.
func ForFile(name string) (DescriptorParser, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return NewJSONDescriptorParser(), true
	case ".yaml", ".yml":
		return NewYamlDescriptorParser(), true
	}
	return nil, false
}
