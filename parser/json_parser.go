package parser

import (
	"encoding/json"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// JSONDescriptorParser implements DescriptorParser for JSON.
// Keys match case-insensitively.
type JSONDescriptorParser struct{}

// NewJSONDescriptorParser creates a new JSONDescriptorParser.
func NewJSONDescriptorParser() DescriptorParser {
	return &JSONDescriptorParser{}
}

// Parse unmarshals JSON bytes into a Descriptor struct.
func (p *JSONDescriptorParser) Parse(data []byte) (*entities.Descriptor, error) {
	var d entities.Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (p *JSONDescriptorParser) Format() string { return "json" }
