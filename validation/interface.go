package validation

// Document formats accepted by Validate.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DocumentValidator validates a raw document against a registered schema.
type DocumentValidator interface {
	Validate(data []byte, format string) error
}
