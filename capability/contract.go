// Package capability defines the contract every plugin module satisfies and
// the registration-callback loader for plugins compiled into the host.
package capability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/values"
)

// Context is what the host exposes to an initialized plugin.
type Context interface {
	// LoadSettings decodes the plugin's stored settings into v.
	// A plugin without stored settings leaves v untouched.
	LoadSettings(v any) error
	// SaveSettings persists v as the plugin's settings.
	SaveSettings(v any) error
	// HTTP returns the client plugins use for outbound requests.
	HTTP() *http.Client
	// GetTranslation looks up a localized string, returning key when absent.
	GetTranslation(key string) string
	// Logger returns a logger scoped to the plugin.
	Logger() *slog.Logger
}

// Plugin is the part of the contract shared by every variant.
type Plugin interface {
	Init(ctx context.Context, hc Context) error
	Dispose() error
}

// TranslateRequest asks for a text translation.
type TranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// TranslateResponse is a translation result.
type TranslateResponse struct {
	Text string `json:"text"`
}

// Translator translates text.
type Translator interface {
	Plugin
	Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error)
}

// DictionaryRequest asks for a word lookup.
type DictionaryRequest struct {
	Word       string `json:"word"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// DictionaryResponse is a dictionary entry.
type DictionaryResponse struct {
	Word        string   `json:"word"`
	Phonetics   []string `json:"phonetics,omitempty"`
	Definitions []string `json:"definitions,omitempty"`
}

// Dictionary looks up single words.
type Dictionary interface {
	Plugin
	Lookup(ctx context.Context, req DictionaryRequest) (*DictionaryResponse, error)
}

// OCRRequest carries an encoded image.
type OCRRequest struct {
	Image    []byte `json:"image"`
	Language string `json:"language,omitempty"`
}

// OCRResponse holds recognized text.
type OCRResponse struct {
	Text  string   `json:"text"`
	Lines []string `json:"lines,omitempty"`
}

// OCR recognizes text in images.
type OCR interface {
	Plugin
	Recognize(ctx context.Context, req OCRRequest) (*OCRResponse, error)
}

// TTSRequest asks for synthesized speech.
type TTSRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Voice    string `json:"voice,omitempty"`
}

// TTSResponse holds encoded audio.
type TTSResponse struct {
	Audio  []byte `json:"audio"`
	Format string `json:"format"`
}

// TTS speaks text.
type TTS interface {
	Plugin
	Speak(ctx context.Context, req TTSRequest) (*TTSResponse, error)
}

// VocabularyRequest saves a word to a vocabulary book.
type VocabularyRequest struct {
	Word    string `json:"word"`
	Context string `json:"context,omitempty"`
}

// VocabularyResponse reports the outcome of a save.
type VocabularyResponse struct {
	Saved   bool   `json:"saved"`
	Message string `json:"message,omitempty"`
}

// Vocabulary stores words for later review.
type Vocabulary interface {
	Plugin
	SaveWord(ctx context.Context, req VocabularyRequest) (*VocabularyResponse, error)
}

// Reporter is implemented by plugins whose variant set is only known at run
// time, such as wasm modules. Such a plugin may carry every variant method
// and answer ErrUnsupported for the ones its module does not export.
type Reporter interface {
	Capabilities() values.Capability
}

// ErrUnsupported is returned by a variant method the plugin does not provide.
var ErrUnsupported = errors.New("capability not supported by plugin")

// Detect returns the contract variants p implements.
func Detect(p Plugin) values.Capability {
	if p == nil {
		return values.CapNone
	}
	if r, ok := p.(Reporter); ok {
		return r.Capabilities()
	}
	var c values.Capability
	if _, ok := p.(Translator); ok {
		c |= values.CapTranslate
	}
	if _, ok := p.(Dictionary); ok {
		c |= values.CapDictionary
	}
	if _, ok := p.(OCR); ok {
		c |= values.CapOCR
	}
	if _, ok := p.(TTS); ok {
		c |= values.CapTTS
	}
	if _, ok := p.(Vocabulary); ok {
		c |= values.CapVocabulary
	}
	return c
}
