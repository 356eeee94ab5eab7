package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"github.com/tidwall/gjson"

	"github.com/stranslate-dev/stranslate-plugin-host/capability"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/values"
	"github.com/stranslate-dev/stranslate-plugin-host/wazero"
)

var (
	_ capability.Translator = (*Instance)(nil)
	_ capability.Dictionary = (*Instance)(nil)
	_ capability.OCR        = (*Instance)(nil)
	_ capability.TTS        = (*Instance)(nil)
	_ capability.Vocabulary = (*Instance)(nil)
	_ capability.Reporter   = (*Instance)(nil)
)

// InitRequest is the payload passed to the guest init export.
type InitRequest struct {
	PluginID string `json:"plugin_id"`
	Version  string `json:"version"`
}

// Instance is an instantiated wasm plugin. It carries every variant method;
// the ones its module does not export return capability.ErrUnsupported.
// Calls are serialized because a module instance is single threaded.
type Instance struct {
	mu       sync.Mutex
	module   api.Module
	caps     values.Capability
	hc       capability.Context
	pluginID string
	version  string
}

// Capabilities implements capability.Reporter.
func (p *Instance) Capabilities() values.Capability { return p.caps }

// Init binds the host context and calls the guest init export.
func (p *Instance) Init(ctx context.Context, hc capability.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hc = hc

	input, err := json.Marshal(InitRequest{PluginID: p.pluginID, Version: p.version})
	if err != nil {
		return err
	}
	packed, err := p.callRaw(ctx, ExportInit, input)
	if err != nil {
		return err
	}
	return p.unmarshalPacked(ExportInit, packed, nil)
}

// Dispose calls the guest dispose export and closes the instance.
func (p *Instance) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx := context.Background()
	var callErr error
	if fn := p.module.ExportedFunction(ExportDispose); fn != nil {
		if _, err := fn.Call(p.bind(ctx)); err != nil {
			callErr = fmt.Errorf("dispose failed: %w", err)
		}
	}
	if err := p.module.Close(ctx); err != nil && callErr == nil {
		callErr = err
	}
	return callErr
}

// Translate implements capability.Translator.
func (p *Instance) Translate(ctx context.Context, req capability.TranslateRequest) (*capability.TranslateResponse, error) {
	var resp capability.TranslateResponse
	if err := p.invoke(ctx, values.CapTranslate, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Lookup implements capability.Dictionary.
func (p *Instance) Lookup(ctx context.Context, req capability.DictionaryRequest) (*capability.DictionaryResponse, error) {
	var resp capability.DictionaryResponse
	if err := p.invoke(ctx, values.CapDictionary, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recognize implements capability.OCR.
func (p *Instance) Recognize(ctx context.Context, req capability.OCRRequest) (*capability.OCRResponse, error) {
	var resp capability.OCRResponse
	if err := p.invoke(ctx, values.CapOCR, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Speak implements capability.TTS.
func (p *Instance) Speak(ctx context.Context, req capability.TTSRequest) (*capability.TTSResponse, error) {
	var resp capability.TTSResponse
	if err := p.invoke(ctx, values.CapTTS, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveWord implements capability.Vocabulary.
func (p *Instance) SaveWord(ctx context.Context, req capability.VocabularyRequest) (*capability.VocabularyResponse, error) {
	var resp capability.VocabularyResponse
	if err := p.invoke(ctx, values.CapVocabulary, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *Instance) invoke(ctx context.Context, c values.Capability, req, resp any) error {
	if !p.caps.Has(c) {
		return fmt.Errorf("%s: %w", c, capability.ErrUnsupported)
	}
	input, err := json.Marshal(req)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	packed, err := p.callRaw(ctx, c.String(), input)
	if err != nil {
		return err
	}
	return p.unmarshalPacked(c.String(), packed, resp)
}

func (p *Instance) bind(ctx context.Context) context.Context {
	if p.hc == nil {
		return ctx
	}
	return wazero.WithHostContext(ctx, p.hc)
}

// callRaw invokes a plugin function with raw bytes.
func (p *Instance) callRaw(ctx context.Context, name string, input []byte) (uint64, error) {
	fn := p.module.ExportedFunction(name)
	if fn == nil {
		return 0, fmt.Errorf("function %q not found", name)
	}
	ctx = p.bind(ctx)

	packedInput, err := wazero.WriteGuest(ctx, p.module, input)
	if err != nil {
		return 0, err
	}
	res, err := fn.Call(ctx, packedInput)
	if err != nil {
		return 0, fmt.Errorf("call %s failed: %w", name, err)
	}
	return res[0], nil
}

// PluginError is a failure reported by the guest in an "error" object.
type PluginError struct {
	Function string
	Code     string
	Message  string
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s failed: %s: %s", e.Function, e.Code, e.Message)
}

// unmarshalPacked reads the JSON result of fn at packed. A result carrying an
// "error" object is returned as a *PluginError; an empty result leaves v
// untouched.
func (p *Instance) unmarshalPacked(fn string, packed uint64, v any) error {
	data, err := wazero.ReadPacked(p.module, packed)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("plugin %s returned malformed JSON", fn)
	}
	if e := gjson.GetBytes(data, "error"); e.IsObject() {
		return &PluginError{Function: fn, Code: e.Get("code").String(), Message: e.Get("message").String()}
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(data, v)
}
