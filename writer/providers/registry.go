package providers

import "github.com/metrico/qryn-ai/writer/model"

// Message is a normalized chat message, at least {role, content}.
type Message = map[string]any

// Transformer rewrites a framework specific prompt/completion shape into the
// standard message list. A false second return means the raw value should be
// used untouched.
type Transformer interface {
	Name() string
	CanHandle(attrs model.Attributes, scope model.Scope) bool
	TransformPrompt(raw any) ([]Message, bool)
	TransformCompletion(raw any) ([]Message, bool)
}

// ContentEmbedder is implemented by transformers for frameworks that put the
// full prompt and completion into the span itself, so their spans never wait
// for log records.
type ContentEmbedder interface {
	EmbedsContentInSpan() bool
	ScopeName() string
}

// Registry keeps transformers in registration order. The first one whose
// CanHandle returns true wins. Register is not safe for concurrent use and is
// meant for setup time only.
type Registry struct {
	transformers []Transformer
}

func NewRegistry(transformers ...Transformer) *Registry {
	return &Registry{transformers: append([]Transformer{}, transformers...)}
}

// Default returns the registry of the built-in transformers.
func Default() *Registry {
	return NewRegistry(&Mastra{})
}

func (r *Registry) Register(t Transformer) {
	r.transformers = append(r.transformers, t)
}

func (r *Registry) Find(attrs model.Attributes, scope model.Scope) Transformer {
	if r == nil {
		return nil
	}
	for _, t := range r.transformers {
		if t.CanHandle(attrs, scope) {
			return t
		}
	}
	return nil
}

// ContentScopes lists instrumentation scope names whose spans are
// self-contained.
func (r *Registry) ContentScopes() map[string]bool {
	res := map[string]bool{}
	if r == nil {
		return res
	}
	for _, t := range r.transformers {
		if e, ok := t.(ContentEmbedder); ok && e.EmbedsContentInSpan() {
			res[e.ScopeName()] = true
		}
	}
	return res
}
