package conventions

import (
	"github.com/metrico/qryn-ai/writer/model"
	"github.com/metrico/qryn-ai/writer/providers"
)

const (
	GenAIPrefix      = "gen_ai."
	promptPrefix     = "gen_ai.prompt"
	completionPrefix = "gen_ai.completion"
)

// scalar gen_ai.* attributes in priority order per normalized key
var genAIScalars = []struct {
	key   string
	kind  valueKind
	attrs []string
}{
	{KeyProvider, kindString, []string{"gen_ai.system", "gen_ai.provider.name"}},
	{KeyModel, kindString, []string{"gen_ai.response.model", "gen_ai.request.model"}},
	{KeyOperationName, kindString, []string{"gen_ai.operation.name"}},
	{KeySessionID, kindString, []string{"gen_ai.conversation.id"}},
	{KeyInputTokens, kindInt, []string{"gen_ai.usage.input_tokens", "gen_ai.usage.prompt_tokens"}},
	{KeyOutputTokens, kindInt, []string{"gen_ai.usage.output_tokens", "gen_ai.usage.completion_tokens"}},
	{KeyCacheReadInputTokens, kindInt, []string{"gen_ai.usage.cache_read_input_tokens"}},
	{KeyCacheCreationInputTokens, kindInt, []string{"gen_ai.usage.cache_creation_input_tokens"}},
	{KeyTemperature, kindFloat, []string{"gen_ai.request.temperature"}},
	{KeyMaxTokens, kindInt, []string{"gen_ai.request.max_tokens"}},
	{KeyTopP, kindFloat, []string{"gen_ai.request.top_p"}},
	{KeyFrequencyPenalty, kindFloat, []string{"gen_ai.request.frequency_penalty"}},
	{KeyPresencePenalty, kindFloat, []string{"gen_ai.request.presence_penalty"}},
	{KeyStream, kindBool, []string{"gen_ai.request.stream"}},
	{KeyResponseID, kindString, []string{"gen_ai.response.id"}},
	{KeyFinishReasons, kindJSON, []string{"gen_ai.response.finish_reasons"}},
}

// attributes a provider transformer may read the raw content from
var (
	promptSources     = []string{promptPrefix, "gen_ai.input.messages", "input"}
	completionSources = []string{completionPrefix, "gen_ai.output.messages", "output"}
)

// ExtractGenAI reads the gen_ai.* semantic convention attributes. When the
// registry holds a transformer for this span, its prompt/completion replace
// the generic ones.
func ExtractGenAI(attrs model.Attributes, scope model.Scope, registry *providers.Registry) map[string]any {
	res := map[string]any{}
	for _, s := range genAIScalars {
		for _, name := range s.attrs {
			v, ok := attrs[name]
			if !ok {
				continue
			}
			if val, ok := convert(v, s.kind); ok {
				res[s.key] = val
				break
			}
		}
	}
	if tools := ExtractTools(attrs); tools != nil {
		res[KeyTools] = tools
	}

	t := registry.Find(attrs, scope)
	if prompt := extractContent(attrs, t, promptPrefix, "gen_ai.input.messages", "user", promptSources, true); !IsEmpty(prompt) {
		res[KeyPrompt] = prompt
	}
	if completion := extractContent(attrs, t, completionPrefix, "gen_ai.output.messages", "assistant", completionSources, false); !IsEmpty(completion) {
		res[KeyCompletion] = completion
	}
	return res
}

func extractContent(attrs model.Attributes, t providers.Transformer, prefix, messagesKey, role string,
	sources []string, prompt bool) any {
	var raw model.Value
	if t != nil {
		raw = firstPresent(attrs, sources)
		if !raw.IsEmpty() {
			var msgs []providers.Message
			var ok bool
			if prompt {
				msgs, ok = t.TransformPrompt(raw.Any())
			} else {
				msgs, ok = t.TransformCompletion(raw.Any())
			}
			if ok {
				return msgs
			}
		}
	}
	if indexed := GroupIndexed(attrs, prefix); indexed != nil {
		return indexed
	}
	for _, name := range []string{prefix, messagesKey} {
		if v, ok := attrs[name]; ok {
			if msgs := messagesOf(v, role); msgs != nil {
				return msgs
			}
		}
	}
	if !raw.IsEmpty() {
		if s, ok := raw.Str(); ok {
			return parseJSONOrRaw(s)
		}
		return raw.Any()
	}
	return nil
}

func firstPresent(attrs model.Attributes, names []string) model.Value {
	for _, n := range names {
		if v, ok := attrs[n]; ok && !v.IsEmpty() {
			return v
		}
	}
	return model.Value{}
}
