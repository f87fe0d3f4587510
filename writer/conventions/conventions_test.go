package conventions

import (
	"github.com/metrico/qryn-ai/writer/model"
	"github.com/metrico/qryn-ai/writer/providers"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestGroupIndexed(t *testing.T) {
	attrs := model.Attributes{
		"gen_ai.prompt.1.role":          model.StringValue("user"),
		"gen_ai.prompt.1.content":       model.StringValue("y"),
		"gen_ai.prompt.0.role":          model.StringValue("system"),
		"gen_ai.prompt.0.content":       model.StringValue("x"),
		"gen_ai.prompt.notanumber.role": model.StringValue("user"),
		"gen_ai.prompt.-1.role":         model.StringValue("user"),
		"gen_ai.prompt.2":               model.StringValue("no field"),
		"gen_ai.completion.0.content":   model.StringValue("other prefix"),
	}
	res := GroupIndexed(attrs, "gen_ai.prompt")
	assert.Equal(t, []map[string]any{
		{"role": "system", "content": "x"},
		{"role": "user", "content": "y"},
	}, res)
}

func TestGroupIndexedSparse(t *testing.T) {
	attrs := model.Attributes{
		"gen_ai.prompt.10.content": model.StringValue("b"),
		"gen_ai.prompt.2.content":  model.StringValue("a"),
	}
	res := GroupIndexed(attrs, "gen_ai.prompt")
	assert.Equal(t, []map[string]any{{"content": "a"}, {"content": "b"}}, res)
	assert.Nil(t, GroupIndexed(model.Attributes{}, "gen_ai.prompt"))
}

func TestExtractPostHog(t *testing.T) {
	attrs := model.Attributes{
		"posthog.ai.model":        model.StringValue("gpt-4o"),
		"posthog.ai.input":        model.StringValue(`[{"role":"user","content":"hi"}]`),
		"posthog.ai.output":       model.StringValue("plain answer"),
		"posthog.ai.input_tokens": model.IntValue(12),
		"posthog.ai.temperature":  model.StringValue("0.5"),
		"posthog.ai.is_error":     model.IntValue(1),
		"posthog.ai.error":        model.StringValue("boom"),
		"posthog.ai.unknown":      model.StringValue("ignored"),
		"gen_ai.system":           model.StringValue("openai"),
	}
	res := ExtractPostHog(attrs)
	assert.Equal(t, map[string]any{
		KeyModel:        "gpt-4o",
		KeyPrompt:       []any{map[string]any{"role": "user", "content": "hi"}},
		KeyCompletion:   "plain answer",
		KeyInputTokens:  int64(12),
		KeyTemperature:  0.5,
		KeyErrorMessage: "boom",
	}, res)
}

func TestExtractGenAI(t *testing.T) {
	attrs := model.Attributes{
		"gen_ai.system":                      model.StringValue("openai"),
		"gen_ai.request.model":               model.StringValue("gpt-4o"),
		"gen_ai.response.model":              model.StringValue("gpt-4o-2024-08-06"),
		"gen_ai.operation.name":              model.StringValue("chat"),
		"gen_ai.usage.prompt_tokens":         model.IntValue(10),
		"gen_ai.usage.output_tokens":         model.IntValue(5),
		"gen_ai.request.temperature":         model.DoubleValue(0.2),
		"gen_ai.response.finish_reasons":     model.StringValue(`["stop"]`),
		"gen_ai.prompt.0.role":               model.StringValue("user"),
		"gen_ai.prompt.0.content":            model.StringValue("hi"),
		"gen_ai.completion":                  model.StringValue("hello"),
		"llm.request.functions.0.name":       model.StringValue("get_weather"),
		"llm.request.functions.0.parameters": model.StringValue(`{"type":"object"}`),
	}
	res := ExtractGenAI(attrs, model.Scope{Name: "opentelemetry.instrumentation.openai"}, providers.Default())
	assert.Equal(t, "openai", res[KeyProvider])
	assert.Equal(t, "gpt-4o-2024-08-06", res[KeyModel])
	assert.Equal(t, "chat", res[KeyOperationName])
	assert.Equal(t, int64(10), res[KeyInputTokens])
	assert.Equal(t, int64(5), res[KeyOutputTokens])
	assert.Equal(t, 0.2, res[KeyTemperature])
	assert.Equal(t, []any{"stop"}, res[KeyFinishReasons])
	assert.Equal(t, []map[string]any{{"role": "user", "content": "hi"}}, res[KeyPrompt])
	assert.Equal(t, []any{map[string]any{"role": "assistant", "content": "hello"}}, res[KeyCompletion])
	assert.Equal(t, []map[string]any{{
		"name":         "get_weather",
		"input_schema": map[string]any{"type": "object"},
	}}, res[KeyTools])
}

func TestExtractGenAIMastra(t *testing.T) {
	attrs := model.Attributes{
		"input": model.StringValue(`{"messages":[{"role":"user","content":[{"type":"text","text":"hi"}]}]}`),
	}
	res := ExtractGenAI(attrs, model.Scope{Name: providers.MastraScopeName}, providers.Default())
	assert.Equal(t, []providers.Message{{"role": "user", "content": "hi"}}, res[KeyPrompt])
}

func TestExtractGenAIForeignShape(t *testing.T) {
	raw := `{"messages":[{"role":"user","content":[{"type":"text","text":"hi"}]}]}`
	attrs := model.Attributes{
		"input":         model.StringValue(raw),
		"gen_ai.system": model.StringValue("openai"),
	}
	res := ExtractGenAI(attrs, model.Scope{Name: "opentelemetry.instrumentation.openai"}, providers.Default())
	_, hasPrompt := res[KeyPrompt]
	assert.False(t, hasPrompt)
	assert.Equal(t, map[string]any{"otel.input": raw}, Passthrough(attrs, false))

	attrs["gen_ai.prompt"] = model.StringValue(raw)
	res = ExtractGenAI(attrs, model.Scope{Name: "opentelemetry.instrumentation.openai"}, providers.Default())
	assert.Len(t, res[KeyPrompt], 1)
}

func TestExtractToolsBadSchema(t *testing.T) {
	attrs := model.Attributes{
		"llm.request.functions.0.name":        model.StringValue("a"),
		"llm.request.functions.0.description": model.StringValue("tool a"),
		"llm.request.functions.0.parameters":  model.StringValue(`{broken`),
	}
	assert.Equal(t, []map[string]any{{
		"name":         "a",
		"description":  "tool a",
		"input_schema": `{broken`,
	}}, ExtractTools(attrs))
}

func TestMergeWaterfall(t *testing.T) {
	res := Merge(map[string]any{"model": "a", "provider": "p"}, map[string]any{"model": "b"})
	assert.Equal(t, map[string]any{"model": "b", "provider": "p"}, res)
}

func TestKnownConventions(t *testing.T) {
	assert.True(t, UsesKnownConventions(model.Attributes{"gen_ai.system": model.StringValue("x")}))
	assert.True(t, UsesKnownConventions(model.Attributes{"posthog.ai.model": model.StringValue("x")}))
	assert.False(t, UsesKnownConventions(model.Attributes{"http.method": model.StringValue("GET")}))
	assert.True(t, IsMappedKey("llm.request.functions.0.name"))
	assert.False(t, IsMappedKey("llm.request.type"))
}

func TestPassthrough(t *testing.T) {
	attrs := model.Attributes{
		"gen_ai.system": model.StringValue("openai"),
		"http.method":   model.StringValue("POST"),
		"retries":       model.IntValue(2),
		"input":         model.StringValue("x"),
		"empty":         {},
	}
	assert.Equal(t, map[string]any{
		"otel.http.method": "POST",
		"otel.retries":     int64(2),
	}, Passthrough(attrs, true))
}
