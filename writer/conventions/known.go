package conventions

import (
	"strings"

	"github.com/metrico/qryn-ai/writer/model"
)

// Merge applies the extraction waterfall: PostHog-native values win over
// GenAI ones.
func Merge(genai, posthog map[string]any) map[string]any {
	res := make(map[string]any, len(genai)+len(posthog))
	for k, v := range genai {
		res[k] = v
	}
	for k, v := range posthog {
		res[k] = v
	}
	return res
}

// UsesKnownConventions reports whether the attributes follow the PostHog or
// GenAI naming.
func UsesKnownConventions(attrs model.Attributes) bool {
	return attrs.HasPrefix(PostHogPrefix) || attrs.HasPrefix(GenAIPrefix)
}

var mappedPrefixes = []string{PostHogPrefix, GenAIPrefix, functionsPrefix + "."}

// IsMappedKey reports keys consumed by the extractors.
func IsMappedKey(key string) bool {
	for _, p := range mappedPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Passthrough copies the unmapped attributes as otel.<key>. The raw content
// keys are dropped too when a provider transformer consumed them.
func Passthrough(attrs model.Attributes, providerHandled bool) map[string]any {
	res := map[string]any{}
	for k, v := range attrs {
		if IsMappedKey(k) {
			continue
		}
		if providerHandled && (k == "input" || k == "output") {
			continue
		}
		if v.IsEmpty() {
			continue
		}
		res["otel."+k] = v.Any()
	}
	return res
}
