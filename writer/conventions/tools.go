package conventions

import "github.com/metrico/qryn-ai/writer/model"

const functionsPrefix = "llm.request.functions"

// ExtractTools builds tool definitions out of llm.request.functions.N.*.
func ExtractTools(attrs model.Attributes) []map[string]any {
	fns := GroupIndexed(attrs, functionsPrefix)
	if len(fns) == 0 {
		return nil
	}
	res := make([]map[string]any, 0, len(fns))
	for _, fn := range fns {
		tool := map[string]any{}
		if name, ok := fn["name"]; ok {
			tool["name"] = name
		}
		if desc, ok := fn["description"]; ok {
			tool["description"] = desc
		}
		if params, ok := fn["parameters"]; ok {
			if s, isStr := params.(string); isStr {
				tool["input_schema"] = parseJSONOrRaw(s)
			} else {
				tool["input_schema"] = params
			}
		}
		if len(tool) > 0 {
			res = append(res, tool)
		}
	}
	return res
}
