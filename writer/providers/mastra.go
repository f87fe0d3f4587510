package providers

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fastjson"

	"github.com/metrico/qryn-ai/writer/model"
)

const (
	MastraScopeName = "@mastra/otel"
	mastraKeyPrefix = "mastra."
)

var parserPool fastjson.ParserPool

// Mastra normalizes spans of the Mastra agent framework. Mastra nests message
// content as typed parts and wraps the output into a {"text": ...} envelope.
type Mastra struct{}

func (m *Mastra) Name() string { return "mastra" }

func (m *Mastra) CanHandle(attrs model.Attributes, scope model.Scope) bool {
	return scope.Name == MastraScopeName || attrs.HasPrefix(mastraKeyPrefix)
}

func (m *Mastra) EmbedsContentInSpan() bool { return true }
func (m *Mastra) ScopeName() string         { return MastraScopeName }

func (m *Mastra) TransformPrompt(raw any) ([]Message, bool) {
	var res []Message
	ok := withParsed(raw, func(v *fastjson.Value) {
		var msgs []*fastjson.Value
		switch v.Type() {
		case fastjson.TypeObject:
			msgs = v.GetArray("messages")
		case fastjson.TypeArray:
			msgs, _ = v.Array()
		}
		for _, msg := range msgs {
			if msg.Type() != fastjson.TypeObject {
				continue
			}
			role := string(msg.GetStringBytes("role"))
			if role == "" {
				role = "user"
			}
			res = append(res, Message{"role": role, "content": flattenContent(msg.Get("content"))})
		}
	})
	if !ok || len(res) == 0 {
		return nil, false
	}
	return res, true
}

func (m *Mastra) TransformCompletion(raw any) ([]Message, bool) {
	var res []Message
	ok := withParsed(raw, func(v *fastjson.Value) {
		if v.Type() != fastjson.TypeObject {
			return
		}
		text := v.Get("text")
		if text == nil {
			return
		}
		res = []Message{{"role": "assistant", "content": flattenContent(text)}}
	})
	if !ok || res == nil {
		return nil, false
	}
	return res, true
}

// withParsed parses raw (a JSON string or an already decoded value) and calls
// fn while the parser is held. It reports false when raw is not JSON.
func withParsed(raw any, fn func(v *fastjson.Value)) bool {
	var data []byte
	switch r := raw.(type) {
	case nil:
		return false
	case string:
		data = []byte(strings.TrimSpace(r))
	default:
		var err error
		data, err = jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(r)
		if err != nil {
			return false
		}
	}
	if len(data) == 0 || (data[0] != '{' && data[0] != '[') {
		return false
	}
	p := parserPool.Get()
	defer parserPool.Put(p)
	v, err := p.ParseBytes(data)
	if err != nil {
		return false
	}
	fn(v)
	return true
}

// flattenContent joins [{"type":"text","text":"..."}] parts into one string.
// Content without text parts is kept as decoded JSON.
func flattenContent(v *fastjson.Value) any {
	if v == nil {
		return ""
	}
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeArray:
		parts, _ := v.Array()
		var texts []string
		for _, part := range parts {
			switch part.Type() {
			case fastjson.TypeString:
				texts = append(texts, string(part.GetStringBytes()))
			case fastjson.TypeObject:
				if t := part.Get("text"); t != nil && t.Type() == fastjson.TypeString {
					texts = append(texts, string(t.GetStringBytes()))
				}
			}
		}
		if len(texts) > 0 {
			return strings.Join(texts, "\n")
		}
	}
	var res any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(v.MarshalTo(nil), &res); err != nil {
		return v.String()
	}
	return res
}
