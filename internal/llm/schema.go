// internal/llm/schema.go
package llm

// Schema 描述模型结构化输出的字段与必填约束，
// 形状与Gemini REST API的responseSchema（OpenAPI子集）一致。
type Schema map[string]interface{}

func stringField() Schema {
	return Schema{"type": "STRING"}
}

func stringArrayField() Schema {
	return Schema{"type": "ARRAY", "items": Schema{"type": "STRING"}}
}

func objectField(properties Schema, required []string) Schema {
	return Schema{
		"type":       "OBJECT",
		"properties": properties,
		"required":   required,
	}
}

func objectArrayField(properties Schema, required []string) Schema {
	return Schema{
		"type":  "ARRAY",
		"items": objectField(properties, required),
	}
}

// NarrationSchema 旁白模式的输出结构，所有字段必填
func NarrationSchema() Schema {
	return objectField(Schema{
		"type":            stringField(),
		"scenario":        stringField(),
		"persona":         stringField(),
		"content":         stringField(),
		"emotion":         stringField(),
		"tones":           stringArrayField(),
		"environment":     stringField(),
		"integrated_text": stringField(),
	}, []string{"type", "scenario", "persona", "content", "emotion", "tones", "environment", "integrated_text"})
}

// DialogueSchema 对话模式（单对单/多人）的输出结构，所有字段必填
func DialogueSchema() Schema {
	return objectField(Schema{
		"type":     stringField(),
		"scenario": stringField(),
		"characters": objectArrayField(Schema{
			"name":    stringField(),
			"persona": stringField(),
		}, []string{"name", "persona"}),
		"script": objectArrayField(Schema{
			"character": stringField(),
			"line":      stringField(),
			"emotion":   stringField(),
			"tone":      stringField(),
		}, []string{"character", "line", "emotion", "tone"}),
		"integrated_text": stringField(),
	}, []string{"type", "scenario", "characters", "script", "integrated_text"})
}

// NarratorDetailsSchema 旁白者细节建议的输出结构，四个字段全部必填
func NarratorDetailsSchema() Schema {
	return objectField(Schema{
		"persona":     stringField(),
		"emotion":     stringField(),
		"tone":        stringField(),
		"environment": stringField(),
	}, []string{"persona", "emotion", "tone", "environment"})
}
