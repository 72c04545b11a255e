package upstream

import (
	"encoding/json"

	"github.com/cloudwego/eino/schema"
)

// toEinoMessages adapts our history to eino's schema.Message, the wire
// shape every eino chat model accepts.
func toEinoMessages(history []Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		role := schema.Assistant
		switch m.Role {
		case RoleUser:
			role = schema.User
		case RoleSystem:
			role = schema.System
		case RoleTool:
			role = schema.Tool
		}

		einoMsg := &schema.Message{
			Role:    role,
			Content: m.Content,
		}
		if m.Role == RoleTool {
			einoMsg.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			einoMsg.ToolCalls = append(einoMsg.ToolCalls, schema.ToolCall{
				ID: tc.ID,
				Function: schema.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		result = append(result, einoMsg)
	}
	return result
}

// fromEinoMessage adapts a model's reply back into our vocabulary.
func fromEinoMessage(msg *schema.Message) Message {
	out := Message{
		Role:    RoleAssistant,
		Content: msg.Content,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

// finishReasonFromEino normalizes a raw provider finish-reason string into
// our vocabulary. Unrecognized strings map to FinishOther rather than
// erroring, since a future model revision may introduce new ones.
func finishReasonFromEino(raw string) FinishReason {
	switch raw {
	case "stop":
		return FinishStop
	case "end_turn":
		return FinishEndTurn
	case "tool_calls", "tool_use":
		return FinishToolUse
	case "length", "max_tokens":
		return FinishLength
	case "content_filter":
		return FinishContentFilter
	case "":
		return FinishStop
	default:
		return FinishOther
	}
}

// resolveFinishReason determines a ChatResult's finish reason from the
// provider's raw value and whether the reply carried tool calls. An
// explicit terminal reason from the provider (stop, end_turn, length,
// content_filter, tool_use/tool_calls) always wins, per spec §4.5 and
// scenario S3 -- a model can emit trailing tool calls alongside a "stop"
// it does not intend to be executed. FinishToolUse is only inferred from
// tool-call presence when the provider gave no authoritative reason at
// all (no ResponseMeta, an empty FinishReason, or one this vocabulary
// doesn't recognize).
func resolveFinishReason(meta *schema.ResponseMeta, hasToolCalls bool) FinishReason {
	raw := ""
	if meta != nil {
		raw = meta.FinishReason
	}
	if raw == "" {
		if hasToolCalls {
			return FinishToolUse
		}
		return FinishStop
	}
	reason := finishReasonFromEino(raw)
	if reason == FinishOther && hasToolCalls {
		return FinishToolUse
	}
	return reason
}

// usageFromEino extracts usage, returning nil when the provider didn't
// report any (e.g. mid-stream chunks before the final ResponseMeta).
func usageFromEino(meta *schema.ResponseMeta) *Usage {
	if meta == nil || meta.Usage == nil {
		return nil
	}
	return &Usage{
		PromptTokens:     meta.Usage.PromptTokens,
		CompletionTokens: meta.Usage.CompletionTokens,
		TotalTokens:      meta.Usage.TotalTokens,
	}
}

// toEinoTools converts tool schemas to eino's ToolInfo, parsing each
// JSON-schema parameter object into eino's ParameterInfo map.
func toEinoTools(tools []ToolSchema) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		var params map[string]*schema.ParameterInfo
		if len(t.Parameters) > 0 {
			params = parseJSONSchemaToParams(t.Parameters)
		}
		result[i] = &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return result
}

func parseJSONSchemaToParams(rawSchema json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(rawSchema, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool, len(jsonSchema.Required))
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(jsonSchema.Properties))
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}
		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}
	return params
}
