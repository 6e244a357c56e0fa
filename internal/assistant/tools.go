package assistant

import (
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
)

// toolDefs фиксированная схема действий, отправляется бэкенду при каждом
// вызове. Временные поля описаны как абсолютные ISO-метки: относительные
// выражения («завтра в 9») разрешает сама модель.
func toolDefs() []openai.ChatCompletionToolUnionParam {
	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "save_note",
			Description: openai.String("Save a free-text note. Use for generic notes, thoughts, ideas without a specific time."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string", "description": "Full note content"},
				},
				"required": []string{"text"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "create_list",
			Description: openai.String("Create a list (shopping list, todo list, packing list, etc) with initial items."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string", "description": "List name, e.g. 'Shopping', 'Todo'"},
					"items": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Initial list items",
					},
				},
				"required": []string{"name", "items"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "add_item",
			Description: openai.String("Add an item to an existing list, found by name or id."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"list_name_or_id": map[string]any{"type": "string", "description": "Name (or numeric id) of the existing list"},
					"text":            map[string]any{"type": "string", "description": "Item to add"},
				},
				"required": []string{"list_name_or_id", "text"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "create_appointment",
			Description: openai.String("Create a calendar appointment with an absolute date and time."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"title":    map[string]any{"type": "string", "description": "Appointment title"},
					"start_at": map[string]any{"type": "string", "description": "Absolute ISO datetime, e.g. 2026-02-23T15:00"},
					"remind_lead_minutes": map[string]any{
						"type":        "integer",
						"description": "How many minutes before start to notify (optional)",
					},
				},
				"required": []string{"title", "start_at"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "create_reminder",
			Description: openai.String("Set a reminder that will trigger a notification at the specified absolute time."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"text":    map[string]any{"type": "string", "description": "What to remind about"},
					"fire_at": map[string]any{"type": "string", "description": "Absolute ISO datetime, e.g. 2026-02-23T10:00"},
				},
				"required": []string{"text", "fire_at"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "query_notes",
			Description: openai.String("Show saved notes and lists. Use when the user asks to see their notes."),
			Parameters: openai.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "query_agenda",
			Description: openai.String("Show upcoming appointments and pending reminders."),
			Parameters: openai.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
			},
		}),
	}
}

// systemPrompt несёт текущее локальное время, чтобы бэкенд разрешал
// относительные выражения в абсолютные метки сам.
func systemPrompt(now time.Time) string {
	return fmt.Sprintf(
		"You are a voice assistant for notes, lists, appointments and reminders. "+
			"Current local datetime: %s (%s). "+
			"Always call exactly the tools needed to fulfil the request. "+
			"Resolve relative times (\"tomorrow at 9\", \"in one hour\") into absolute ISO datetimes yourself. "+
			"Never invent times in the past.",
		now.Format("2006-01-02 15:04"), now.Weekday().String(),
	)
}
