package assistant

import (
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const systemPrompt = `You are a calendar assistant for a student's course schedule.
The user's Google Calendar holds their classes, labs, assessments and study
sessions. Help them inspect and adjust it.

Rules:
- Use list_calendar_events to find the events the user is talking about
  before deleting or moving anything. Never guess event ids.
- When the user gives a vague time ("next week", "Friday evening"), resolve
  it to concrete ISO 8601 datetimes yourself.
- After making changes, summarize exactly what was changed.
- If a tool reports an error, tell the user plainly; do not retry the same
  call with the same arguments.`

var chatTools = []openai.Tool{
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name: "list_calendar_events",
			Description: "List calendar events between two ISO datetimes. " +
				"Use this to find specific events the user is referring to " +
				"(e.g. certain course, specific weeks, etc.).",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"date_from": {Type: jsonschema.String, Description: "Start of window (ISO)."},
					"date_to":   {Type: jsonschema.String, Description: "End of window (ISO)."},
					"search_text": {
						Type:        jsonschema.String,
						Description: "Optional text to match against summary/description/location.",
					},
					"max_results": {
						Type:        jsonschema.Integer,
						Description: "Maximum number of events to return.",
					},
				},
				Required: []string{"date_from", "date_to"},
			},
		},
	},
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "delete_calendar_event",
			Description: "Delete a calendar event by its event_id.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"event_id": {Type: jsonschema.String, Description: "The event's Google Calendar id."},
				},
				Required: []string{"event_id"},
			},
		},
	},
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name: "update_calendar_event_time",
			Description: "Move or reschedule an event by providing new start and end " +
				"datetime values in ISO 8601 format.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"event_id":      {Type: jsonschema.String, Description: "The event id."},
					"new_start_iso": {Type: jsonschema.String, Description: "New start."},
					"new_end_iso":   {Type: jsonschema.String, Description: "New end."},
				},
				Required: []string{"event_id", "new_start_iso", "new_end_iso"},
			},
		},
	},
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name: "create_calendar_event",
			Description: "Create a new event in the user's Google Calendar. " +
				"Use this for things like study sessions, office hours, " +
				"one-off reminders, or new recurring classes.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"title":       {Type: jsonschema.String, Description: "Event title."},
					"start_iso":   {Type: jsonschema.String, Description: "Start datetime ISO."},
					"end_iso":     {Type: jsonschema.String, Description: "End datetime ISO."},
					"description": {Type: jsonschema.String},
					"location":    {Type: jsonschema.String},
					"recurrence_rule": {
						Type:        jsonschema.String,
						Description: "RFC 5545 RRULE if recurring.",
					},
				},
				Required: []string{"title", "start_iso", "end_iso"},
			},
		},
	},
}
