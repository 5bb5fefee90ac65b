// Package assistant answers natural-language questions about the
// user's calendar and edits it through model tool calls.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"

	"courseplanner/internal"
)

// ErrNotConnected is returned when no calendar account is stored.
var ErrNotConnected = errors.New("assistant: calendar account not connected")

// ErrNoAPIKey is returned when chat is attempted without an OpenAI key.
var ErrNoAPIKey = errors.New("assistant: OPENAI_API_KEY is not configured")

const defaultListResults = 50

type Storage interface {
	Account(ctx context.Context, platform string) (*internal.Account, error)
	UnlinkProviderEvent(ctx context.Context, providerID string) error
}

// Message is one turn of the chat transcript as sent by the client.
// Roles other than "user" and "assistant" are ignored.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Assistant struct {
	log     *logrus.Entry
	ai      *openai.Client
	model   string
	mux     internal.Mux
	storage Storage
	loc     *time.Location

	Platform   string
	CalendarID string
}

func New(log *logrus.Entry, apiKey, model string, mux internal.Mux, storage Storage, loc *time.Location) *Assistant {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	a := &Assistant{
		log:        log,
		model:      model,
		mux:        mux,
		storage:    storage,
		loc:        loc,
		Platform:   "google",
		CalendarID: "primary",
	}
	if apiKey != "" {
		a.ai = openai.NewClient(apiKey)
	}
	return a
}

// Chat runs one round of the conversation: a completion with the
// calendar tools available, execution of any tool calls against the
// remote calendar, and a follow-up completion so the model can report
// what it did. Returns the assistant's reply.
func (a *Assistant) Chat(ctx context.Context, transcript []Message) (string, error) {
	if a.ai == nil {
		return "", ErrNoAPIKey
	}

	provider, err := a.mux.Get(a.Platform)
	if err != nil {
		return "", err
	}
	acc, err := a.storage.Account(ctx, a.Platform)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	for _, m := range transcript {
		if m.Role == openai.ChatMessageRoleUser || m.Role == openai.ChatMessageRoleAssistant {
			messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
		}
	}

	first, err := a.ai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
		Tools:    chatTools,
	})
	if err != nil {
		return "", fmt.Errorf("assistant: model request: %w", err)
	}
	if len(first.Choices) == 0 {
		return "", errors.New("assistant: empty model response")
	}

	msg := first.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return msg.Content, nil
	}

	messages = append(messages, msg)
	for _, tc := range msg.ToolCalls {
		result := a.runTool(ctx, provider, acc, tc.Function.Name, tc.Function.Arguments)
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: tc.ID,
			Name:       tc.Function.Name,
			Content:    result,
		})
	}

	second, err := a.ai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("assistant: follow-up request: %w", err)
	}
	if len(second.Choices) == 0 {
		return "", errors.New("assistant: empty follow-up response")
	}
	return second.Choices[0].Message.Content, nil
}

// runTool executes one tool call and returns its result as a JSON
// string for the tool message. Tool failures are reported back to the
// model rather than aborting the chat.
func (a *Assistant) runTool(ctx context.Context, provider internal.Provider, acc *internal.Account, name, rawArgs string) string {
	a.log.WithFields(logrus.Fields{"tool": name, "args": rawArgs}).Debug("running calendar tool")

	var (
		result any
		err    error
	)
	switch name {
	case "list_calendar_events":
		result, err = a.listEvents(ctx, provider, acc, rawArgs)
	case "delete_calendar_event":
		result, err = a.deleteEvent(ctx, provider, acc, rawArgs)
	case "update_calendar_event_time":
		result, err = a.updateEventTime(ctx, provider, acc, rawArgs)
	case "create_calendar_event":
		result, err = a.createEvent(ctx, provider, acc, rawArgs)
	default:
		err = fmt.Errorf("unknown tool %q", name)
	}
	if err != nil {
		a.log.WithField("tool", name).WithError(err).Warn("calendar tool failed")
		result = map[string]any{"ok": false, "error": err.Error()}
	}

	out, err := json.Marshal(result)
	if err != nil {
		return `{"ok": false, "error": "unencodable tool result"}`
	}
	return string(out)
}

type listedEvent struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location,omitempty"`
}

func (a *Assistant) listEvents(ctx context.Context, provider internal.Provider, acc *internal.Account, rawArgs string) (any, error) {
	var args struct {
		DateFrom   string `json:"date_from"`
		DateTo     string `json:"date_to"`
		SearchText string `json:"search_text"`
		MaxResults int64  `json:"max_results"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("bad arguments: %w", err)
	}
	from, err := a.parseISO(args.DateFrom)
	if err != nil {
		return nil, fmt.Errorf("date_from: %w", err)
	}
	to, err := a.parseISO(args.DateTo)
	if err != nil {
		return nil, fmt.Errorf("date_to: %w", err)
	}
	if args.MaxResults <= 0 {
		args.MaxResults = defaultListResults
	}

	it, err := provider.Events(ctx, acc, a.CalendarID, internal.EventQuery{
		From:       from,
		To:         to,
		SearchText: args.SearchText,
		MaxResults: args.MaxResults,
	})
	if err != nil {
		return nil, err
	}

	events := []listedEvent{}
	for it.Next() {
		ev := it.Event()
		events = append(events, listedEvent{
			ID:       ev.ID,
			Summary:  ev.Summary,
			Start:    ev.Start.Format(time.RFC3339),
			End:      ev.End.Format(time.RFC3339),
			Location: ev.Location,
		})
		if int64(len(events)) >= args.MaxResults {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "events": events}, nil
}

func (a *Assistant) deleteEvent(ctx context.Context, provider internal.Provider, acc *internal.Account, rawArgs string) (any, error) {
	var args struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("bad arguments: %w", err)
	}
	if args.EventID == "" {
		return nil, errors.New("event_id is required")
	}
	if err := provider.DeleteEvent(ctx, acc, a.CalendarID, args.EventID); err != nil {
		return nil, err
	}
	// Drop any sync link so a future re-sync recreates instead of
	// trying to update the deleted event.
	if err := a.storage.UnlinkProviderEvent(ctx, args.EventID); err != nil {
		a.log.WithError(err).Warn("could not unlink deleted event")
	}
	return map[string]any{"ok": true, "deleted_event_id": args.EventID}, nil
}

func (a *Assistant) updateEventTime(ctx context.Context, provider internal.Provider, acc *internal.Account, rawArgs string) (any, error) {
	var args struct {
		EventID     string `json:"event_id"`
		NewStartISO string `json:"new_start_iso"`
		NewEndISO   string `json:"new_end_iso"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("bad arguments: %w", err)
	}
	start, err := a.parseISO(args.NewStartISO)
	if err != nil {
		return nil, fmt.Errorf("new_start_iso: %w", err)
	}
	end, err := a.parseISO(args.NewEndISO)
	if err != nil {
		return nil, fmt.Errorf("new_end_iso: %w", err)
	}

	updated, err := provider.MoveEvent(ctx, acc, a.CalendarID, args.EventID, start, end)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"ok":               true,
		"updated_event_id": updated.ID,
		"new_start":        updated.Start.Format(time.RFC3339),
		"new_end":          updated.End.Format(time.RFC3339),
	}, nil
}

func (a *Assistant) createEvent(ctx context.Context, provider internal.Provider, acc *internal.Account, rawArgs string) (any, error) {
	var args struct {
		Title          string `json:"title"`
		StartISO       string `json:"start_iso"`
		EndISO         string `json:"end_iso"`
		Description    string `json:"description"`
		Location       string `json:"location"`
		RecurrenceRule string `json:"recurrence_rule"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("bad arguments: %w", err)
	}
	if args.Title == "" {
		return nil, errors.New("title is required")
	}
	start, err := a.parseISO(args.StartISO)
	if err != nil {
		return nil, fmt.Errorf("start_iso: %w", err)
	}
	end, err := a.parseISO(args.EndISO)
	if err != nil {
		return nil, fmt.Errorf("end_iso: %w", err)
	}

	push := &internal.PushEvent{
		Summary:     args.Title,
		Description: args.Description,
		Location:    args.Location,
		Start:       start,
		End:         end,
	}
	if args.RecurrenceRule != "" {
		line, err := normalizeRRule(args.RecurrenceRule)
		if err != nil {
			return nil, fmt.Errorf("recurrence_rule: %w", err)
		}
		push.Recurrence = []string{line}
	}

	created, err := provider.CreateEvent(ctx, acc, a.CalendarID, push)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"ok":               true,
		"created_event_id": created.ID,
		"summary":          created.Summary,
		"start":            created.Start.Format(time.RFC3339),
		"end":              created.End.Format(time.RFC3339),
	}, nil
}

// normalizeRRule validates a model-supplied recurrence rule and returns
// it as a full "RRULE:" line.
func normalizeRRule(rule string) (string, error) {
	body := strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	if _, err := rrule.StrToRRule(body); err != nil {
		return "", err
	}
	return "RRULE:" + body, nil
}

// parseISO accepts the datetime shapes models actually emit: full
// RFC 3339, or a local datetime without offset, which is taken to be in
// the app timezone.
func (a *Assistant) parseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty datetime")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, a.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}
