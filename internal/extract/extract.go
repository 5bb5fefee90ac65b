// Package extract turns an uploaded course outline PDF into a Course
// with structured calendar events, using an OpenAI model for the
// unstructured-to-structured step.
package extract

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"courseplanner/internal"
)

// maxOutlineChars caps how much outline text is sent to the model;
// syllabi are short documents and anything past this is appendix noise.
const maxOutlineChars = 120_000

const maxOutputTokens = 4000

// ErrNoAPIKey is returned when extraction is attempted without an
// OpenAI key configured.
var ErrNoAPIKey = errors.New("extract: OPENAI_API_KEY is not configured")

type Extractor struct {
	log   *logrus.Entry
	ai    *openai.Client
	model string
	loc   *time.Location
}

// New builds an Extractor. apiKey may be empty, in which case
// ExtractCourse fails with ErrNoAPIKey; this keeps the rest of the
// server usable without a key.
func New(log *logrus.Entry, apiKey, model string, loc *time.Location) *Extractor {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	e := &Extractor{
		log:   log,
		model: model,
		loc:   loc,
	}
	if apiKey != "" {
		e.ai = openai.NewClient(apiKey)
	}
	return e
}

// ExtractCourse parses the PDF, asks the model for the structured
// schedule and converts the reply into a Course with fresh ids.
func (e *Extractor) ExtractCourse(ctx context.Context, pdfBytes []byte) (*internal.Course, error) {
	if e.ai == nil {
		return nil, ErrNoAPIKey
	}

	text, err := pdfText(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("extract: reading pdf: %w", err)
	}
	if len(text) > maxOutlineChars {
		text = text[:maxOutlineChars]
	}

	resp, err := e.ai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     e.model,
		MaxTokens: maxOutputTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt + text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extract: model request: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, errors.New("extract: empty model response")
	}

	course, err := parsePayload(resp.Choices[0].Message.Content, e.loc)
	if err != nil {
		return nil, err
	}
	course.RawOutlineSHA = fmt.Sprintf("%x", sha256.Sum256(pdfBytes))

	e.log.WithFields(logrus.Fields{
		"course_id": course.ID,
		"code":      course.Code,
		"events":    len(course.Events),
	}).Info("course extracted")
	return course, nil
}

// payload mirrors the JSON schema the model is asked for.
type payload struct {
	CourseName string         `json:"course_name"`
	CourseCode string         `json:"course_code"`
	Term       string         `json:"term"`
	Events     []payloadEvent `json:"events"`
}

type payloadEvent struct {
	Title      string `json:"title"`
	Type       string `json:"type"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Location   string `json:"location"`
	SourcePage int    `json:"source_page"`
}

// parsePayload decodes the model reply into a Course. Events without a
// date are dropped; missing start times mean midnight; missing end
// times leave a zero End.
func parsePayload(raw string, loc *time.Location) (*internal.Course, error) {
	text := stripFences(strings.TrimSpace(raw))

	var data payload
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		snippet := text
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return nil, fmt.Errorf("extract: decoding model JSON: %w (raw: %s)", err, snippet)
	}

	course := &internal.Course{
		ID:   uuid.NewString(),
		Name: data.CourseName,
		Code: data.CourseCode,
		Term: data.Term,
	}

	for _, ev := range data.Events {
		if ev.Date == "" {
			continue
		}
		start, err := combineDateTime(ev.Date, ev.StartTime, loc)
		if err != nil {
			continue
		}

		var end time.Time
		if ev.EndTime != "" {
			end, err = combineDateTime(ev.Date, ev.EndTime, loc)
			if err != nil {
				end = time.Time{}
			}
		}

		title := ev.Title
		if title == "" {
			title = "Untitled"
		}
		evType := ev.Type
		if evType == "" {
			evType = "other"
		}

		course.Events = append(course.Events, internal.Event{
			ID:         uuid.NewString(),
			CourseID:   course.ID,
			Title:      title,
			Type:       evType,
			Start:      start,
			End:        end,
			Location:   ev.Location,
			SourcePage: ev.SourcePage,
		})
	}
	return course, nil
}

func combineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if clock == "" {
		clock = "00:00"
	}
	return time.ParseInLocation("2006-01-02T15:04", date+"T"+clock, loc)
}

// stripFences removes a surrounding markdown code fence, which models
// add despite being told not to.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	parts := strings.SplitN(text, "```", 3)
	if len(parts) < 2 {
		return text
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}

func pdfText(b []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
