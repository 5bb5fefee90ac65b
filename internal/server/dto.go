package server

import (
	"time"

	"courseplanner/internal"
	"courseplanner/internal/layout"
)

type eventDTO struct {
	ID         string `json:"id"`
	CourseID   string `json:"course_id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Category   string `json:"category"`
	Start      string `json:"start"`
	End        string `json:"end,omitempty"`
	Location   string `json:"location,omitempty"`
	Notes      string `json:"notes,omitempty"`
	SourcePage int    `json:"source_page,omitempty"`
}

type courseDTO struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Code          string     `json:"code"`
	Term          string     `json:"term"`
	RawOutlineSHA string     `json:"raw_outline_sha,omitempty"`
	Events        []eventDTO `json:"events"`
}

type monthCellDTO struct {
	Date     string     `json:"date"`
	InMonth  bool       `json:"in_month"`
	Today    bool       `json:"today"`
	Events   []eventDTO `json:"events"`
	Overflow int        `json:"overflow"`
}

type monthGridDTO struct {
	Cells    []monthCellDTO `json:"cells"`
	Excluded int            `json:"excluded"`
}

type weekEventDTO struct {
	eventDTO
	OffsetMinutes   int `json:"offset_minutes"`
	DurationMinutes int `json:"duration_minutes"`
}

type weekDayDTO struct {
	Date   string         `json:"date"`
	Today  bool           `json:"today"`
	Events []weekEventDTO `json:"events"`
}

type weekGridDTO struct {
	Days     []weekDayDTO `json:"days"`
	Excluded int          `json:"excluded"`
}

func newEventDTO(ev internal.Event) eventDTO {
	dto := eventDTO{
		ID:         ev.ID,
		CourseID:   ev.CourseID,
		Title:      ev.Title,
		Type:       ev.Type,
		Category:   string(internal.Categorize(ev.Type)),
		Location:   ev.Location,
		Notes:      ev.Notes,
		SourcePage: ev.SourcePage,
	}
	if !ev.Start.IsZero() {
		dto.Start = ev.Start.Format(time.RFC3339)
	}
	if !ev.End.IsZero() {
		dto.End = ev.End.Format(time.RFC3339)
	}
	return dto
}

func newEventDTOs(events []internal.Event) []eventDTO {
	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, newEventDTO(ev))
	}
	return dtos
}

func newCourseDTO(course *internal.Course) courseDTO {
	return courseDTO{
		ID:            course.ID,
		Name:          course.Name,
		Code:          course.Code,
		Term:          course.Term,
		RawOutlineSHA: course.RawOutlineSHA,
		Events:        newEventDTOs(course.Events),
	}
}

func newMonthGridDTO(grid layout.MonthGrid) monthGridDTO {
	dto := monthGridDTO{
		Cells:    make([]monthCellDTO, 0, len(grid.Cells)),
		Excluded: grid.Excluded,
	}
	for _, cell := range grid.Cells {
		dto.Cells = append(dto.Cells, monthCellDTO{
			Date:     cell.Date.Format(internal.DateFormat),
			InMonth:  cell.InMonth,
			Today:    cell.Today,
			Events:   newEventDTOs(cell.Events),
			Overflow: cell.Overflow,
		})
	}
	return dto
}

func newWeekGridDTO(grid layout.WeekGrid) weekGridDTO {
	dto := weekGridDTO{
		Days:     make([]weekDayDTO, 0, len(grid.Days)),
		Excluded: grid.Excluded,
	}
	for _, day := range grid.Days {
		dayDTO := weekDayDTO{
			Date:   day.Date.Format(internal.DateFormat),
			Today:  day.Today,
			Events: make([]weekEventDTO, 0, len(day.Events)),
		}
		for _, ev := range day.Events {
			dayDTO.Events = append(dayDTO.Events, weekEventDTO{
				eventDTO:        newEventDTO(ev.Event),
				OffsetMinutes:   ev.OffsetMinutes,
				DurationMinutes: ev.DurationMinutes,
			})
		}
		dto.Days = append(dto.Days, dayDTO)
	}
	return dto
}
