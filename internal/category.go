package internal

import "strings"

// Category is one of the fixed semantic event kinds derived from the
// free-text Type label on an Event.
type Category string

func (c Category) String() string {
	return string(c)
}

const (
	CategoryLecture    Category = "lecture"
	CategoryLab        Category = "lab"
	CategoryMidterm    Category = "midterm"
	CategoryFinal      Category = "final"
	CategoryAssignment Category = "assignment"
	CategoryQuiz       Category = "quiz"
	CategoryOther      Category = "other"
)

// Assessment reports whether events of this category should be
// highlighted as graded assessments (calendar color, exam horizon).
func (c Category) Assessment() bool {
	switch c {
	case CategoryMidterm, CategoryFinal, CategoryQuiz:
		return true
	}
	return false
}

// categoryRules is the ordered keyword list used by Categorize. Order
// is the tie-break contract: assessment words outrank activity words,
// so "Final Project" resolves to final and "Midterm review class" to
// midterm. Do not reorder without updating the tests.
var categoryRules = []struct {
	keyword  string
	category Category
}{
	{"midterm", CategoryMidterm},
	{"final", CategoryFinal},
	{"exam", CategoryFinal},
	{"test", CategoryMidterm},
	{"quiz", CategoryQuiz},
	{"lab", CategoryLab},
	{"tutorial", CategoryLecture},
	{"lecture", CategoryLecture},
	{"class", CategoryLecture},
	{"assignment", CategoryAssignment},
	{"project", CategoryAssignment},
	{"due", CategoryAssignment},
}

// Categorize maps a free-text type label to a Category using
// case-insensitive substring matching, first matching rule wins.
// Every string, including the empty string, maps to exactly one
// category; no match falls back to CategoryOther.
func Categorize(label string) Category {
	label = strings.ToLower(label)
	for _, rule := range categoryRules {
		if strings.Contains(label, rule.keyword) {
			return rule.category
		}
	}
	return CategoryOther
}
