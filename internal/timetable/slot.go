package timetable

import (
	"untisbot/internal/model"
)

// Event classifies what happened to a lesson slot.
type Event int

const (
	EventNone Event = iota
	EventSubstitution
	EventCancelled
	EventRelocated
)

func (e Event) String() string {
	switch e {
	case EventSubstitution:
		return "substitution"
	case EventCancelled:
		return "cancelled"
	case EventRelocated:
		return "relocated"
	default:
		return "none"
	}
}

// MarshalText lets Event appear by name in JSON output.
func (e Event) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// FreeSignature marks a slot synthesized for a period without a lesson.
const FreeSignature = "FREE"

// Slot is one entry of a normalized day.
type Slot struct {
	Start     int    `json:"start"`
	End       int    `json:"end,omitempty"`
	Signature string `json:"signature"`

	Teachers []model.Element `json:"teachers,omitempty"`
	Rooms    []model.Element `json:"rooms,omitempty"`
	Subjects []model.Element `json:"subjects,omitempty"`

	Event       Event  `json:"event"`
	Description string `json:"description,omitempty"`

	// LessonText is carried for exports; the report does not print it.
	LessonText string `json:"lesson_text,omitempty"`
}

// Free reports whether the slot was synthesized by FillGaps.
func (s Slot) Free() bool {
	return s.Signature == FreeSignature && len(s.Teachers) == 0 &&
		len(s.Rooms) == 0 && len(s.Subjects) == 0
}

func freeSlot(start int) Slot {
	return Slot{Start: start, Signature: FreeSignature}
}

// Teacher, Room and Subject return the representative (first) entry, or
// the zero Element when the lesson carried none.
func (s Slot) Teacher() model.Element { return first(s.Teachers) }
func (s Slot) Room() model.Element    { return first(s.Rooms) }
func (s Slot) Subject() model.Element { return first(s.Subjects) }

func first(els []model.Element) model.Element {
	if len(els) == 0 {
		return model.Element{}
	}
	return els[0]
}

// ClassifyLesson derives the slot for one lesson. The result depends on
// the lesson alone.
func ClassifyLesson(l model.Lesson) Slot {
	s := Slot{
		Start:      l.StartTime,
		End:        l.EndTime,
		Signature:  l.SubjectGroup,
		Teachers:   l.Teachers,
		Rooms:      l.Rooms,
		Subjects:   l.Subjects,
		LessonText: l.LessonText,
	}

	switch {
	case first(l.Teachers).OrgName != "":
		s.Event = EventSubstitution
		if l.SubstText != "" {
			s.Description = "**" + l.SubstText + "**"
		}
	case l.Code == model.CodeCancelled:
		s.Event = EventCancelled
	case l.Code == model.CodeIrregular:
		s.Event = EventRelocated
	default:
		s.Event = EventNone
	}
	return s
}

// Classify converts fetched lessons to slots, keeping fetch order.
func Classify(lessons []model.Lesson) []Slot {
	out := make([]Slot, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, ClassifyLesson(l))
	}
	return out
}
