package timetable

import (
	"context"
	"strings"

	"github.com/LimoEisbxr/periodix/server/internal/model"
	"github.com/LimoEisbxr/periodix/server/internal/store"
	"github.com/LimoEisbxr/periodix/server/internal/timerange"
)

// Homework matched by the subject-name fallback must be due within this many
// calendar days of the lesson.
const homeworkMatchWindowDays = 7

// enricher merges stored homework and exam records into a raw lesson list.
type enricher struct {
	homework store.Homework
	exams    store.Exams
}

// enrich attaches matching homework and exams to each lesson in place.
// from/to bound the records loaded, as YYYYMMDD integers; both zero loads the
// subject's full history. Lessons with no match keep nil lists.
func (e *enricher) enrich(ctx context.Context, subjectKey string, lessons []model.Lesson, from, to int) ([]model.Lesson, error) {
	if len(lessons) == 0 {
		return lessons, nil
	}

	hws, err := e.homework.ListForWindow(ctx, subjectKey, from, to)
	if err != nil {
		return nil, err
	}
	exs, err := e.exams.ListForWindow(ctx, subjectKey, from, to)
	if err != nil {
		return nil, err
	}

	for i := range lessons {
		attachHomework(&lessons[i], hws)
		attachExams(&lessons[i], exs)
	}
	return lessons, nil
}

// attachHomework applies the two-stage matching rule: identifier equality
// first, then same subject (case-insensitive, trimmed) with a due date within
// seven calendar days of the lesson. A lesson may match several items.
func attachHomework(l *model.Lesson, hws []*model.HomeworkRecord) {
	for _, hw := range hws {
		if matchesLessonID(l, hw) {
			l.Homework = append(l.Homework, homeworkItem(hw))
			continue
		}
		if sameSubject(l.Subject, hw.Subject) && timerange.DaysApart(hw.DueDate, l.Date) <= homeworkMatchWindowDays {
			l.Homework = append(l.Homework, homeworkItem(hw))
		}
	}
}

func matchesLessonID(l *model.Lesson, hw *model.HomeworkRecord) bool {
	return hw.LessonID != nil && matchesAnyID(l, *hw.LessonID)
}

// matchesAnyID checks every identifier field the lesson is known under.
func matchesAnyID(l *model.Lesson, id int64) bool {
	return l.ID == id || (l.LessonNumber != 0 && l.LessonNumber == id)
}

func sameSubject(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// attachExams matches on exact date and exact subject string. No case
// folding here: exams are date-anchored events, not approximately-scheduled
// work.
func attachExams(l *model.Lesson, exs []*model.ExamRecord) {
	for _, ex := range exs {
		if ex.Date == l.Date && ex.Subject == l.Subject {
			l.Exams = append(l.Exams, examItem(ex))
		}
	}
}

func homeworkItem(hw *model.HomeworkRecord) model.HomeworkItem {
	return model.HomeworkItem{
		ID:        hw.UpstreamID,
		DueDate:   hw.DueDate,
		Subject:   hw.Subject,
		Text:      hw.Text,
		Completed: hw.Completed,
	}
}

func examItem(ex *model.ExamRecord) model.ExamItem {
	return model.ExamItem{
		ID:        ex.UpstreamID,
		Date:      ex.Date,
		StartTime: ex.StartTime,
		EndTime:   ex.EndTime,
		Subject:   ex.Subject,
		Name:      ex.Name,
		Text:      ex.Text,
		Teachers:  ex.Teachers,
		Rooms:     ex.Rooms,
	}
}
