package timetable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LimoEisbxr/periodix/server/internal/model"
)

func newTestEnricher() (*enricher, *fakeStore) {
	st := newFakeStore()
	return &enricher{homework: st.hw, exams: st.ex}, st
}

func int64p(v int64) *int64 { return &v }

func TestEnrich_LessonIDMatchBeatsSubjectMismatch(t *testing.T) {
	e, st := newTestEnricher()
	require.NoError(t, st.hw.Upsert(context.Background(), &model.HomeworkRecord{
		SubjectKey: "alice",
		UpstreamID: 1,
		LessonID:   int64p(101),
		DueDate:    20240301, // far outside the seven-day window
		Subject:    "Chemistry",
		Text:       "lab report",
	}))

	lessons := []model.Lesson{{ID: 101, Date: 20240115, Subject: "Math"}}
	out, err := e.enrich(context.Background(), "alice", lessons, 0, 0)
	require.NoError(t, err)
	require.Len(t, out[0].Homework, 1, "identifier match ignores subject and date")
	assert.Equal(t, "lab report", out[0].Homework[0].Text)
}

func TestEnrich_LessonNumberMatch(t *testing.T) {
	e, st := newTestEnricher()
	require.NoError(t, st.hw.Upsert(context.Background(), &model.HomeworkRecord{
		SubjectKey: "alice",
		UpstreamID: 1,
		LessonID:   int64p(7777),
		DueDate:    20240301,
	}))

	lessons := []model.Lesson{{ID: 101, LessonNumber: 7777, Date: 20240115, Subject: "Math"}}
	out, err := e.enrich(context.Background(), "alice", lessons, 0, 0)
	require.NoError(t, err)
	assert.Len(t, out[0].Homework, 1)
}

func TestEnrich_SubjectFallbackWithinWindow(t *testing.T) {
	e, st := newTestEnricher()
	require.NoError(t, st.hw.Upsert(context.Background(), &model.HomeworkRecord{
		SubjectKey: "alice",
		UpstreamID: 1,
		DueDate:    20240118,
		Subject:    " math ", // trimmed and case-folded against the lesson
	}))

	lessons := []model.Lesson{{ID: 101, Date: 20240115, Subject: "Math"}}
	out, err := e.enrich(context.Background(), "alice", lessons, 0, 0)
	require.NoError(t, err)
	assert.Len(t, out[0].Homework, 1)
}

func TestEnrich_SubjectFallbackOutsideWindow(t *testing.T) {
	e, st := newTestEnricher()
	require.NoError(t, st.hw.Upsert(context.Background(), &model.HomeworkRecord{
		SubjectKey: "alice",
		UpstreamID: 1,
		DueDate:    20240125, // ten days after the lesson
		Subject:    "Math",
	}))

	lessons := []model.Lesson{{ID: 101, Date: 20240115, Subject: "Math"}}
	out, err := e.enrich(context.Background(), "alice", lessons, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, out[0].Homework)
}

func TestEnrich_ExamExactDateAndSubject(t *testing.T) {
	e, st := newTestEnricher()
	require.NoError(t, st.ex.Upsert(context.Background(), &model.ExamRecord{
		SubjectKey: "alice",
		UpstreamID: 1,
		Date:       20240115,
		Subject:    "Math",
		Name:       "Algebra test",
	}))
	require.NoError(t, st.ex.Upsert(context.Background(), &model.ExamRecord{
		SubjectKey: "alice",
		UpstreamID: 2,
		Date:       20240116, // right subject, wrong day
		Subject:    "Math",
	}))
	require.NoError(t, st.ex.Upsert(context.Background(), &model.ExamRecord{
		SubjectKey: "alice",
		UpstreamID: 3,
		Date:       20240115,
		Subject:    "math", // exam subjects do not case-fold
	}))

	lessons := []model.Lesson{{ID: 101, Date: 20240115, Subject: "Math"}}
	out, err := e.enrich(context.Background(), "alice", lessons, 0, 0)
	require.NoError(t, err)
	require.Len(t, out[0].Exams, 1)
	assert.Equal(t, "Algebra test", out[0].Exams[0].Name)
}

func TestEnrich_NoMatchesLeavesNilLists(t *testing.T) {
	e, _ := newTestEnricher()
	lessons := []model.Lesson{{ID: 101, Date: 20240115, Subject: "Math"}}
	out, err := e.enrich(context.Background(), "alice", lessons, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, out[0].Homework)
	assert.Nil(t, out[0].Exams)
}

func TestEnrich_EmptyLessonList(t *testing.T) {
	e, _ := newTestEnricher()
	out, err := e.enrich(context.Background(), "alice", nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}
