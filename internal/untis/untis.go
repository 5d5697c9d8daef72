// Package untis talks to the upstream WebUntis-style timetable provider.
// Every fetch runs inside a short-lived session: login, pull, logout.
package untis

import (
	"context"
	"errors"
	"time"

	"github.com/LimoEisbxr/periodix/server/internal/model"
)

// ErrBadCredentials signals that the upstream rejected the login secret, as
// opposed to being unreachable. The orchestrator maps the two differently.
var ErrBadCredentials = errors.New("untis: bad credentials")

// Credentials is a decrypted upstream login.
type Credentials struct {
	Host     string
	School   string
	Username string
	Password string
}

// Client opens upstream sessions.
type Client interface {
	Login(ctx context.Context, cred Credentials) (Session, error)
}

// Session is one authenticated upstream conversation. All calls are
// fallible; a query the upstream has no data for yields an empty result, not
// an error. Logout must always be attempted, its failure ignored.
type Session interface {
	Timetable(ctx context.Context, start, end time.Time) ([]model.Lesson, error)
	TimetableToday(ctx context.Context) ([]model.Lesson, error)
	ClassTimetable(ctx context.Context, start, end time.Time, classID int64) ([]model.Lesson, error)
	Homework(ctx context.Context, start, end time.Time) ([]model.HomeworkRecord, error)
	Exams(ctx context.Context, start, end time.Time) ([]model.ExamRecord, error)
	OwnClasses(ctx context.Context) ([]model.ClassInfo, error)
	AllClasses(ctx context.Context) ([]model.ClassInfo, error)
	Logout(ctx context.Context) error
}
