package model

import "time"

// Scope distinguishes the two cache namespaces. A class-scoped record never
// satisfies a user-scoped lookup and vice versa.
type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeClass Scope = "class"
)

// Lesson is one upstream timetable entry. Lessons are never persisted on
// their own; they only live inside a CacheRecord payload, enriched in place.
type Lesson struct {
	ID           int64    `json:"id"`
	LessonNumber int64    `json:"lsnumber,omitempty"`
	Date         int      `json:"date"` // YYYYMMDD
	StartTime    int      `json:"startTime,omitempty"`
	EndTime      int      `json:"endTime,omitempty"`
	Subject      string   `json:"subject,omitempty"`
	Teachers     []string `json:"teachers,omitempty"`
	Rooms        []string `json:"rooms,omitempty"`
	Code         string   `json:"code,omitempty"`
	Info         string   `json:"info,omitempty"`

	// Filled by enrichment; nil when nothing matched, never an empty slice.
	Homework []HomeworkItem `json:"homework,omitempty"`
	Exams    []ExamItem     `json:"exams,omitempty"`
}

// HomeworkItem is the denormalized projection of a HomeworkRecord attached to
// an enriched lesson.
type HomeworkItem struct {
	ID        int64  `json:"id"`
	DueDate   int    `json:"dueDate"` // YYYYMMDD
	Subject   string `json:"subject,omitempty"`
	Text      string `json:"text,omitempty"`
	Completed bool   `json:"completed"`
}

// ExamItem is the denormalized projection of an ExamRecord attached to an
// enriched lesson.
type ExamItem struct {
	ID        int64    `json:"id"`
	Date      int      `json:"date"` // YYYYMMDD
	StartTime int      `json:"startTime,omitempty"`
	EndTime   int      `json:"endTime,omitempty"`
	Subject   string   `json:"subject,omitempty"`
	Name      string   `json:"name,omitempty"`
	Text      string   `json:"text,omitempty"`
	Teachers  []string `json:"teachers,omitempty"`
	Rooms     []string `json:"rooms,omitempty"`
}

// CacheRecord is one immutable snapshot of lessons for a subject over a date
// window. Records are only ever inserted and pruned, never updated. Both
// bounds nil means an unscoped "today" snapshot.
type CacheRecord struct {
	ID         string     `json:"id"`
	Scope      Scope      `json:"scope"`
	SubjectKey string     `json:"subjectKey"`
	RangeStart *time.Time `json:"rangeStart,omitempty"`
	RangeEnd   *time.Time `json:"rangeEnd,omitempty"`
	Payload    []Lesson   `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// HomeworkRecord is one upstream homework item, unique per
// (subjectKey, upstreamId). Upserted on every fetch, never deleted here.
type HomeworkRecord struct {
	SubjectKey string    `json:"subjectKey"`
	UpstreamID int64     `json:"upstreamId"`
	LessonID   *int64    `json:"lessonId,omitempty"`
	DueDate    int       `json:"dueDate"` // YYYYMMDD
	Subject    string    `json:"subject,omitempty"`
	Text       string    `json:"text,omitempty"`
	Completed  bool      `json:"completed"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

// ExamRecord is one upstream exam item, unique per (subjectKey, upstreamId).
type ExamRecord struct {
	SubjectKey string    `json:"subjectKey"`
	UpstreamID int64     `json:"upstreamId"`
	Date       int       `json:"date"` // YYYYMMDD
	StartTime  int       `json:"startTime,omitempty"`
	EndTime    int       `json:"endTime,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Name       string    `json:"name,omitempty"`
	Text       string    `json:"text,omitempty"`
	Teachers   []string  `json:"teachers,omitempty"`
	Rooms      []string  `json:"rooms,omitempty"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

// ClassInfo describes a class accessible to a subject. Held in a short-TTL
// process-local cache, never persisted.
type ClassInfo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LongName string `json:"longName,omitempty"`
}

// Credential holds a user's stored upstream login. Secret is encrypted at
// rest; decryption is the secrets package's concern.
type Credential struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Host      string    `json:"host"`
	School    string    `json:"school"`
	Secret    []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Fallback reasons reported on stale responses.
const (
	FallbackBadCredentials   = "BAD_CREDENTIALS"
	FallbackUntisUnavailable = "UNTIS_UNAVAILABLE"
)

// Response sources.
const (
	SourceUpstream   = "upstream"
	SourceCache      = "cache"
	SourceStaleCache = "stale-cache"
)

// RangeResult is what the orchestrator hands back to the transport layer.
type RangeResult struct {
	RangeStart     *time.Time `json:"rangeStart,omitempty"`
	RangeEnd       *time.Time `json:"rangeEnd,omitempty"`
	Payload        []Lesson   `json:"payload"`
	Cached         bool       `json:"cached"`
	Stale          bool       `json:"stale"`
	Source         string     `json:"source"`
	LastUpdated    time.Time  `json:"lastUpdated"`
	FallbackReason string     `json:"fallbackReason,omitempty"`
}
