package untis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeUpstream struct {
	badPassword bool
	noHomework  bool
	sawCookie   string
	calls       []string
}

func (f *fakeUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.calls = append(f.calls, req.Method)
		if c, err := r.Cookie("JSESSIONID"); err == nil {
			f.sawCookie = c.Value
		}

		write := func(result any, rpcErr *rpcError) {
			w.Header().Set("Content-Type", "application/json")
			var raw json.RawMessage
			if result != nil {
				raw, _ = json.Marshal(result)
			}
			_ = json.NewEncoder(w).Encode(rpcResponse{Result: raw, Error: rpcErr})
		}

		switch req.Method {
		case "authenticate":
			if f.badPassword {
				write(nil, &rpcError{Code: rpcBadCredentials, Message: "bad credentials"})
				return
			}
			write(map[string]any{"sessionId": "sess-1", "personId": 42, "klasseId": 7}, nil)
		case "getTimetable":
			write([]map[string]any{
				{
					"id": 1001, "lsnumber": 555, "date": 20240115,
					"startTime": 800, "endTime": 845,
					"su": []map[string]any{{"id": 1, "name": "Math"}},
					"te": []map[string]any{{"id": 2, "name": "NEW"}},
					"ro": []map[string]any{{"id": 3, "name": "A113"}},
				},
			}, nil)
		case "getHomeworks":
			if f.noHomework {
				write(nil, &rpcError{Code: rpcNoSuchElement, Message: "no such element"})
				return
			}
			write(map[string]any{"homeworks": []map[string]any{
				{"id": 9, "lessonId": 555, "dueDate": 20240117, "subject": "Math", "text": "p. 42"},
			}}, nil)
		case "getExams":
			write(map[string]any{"exams": []map[string]any{
				{"id": 5, "examDate": 20240118, "subject": "Math", "name": "Algebra"},
			}}, nil)
		case "getKlassen":
			write([]map[string]any{
				{"id": 6, "name": "9a", "longName": "Class 9a"},
				{"id": 7, "name": "9b", "longName": "Class 9b"},
			}, nil)
		case "logout":
			write(nil, nil)
		default:
			write(nil, &rpcError{Code: -1, Message: "unknown method"})
		}
	}
}

func loginTestSession(t *testing.T, f *fakeUpstream) Session {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	sess, err := NewRPCClient().Login(context.Background(), Credentials{
		Host: srv.URL, School: "gym", Username: "u", Password: "p",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return sess
}

func TestLoginAndTimetable(t *testing.T) {
	f := &fakeUpstream{}
	sess := loginTestSession(t, f)

	lessons, err := sess.Timetable(context.Background(),
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Timetable: %v", err)
	}
	if len(lessons) != 1 {
		t.Fatalf("lessons = %d", len(lessons))
	}
	l := lessons[0]
	if l.ID != 1001 || l.LessonNumber != 555 || l.Subject != "Math" || l.Date != 20240115 {
		t.Fatalf("lesson mapping: %+v", l)
	}
	if len(l.Teachers) != 1 || l.Teachers[0] != "NEW" || len(l.Rooms) != 1 {
		t.Fatalf("teacher/room mapping: %+v", l)
	}
	if f.sawCookie != "sess-1" {
		t.Fatalf("session cookie not sent, saw %q", f.sawCookie)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	f := &fakeUpstream{badPassword: true}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	_, err := NewRPCClient().Login(context.Background(), Credentials{Host: srv.URL, School: "gym"})
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
}

func TestLogin_Unreachable(t *testing.T) {
	_, err := NewRPCClient().Login(context.Background(), Credentials{
		Host: "http://127.0.0.1:1", School: "gym",
	})
	if err == nil {
		t.Fatal("expected connectivity error")
	}
	if errors.Is(err, ErrBadCredentials) {
		t.Fatal("connectivity failure must not map to bad credentials")
	}
}

func TestHomework_NoDataIsEmptySuccess(t *testing.T) {
	f := &fakeUpstream{noHomework: true}
	sess := loginTestSession(t, f)

	hws, err := sess.Homework(context.Background(), time.Now(), time.Now())
	if err != nil {
		t.Fatalf("Homework: %v", err)
	}
	if len(hws) != 0 {
		t.Fatalf("expected empty homework, got %d", len(hws))
	}
}

func TestHomeworkAndExamsMapping(t *testing.T) {
	f := &fakeUpstream{}
	sess := loginTestSession(t, f)
	ctx := context.Background()

	hws, err := sess.Homework(ctx, time.Now(), time.Now())
	if err != nil || len(hws) != 1 {
		t.Fatalf("Homework: n=%d err=%v", len(hws), err)
	}
	if hws[0].UpstreamID != 9 || hws[0].LessonID == nil || *hws[0].LessonID != 555 {
		t.Fatalf("homework mapping: %+v", hws[0])
	}

	exs, err := sess.Exams(ctx, time.Now(), time.Now())
	if err != nil || len(exs) != 1 || exs[0].Date != 20240118 {
		t.Fatalf("Exams: %+v err=%v", exs, err)
	}
}

func TestOwnClasses_PutsOwnClassFirst(t *testing.T) {
	f := &fakeUpstream{}
	sess := loginTestSession(t, f)

	classes, err := sess.OwnClasses(context.Background())
	if err != nil {
		t.Fatalf("OwnClasses: %v", err)
	}
	if len(classes) != 2 || classes[0].ID != 7 {
		t.Fatalf("own class ordering: %+v", classes)
	}
}

func TestLogout(t *testing.T) {
	f := &fakeUpstream{}
	sess := loginTestSession(t, f)
	if err := sess.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	last := f.calls[len(f.calls)-1]
	if last != "logout" {
		t.Fatalf("last call = %s", last)
	}
}
