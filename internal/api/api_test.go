package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LimoEisbxr/periodix/server/internal/model"
)

type stubService struct {
	userResult  *model.RangeResult
	userErr     error
	classResult *model.RangeResult
	classErr    error
	classes     []model.ClassInfo
	classesErr  error

	gotUserID  string
	gotClassID string
	gotStart   string
	gotEnd     string
}

func (s *stubService) FetchUserRange(ctx context.Context, requesterID, userID, start, end string) (*model.RangeResult, error) {
	s.gotUserID, s.gotStart, s.gotEnd = userID, start, end
	return s.userResult, s.userErr
}

func (s *stubService) FetchClassRange(ctx context.Context, requesterID, classID, start, end string) (*model.RangeResult, error) {
	s.gotClassID, s.gotStart, s.gotEnd = classID, start, end
	return s.classResult, s.classErr
}

func (s *stubService) PermittedClasses(ctx context.Context, userID string) ([]model.ClassInfo, error) {
	s.gotUserID = userID
	return s.classes, s.classesErr
}

type stubPinger struct{ err error }

func (p *stubPinger) Ping(ctx context.Context) error { return p.err }

func doRequest(t *testing.T, svc TimetableService, db Pinger, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	NewRouter(svc, db).ServeHTTP(rr, req)
	return rr
}

func TestGetUserTimetable_OK(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	svc := &stubService{userResult: &model.RangeResult{
		RangeStart:  &start,
		Payload:     []model.Lesson{{ID: 1, Date: 20240115, Subject: "Math"}},
		Source:      model.SourceUpstream,
		LastUpdated: start,
	}}

	rr := doRequest(t, svc, &stubPinger{}, "/api/v1/users/alice/timetable?start=2024-01-15&end=2024-01-19")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", svc.gotUserID)
	assert.Equal(t, "2024-01-15", svc.gotStart)
	assert.Equal(t, "2024-01-19", svc.gotEnd)

	var res model.RangeResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, model.SourceUpstream, res.Source)
	assert.False(t, res.Stale)
	require.Len(t, res.Payload, 1)
	assert.Equal(t, "Math", res.Payload[0].Subject)
}

func TestGetUserTimetable_StaleFlagsSurvive(t *testing.T) {
	svc := &stubService{userResult: &model.RangeResult{
		Payload:        []model.Lesson{},
		Cached:         true,
		Stale:          true,
		Source:         model.SourceStaleCache,
		FallbackReason: model.FallbackBadCredentials,
	}}

	rr := doRequest(t, svc, &stubPinger{}, "/api/v1/users/alice/timetable")
	require.Equal(t, http.StatusOK, rr.Code)

	var res model.RangeResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.True(t, res.Cached)
	assert.True(t, res.Stale)
	assert.Equal(t, model.FallbackBadCredentials, res.FallbackReason)
}

func TestGetUserTimetable_ValidationErrorIs400(t *testing.T) {
	svc := &stubService{userErr: fmt.Errorf("%w: bad range", model.ErrValidation)}

	rr := doRequest(t, svc, &stubPinger{}, "/api/v1/users/alice/timetable?start=nope")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetUserTimetable_TypedErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"bad credentials", model.BadCredentials(errors.New("rejected")), http.StatusUnauthorized, model.CodeBadCredentials},
		{"login failed", model.LoginFailed(errors.New("down")), http.StatusBadGateway, model.CodeLoginFailed},
		{"fetch failed", model.FetchFailed(errors.New("down")), http.StatusBadGateway, model.CodeFetchFailed},
		{"missing secret", model.MissingSecret("alice"), http.StatusNotFound, model.CodeMissingSecret},
		{"decrypt failed", model.DecryptFailed(errors.New("bad key")), http.StatusInternalServerError, model.CodeDecryptFailed},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, model.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{userErr: tc.err}
			rr := doRequest(t, svc, &stubPinger{}, "/api/v1/users/alice/timetable")
			require.Equal(t, tc.wantStatus, rr.Code)

			var body struct {
				Error string `json:"error"`
				Code  int    `json:"code"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.wantCode, body.Error)
			assert.Equal(t, tc.wantStatus, body.Code)
		})
	}
}

func TestListClasses_OK(t *testing.T) {
	svc := &stubService{classes: []model.ClassInfo{{ID: 7, Name: "10A"}, {ID: 8, Name: "10B"}}}

	rr := doRequest(t, svc, &stubPinger{}, "/api/v1/users/alice/classes")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Classes []model.ClassInfo `json:"classes"`
		Count   int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Classes, 2)
	assert.Equal(t, "10A", body.Classes[0].Name)
}

func TestListClasses_NoClassesFound(t *testing.T) {
	svc := &stubService{classesErr: model.NoClassesFound("alice")}

	rr := doRequest(t, svc, &stubPinger{}, "/api/v1/users/alice/classes")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetClassTimetable_PassesClassID(t *testing.T) {
	svc := &stubService{classResult: &model.RangeResult{Payload: []model.Lesson{}, Source: model.SourceCache, Cached: true}}

	rr := doRequest(t, svc, &stubPinger{}, "/api/v1/users/alice/classes/10B/timetable?start=2024-01-15&end=2024-01-19")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "10B", svc.gotClassID)
}

func TestCheckHealth(t *testing.T) {
	rr := doRequest(t, &stubService{}, &stubPinger{}, "/api/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	rr = doRequest(t, &stubService{}, &stubPinger{err: errors.New("connection refused")}, "/api/health")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	rr := doRequest(t, &stubService{}, &stubPinger{}, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
}
