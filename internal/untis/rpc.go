package untis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/LimoEisbxr/periodix/server/internal/model"
)

// Upstream JSON-RPC error codes.
const (
	rpcBadCredentials   = -8504
	rpcNoSuchElement    = -7002
	rpcNoResultForQuery = -8509
)

// RPCClient implements Client against the upstream JSON-RPC endpoint.
type RPCClient struct {
	timeout time.Duration
}

// NewRPCClient builds the production client.
func NewRPCClient() *RPCClient {
	return &RPCClient{timeout: 20 * time.Second}
}

func endpoint(host, school string) string {
	base := host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/WebUntis/jsonrpc.do?school=%s", base, school)
}

type rpcRequest struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	JSONRPC string `json:"jsonrpc"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Login authenticates and returns a cookie-bound session.
func (c *RPCClient) Login(ctx context.Context, cred Credentials) (Session, error) {
	rc := resty.New().
		SetBaseURL(endpoint(cred.Host, cred.School)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(c.timeout)

	s := &rpcSession{client: rc}

	var result struct {
		SessionID  string `json:"sessionId"`
		PersonID   int64  `json:"personId"`
		PersonType int    `json:"personType"`
		KlasseID   int64  `json:"klasseId"`
	}
	err := s.call(ctx, "authenticate", map[string]string{
		"user":     cred.Username,
		"password": cred.Password,
		"client":   "periodix",
	}, &result)
	if err != nil {
		var ce *callError
		if errors.As(err, &ce) && ce.rpc.Code == rpcBadCredentials {
			return nil, fmt.Errorf("%w: %s", ErrBadCredentials, ce.rpc.Message)
		}
		return nil, fmt.Errorf("untis login: %w", err)
	}
	s.client.SetCookie(&http.Cookie{Name: "JSESSIONID", Value: result.SessionID})
	s.personID = result.PersonID
	s.klasseID = result.KlasseID
	return s, nil
}

type rpcSession struct {
	client   *resty.Client
	personID int64
	klasseID int64
	reqSeq   atomic.Int64
}

type callError struct {
	rpc *rpcError
}

func (e *callError) Error() string {
	return fmt.Sprintf("untis rpc error %d: %s", e.rpc.Code, e.rpc.Message)
}

// call performs one JSON-RPC round trip. An upstream "no such element" /
// "no result" error is translated into an empty result: out is left at its
// zero value and no error is returned.
func (s *rpcSession) call(ctx context.Context, method string, params any, out any) error {
	req := rpcRequest{
		ID:      fmt.Sprintf("req-%d", s.reqSeq.Add(1)),
		Method:  method,
		Params:  params,
		JSONRPC: "2.0",
	}

	var body rpcResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&req).
		SetResult(&body).
		Post("")
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: upstream HTTP %d", method, resp.StatusCode())
	}
	if body.Error != nil {
		switch body.Error.Code {
		case rpcNoSuchElement, rpcNoResultForQuery:
			return nil
		}
		return &callError{rpc: body.Error}
	}
	if out != nil && len(body.Result) > 0 && string(body.Result) != "null" {
		if err := json.Unmarshal(body.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

func (s *rpcSession) Timetable(ctx context.Context, start, end time.Time) ([]model.Lesson, error) {
	return s.timetable(ctx, s.personID, personElementType, start, end)
}

func (s *rpcSession) TimetableToday(ctx context.Context) ([]model.Lesson, error) {
	now := time.Now()
	return s.timetable(ctx, s.personID, personElementType, now, now)
}

func (s *rpcSession) ClassTimetable(ctx context.Context, start, end time.Time, classID int64) ([]model.Lesson, error) {
	return s.timetable(ctx, classID, classElementType, start, end)
}

// Upstream element types for timetable queries.
const (
	classElementType  = 1
	personElementType = 5
)

func (s *rpcSession) timetable(ctx context.Context, elementID int64, elementType int, start, end time.Time) ([]model.Lesson, error) {
	var raw []wireLesson
	err := s.call(ctx, "getTimetable", map[string]any{
		"id":        elementID,
		"type":      elementType,
		"startDate": yyyymmdd(start),
		"endDate":   yyyymmdd(end),
	}, &raw)
	if err != nil {
		return nil, err
	}
	out := make([]model.Lesson, 0, len(raw))
	for _, wl := range raw {
		out = append(out, wl.toModel())
	}
	return out, nil
}

func (s *rpcSession) Homework(ctx context.Context, start, end time.Time) ([]model.HomeworkRecord, error) {
	var raw struct {
		Homeworks []wireHomework `json:"homeworks"`
	}
	err := s.call(ctx, "getHomeworks", map[string]any{
		"startDate": yyyymmdd(start),
		"endDate":   yyyymmdd(end),
	}, &raw)
	if err != nil {
		return nil, err
	}
	out := make([]model.HomeworkRecord, 0, len(raw.Homeworks))
	for _, wh := range raw.Homeworks {
		out = append(out, wh.toModel())
	}
	return out, nil
}

func (s *rpcSession) Exams(ctx context.Context, start, end time.Time) ([]model.ExamRecord, error) {
	var raw struct {
		Exams []wireExam `json:"exams"`
	}
	err := s.call(ctx, "getExams", map[string]any{
		"startDate": yyyymmdd(start),
		"endDate":   yyyymmdd(end),
	}, &raw)
	if err != nil {
		return nil, err
	}
	out := make([]model.ExamRecord, 0, len(raw.Exams))
	for _, we := range raw.Exams {
		out = append(out, we.toModel())
	}
	return out, nil
}

func (s *rpcSession) OwnClasses(ctx context.Context) ([]model.ClassInfo, error) {
	classes, err := s.AllClasses(ctx)
	if err != nil {
		return nil, err
	}
	if s.klasseID == 0 {
		return classes, nil
	}
	// A student sees their own class first; teachers and admins see all.
	out := make([]model.ClassInfo, 0, len(classes))
	for _, ci := range classes {
		if ci.ID == s.klasseID {
			out = append([]model.ClassInfo{ci}, out...)
		} else {
			out = append(out, ci)
		}
	}
	return out, nil
}

func (s *rpcSession) AllClasses(ctx context.Context) ([]model.ClassInfo, error) {
	var raw []wireClass
	if err := s.call(ctx, "getKlassen", map[string]any{}, &raw); err != nil {
		return nil, err
	}
	out := make([]model.ClassInfo, 0, len(raw))
	for _, wc := range raw {
		out = append(out, model.ClassInfo{ID: wc.ID, Name: wc.Name, LongName: wc.LongName})
	}
	return out, nil
}

func (s *rpcSession) Logout(ctx context.Context) error {
	return s.call(ctx, "logout", map[string]any{}, nil)
}

func yyyymmdd(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
