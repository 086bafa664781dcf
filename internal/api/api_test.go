package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codeclub/liveclass/internal/event"
	"github.com/codeclub/liveclass/internal/roster"
	"github.com/codeclub/liveclass/internal/runner"
	"github.com/codeclub/liveclass/internal/session"
	"github.com/codeclub/liveclass/internal/submission"
)

type recordingExecutor struct {
	executed []string
}

func (r *recordingExecutor) Execute(submissionID string) {
	r.executed = append(r.executed, submissionID)
}

type apiFixture struct {
	srv  Server
	exec *recordingExecutor
	log  *event.MemoryLog
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	r := roster.New()
	r.AddUser("cura", event.Curator)
	r.AddClass(1, true)
	r.AddTask(1, 42, []runner.TestCase{{Input: "1 2", Output: "3"}})
	r.AddTeam(7, 1, "elda", "elda", "stu")

	log := event.NewMemoryLog()
	deriver := session.NewDeriver(log, r, submission.NewMemoryStore(), nil)
	exec := &recordingExecutor{}
	deriver.SetExecutor(exec)

	srv := NewServer(&Options{
		Deriver:        deriver,
		Log:            log,
		DisableReqLogs: true,
	})
	return &apiFixture{srv: srv, exec: exec, log: log}
}

func (f *apiFixture) do(t *testing.T, method, path, actorID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if actorID != "" {
		req.Header.Set(actorHeader, actorID)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestToggleHand(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/teams/7/hand", "elda", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", rec.Code, rec.Body)
	}
	var resp map[string]bool
	decodeBody(t, rec, &resp)
	if !resp["handRaised"] {
		t.Error("first toggle should raise the hand")
	}

	rec = f.do(t, http.MethodPost, "/v1/teams/7/hand", "elda", "")
	decodeBody(t, rec, &resp)
	if resp["handRaised"] {
		t.Error("second toggle should lower the hand")
	}
}

func TestToggleHandRequiresElder(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/teams/7/hand", "stu", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d (body %s)", rec.Code, http.StatusForbidden, rec.Body)
	}
}

func TestBlockAndStatus(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPut, "/v1/teams/7/blocked", "cura", `{"blocked":true}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("block status = %d, body %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodGet, "/v1/teams/7/status", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status query = %d", rec.Code)
	}
	var st session.TeamStatus
	decodeBody(t, rec, &st)
	if !st.Blocked {
		t.Error("team should be blocked")
	}

	// A blocked team cannot submit.
	rec = f.do(t, http.MethodPost, "/v1/teams/7/submissions", "elda",
		`{"taskId":42,"code":"print()","language":"python"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blocked submit status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(f.exec.executed) != 0 {
		t.Error("executor ran for a blocked submission")
	}
}

func TestBlockRequiresCurator(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPut, "/v1/teams/7/blocked", "elda", `{"blocked":true}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestSubmitSolution(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/teams/7/submissions", "elda",
		`{"taskId":42,"code":"print(3)","language":"python"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}
	var sub submission.Submission
	decodeBody(t, rec, &sub)
	if sub.ID == "" || sub.Status != submission.New {
		t.Errorf("created submission = %+v", sub)
	}
	if len(f.exec.executed) != 1 || f.exec.executed[0] != sub.ID {
		t.Errorf("executor calls = %v, want [%s]", f.exec.executed, sub.ID)
	}

	rec = f.do(t, http.MethodGet, "/v1/submissions/"+sub.ID, "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("submission fetch status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/teams/7/submissions", "", "")
	var subs []submission.Submission
	decodeBody(t, rec, &subs)
	if len(subs) != 1 || subs[0].ID != sub.ID {
		t.Errorf("team submissions = %+v", subs)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newAPIFixture(t)

	// Missing code and language.
	rec := f.do(t, http.MethodPost, "/v1/teams/7/submissions", "elda", `{"taskId":42}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid submit status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = f.do(t, http.MethodPost, "/v1/teams/7/submissions", "elda", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed submit status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSelectTask(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPut, "/v1/teams/7/task", "elda", `{"taskId":42}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("select status = %d, body %s", rec.Code, rec.Body)
	}

	var st session.TeamStatus
	rec = f.do(t, http.MethodGet, "/v1/teams/7/status", "", "")
	decodeBody(t, rec, &st)
	if st.SelectedTaskID != 42 {
		t.Errorf("selected task = %d, want 42", st.SelectedTaskID)
	}

	// Unassigned task is a state violation.
	rec = f.do(t, http.MethodPut, "/v1/teams/7/task", "elda", `{"taskId":99}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unassigned select status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUnknownTeamIs404(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/teams/999/hand", "elda", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d (body %s)", rec.Code, http.StatusNotFound, rec.Body)
	}
}

func TestActorHeaderRequired(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/teams/7/hand", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCuratorTeamPresence(t *testing.T) {
	f := newAPIFixture(t)

	if rec := f.do(t, http.MethodPost, "/v1/teams/7/curators", "cura", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("join status = %d, body %s", rec.Code, rec.Body)
	}

	rec := f.do(t, http.MethodGet, "/v1/teams/7/curators", "", "")
	var resp map[string][]string
	decodeBody(t, rec, &resp)
	if len(resp["curators"]) != 1 || resp["curators"][0] != "cura" {
		t.Errorf("curators = %v, want [cura]", resp["curators"])
	}

	var joined map[string]bool
	decodeBody(t, f.do(t, http.MethodGet, "/v1/teams/7/curators/cura", "", ""), &joined)
	if !joined["joined"] {
		t.Error("joined = false after join")
	}
	decodeBody(t, f.do(t, http.MethodGet, "/v1/teams/7/curators/other", "", ""), &joined)
	if joined["joined"] {
		t.Error("joined = true for a curator who never joined")
	}

	if rec := f.do(t, http.MethodDelete, "/v1/teams/7/curators", "cura", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("leave status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/teams/7/curators", "", "")
	decodeBody(t, rec, &resp)
	if len(resp["curators"]) != 0 {
		t.Errorf("curators after leave = %v, want none", resp["curators"])
	}
}

func TestClassJoinLeave(t *testing.T) {
	f := newAPIFixture(t)

	if rec := f.do(t, http.MethodPost, "/v1/classes/1/students", "stu", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("student join status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := f.do(t, http.MethodPost, "/v1/classes/1/curators", "cura", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("curator join status = %d, body %s", rec.Code, rec.Body)
	}

	// The curator does not hold the student role.
	if rec := f.do(t, http.MethodPost, "/v1/classes/1/students", "cura", ""); rec.Code != http.StatusForbidden {
		t.Errorf("curator joining as student = %d, want %d", rec.Code, http.StatusForbidden)
	}

	if rec := f.do(t, http.MethodDelete, "/v1/classes/1/students", "stu", ""); rec.Code != http.StatusNoContent {
		t.Errorf("student leave status = %d", rec.Code)
	}
}

func TestEventFeeds(t *testing.T) {
	f := newAPIFixture(t)

	f.do(t, http.MethodPost, "/v1/teams/7/hand", "elda", "")
	f.do(t, http.MethodPut, "/v1/teams/7/blocked", "cura", `{"blocked":true}`)
	f.do(t, http.MethodPost, "/v1/classes/1/curators", "cura", "")

	rec := f.do(t, http.MethodGet, "/v1/teams/7/events", "", "")
	var teamEvents []event.Event
	decodeBody(t, rec, &teamEvents)
	if len(teamEvents) != 2 {
		t.Errorf("team feed has %d events, want 2", len(teamEvents))
	}

	rec = f.do(t, http.MethodGet, "/v1/classes/1/events", "", "")
	var classEvents []event.Event
	decodeBody(t, rec, &classEvents)
	if len(classEvents) != 3 {
		t.Errorf("class feed has %d events, want 3", len(classEvents))
	}

	// A window starting in the future is empty.
	rec = f.do(t, http.MethodGet, "/v1/classes/1/events?from=2099-01-01T00:00:00Z", "", "")
	decodeBody(t, rec, &classEvents)
	if len(classEvents) != 0 {
		t.Errorf("future window has %d events, want 0", len(classEvents))
	}

	rec = f.do(t, http.MethodGet, "/v1/classes/1/events?from=not-a-time", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad window status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusOK)
	}
}
