package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-run/lattice/internal/runtime"
	httpadapter "github.com/lattice-run/lattice/pkg/adapters/http"
	"github.com/lattice-run/lattice/pkg/adapters/lua"
	"github.com/lattice-run/lattice/pkg/adapters/memory"
	"github.com/lattice-run/lattice/pkg/domain"
	"github.com/lattice-run/lattice/pkg/session"
)

const toggleModelJSON = `{
	"name": "toggle",
	"states": [
		{"name": "off", "is_initial": true, "entry_action": "lit = false"},
		{"name": "on", "entry_action": "lit = true"}
	],
	"transitions": [
		{"source": "off", "target": "on", "event": "flip"},
		{"source": "on", "target": "off", "event": "flip"}
	]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mgr := session.NewManager(memory.NewStore(), func() *runtime.Engine {
		return runtime.NewEngine(lua.New())
	})
	srv := httptest.NewServer(httpadapter.NewHandler(mgr))
	t.Cleanup(srv.Close)
	return srv
}

type stepResponse struct {
	ID     string             `json:"id"`
	Record *domain.StepRecord `json:"record"`
	Status string             `json:"status"`
	Error  string             `json:"error"`
}

func createSession(t *testing.T, srv *httptest.Server, model string) stepResponse {
	t.Helper()
	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(model))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out stepResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.ID)
	return out
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_CreateSession(t *testing.T) {
	srv := newTestServer(t)

	out := createSession(t, srv, toggleModelJSON)
	assert.Equal(t, "running", out.Status)
	require.NotNil(t, out.Record)
	assert.Equal(t, []string{"off"}, out.Record.Path)
}

func TestServer_CreateInvalidBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_CreateStructurallyInvalidModel(t *testing.T) {
	srv := newTestServer(t)

	body := `{"states": [{"name": "a"}, {"name": "b"}]}`
	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var out stepResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Error, "no_initial_state")
}

func TestServer_CreateHaltedOnEntry(t *testing.T) {
	srv := newTestServer(t)

	body := `{
		"states": [{"name": "a", "is_initial": true, "entry_action": "error('bad entry')"}]
	}`
	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out stepResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "halted", out.Status)
	assert.Contains(t, out.Error, "entry action failed")
}

func TestServer_Step(t *testing.T) {
	srv := newTestServer(t)
	created := createSession(t, srv, toggleModelJSON)

	body := bytes.NewReader([]byte(`{"event": "flip"}`))
	resp, err := http.Post(srv.URL+"/sessions/"+created.ID+"/step", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out stepResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "running", out.Status)
	require.NotNil(t, out.Record)
	assert.Equal(t, "off--flip-->on", out.Record.TransitionFired)
	assert.Equal(t, []string{"on"}, out.Record.Path)
}

func TestServer_StepWithoutBodyIsInternalTick(t *testing.T) {
	srv := newTestServer(t)
	created := createSession(t, srv, toggleModelJSON)

	resp, err := http.Post(srv.URL+"/sessions/"+created.ID+"/step", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out stepResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.Record.TransitionFired)
	assert.Equal(t, []string{"off"}, out.Record.Path)
}

func TestServer_StepHaltReportsErrorWithRecord(t *testing.T) {
	srv := newTestServer(t)

	model := `{
		"states": [
			{"name": "a", "is_initial": true, "exit_action": "error('stuck door')"},
			{"name": "b"}
		],
		"transitions": [{"source": "a", "target": "b", "event": "go"}]
	}`
	created := createSession(t, srv, model)

	body := bytes.NewReader([]byte(`{"event": "go"}`))
	resp, err := http.Post(srv.URL+"/sessions/"+created.ID+"/step", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out stepResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "halted", out.Status)
	assert.Contains(t, out.Error, "exit action failed")
	require.NotNil(t, out.Record)
	assert.Equal(t, []string{"a"}, out.Record.Path)

	// Further steps hit the halted session and conflict.
	resp, err = http.Post(srv.URL+"/sessions/"+created.ID+"/step", "application/json",
		bytes.NewReader([]byte(`{"event": "go"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_GetSnapshot(t *testing.T) {
	srv := newTestServer(t)
	created := createSession(t, srv, toggleModelJSON)

	resp, err := http.Get(srv.URL + "/sessions/" + created.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap domain.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, []string{"off"}, snap.Path)
	assert.Equal(t, domain.StatusRunning, snap.Status)
	assert.Equal(t, false, snap.Vars["lit"])
}

func TestServer_SessionNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/sessions/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ListSessions(t *testing.T) {
	srv := newTestServer(t)
	a := createSession(t, srv, toggleModelJSON)
	b := createSession(t, srv, toggleModelJSON)

	resp, err := http.Get(srv.URL + "/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.ElementsMatch(t, []string{a.ID, b.ID}, out["sessions"])
}

func TestServer_Reset(t *testing.T) {
	srv := newTestServer(t)
	created := createSession(t, srv, toggleModelJSON)

	_, err := http.Post(srv.URL+"/sessions/"+created.ID+"/step", "application/json",
		bytes.NewReader([]byte(`{"event": "flip"}`)))
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/sessions/"+created.ID+"/reset", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out stepResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "running", out.Status)
	assert.Equal(t, []string{"off"}, out.Record.Path)
}

func TestServer_PossibleEvents(t *testing.T) {
	srv := newTestServer(t)
	created := createSession(t, srv, toggleModelJSON)

	resp, err := http.Get(srv.URL + "/sessions/" + created.ID + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"flip"}, out["events"])
}

func TestServer_DeleteSession(t *testing.T) {
	srv := newTestServer(t)
	created := createSession(t, srv, toggleModelJSON)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+created.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/sessions/" + created.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}
