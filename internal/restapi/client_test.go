package restapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/topoload/internal/inventory"
)

type recordedCall struct {
	Path      string
	SessionID string
	Body      map[string]any
}

type reply struct {
	status int
	body   string
}

// fakeGateway answers configured paths and records every call.
type fakeGateway struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []recordedCall
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server) {
	t.Helper()
	g := &fakeGateway{replies: map[string]reply{
		loginPath:  {200, `{"sessionId":"SID-1"}`},
		logoutPath: {200, `{}`},
	}}
	srv := httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(srv.Close)
	return g, srv
}

func (g *fakeGateway) on(path string, status int, body string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies[path] = reply{status, body}
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	g.mu.Lock()
	g.calls = append(g.calls, recordedCall{Path: r.URL.Path, SessionID: r.URL.Query().Get("sessionId"), Body: body})
	rep, ok := g.replies[r.URL.Path]
	g.mu.Unlock()

	if !ok {
		rep = reply{404, `{"status":{"message":"no such operation"}}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = w.Write([]byte(rep.body))
}

func (g *fakeGateway) last() recordedCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}

func loggedIn(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := New(Session{BaseURL: srv.URL + "/", User: "u", Password: "p"})
	require.NoError(t, c.Login(context.Background()))
	return c
}

func TestLogin_StoresSessionAndSendsDefaults(t *testing.T) {
	g, srv := newFakeGateway(t)
	c := loggedIn(t, srv)

	assert.Equal(t, "SID-1", c.SessionID())
	call := g.last()
	assert.Equal(t, loginPath, call.Path)
	assert.Equal(t, "1001", call.Body["manId"])
	assert.Equal(t, "admin_1001|G", call.Body["userGroupName"])
}

func TestLogin_Refused(t *testing.T) {
	g, srv := newFakeGateway(t)
	g.on(loginPath, 401, `{"status":{"message":"bad credentials"}}`)

	err := New(Session{BaseURL: srv.URL}).Login(context.Background())
	require.Error(t, err)
	assert.True(t, inventory.IsRemoteServiceError(err))
	assert.Contains(t, err.Error(), "bad credentials")
}

func TestLogout_ClearsSession(t *testing.T) {
	g, srv := newFakeGateway(t)
	c := loggedIn(t, srv)

	require.NoError(t, c.Logout(context.Background()))
	assert.Empty(t, c.SessionID())
	assert.Equal(t, "SID-1", g.last().SessionID)

	require.NoError(t, c.Logout(context.Background()), "second logout is a no-op")
}

func TestRequest_RequiresSession(t *testing.T) {
	_, srv := newFakeGateway(t)
	c := New(Session{BaseURL: srv.URL})

	_, err := c.Request(context.Background(), inventory.KindCampus, "query", map[string]any{})
	assert.True(t, inventory.IsRemoteServiceError(err))
}

func TestRequest_ServerErrorIsRemoteServiceError(t *testing.T) {
	g, srv := newFakeGateway(t)
	g.on(entityPath+"/campus/query", 503, `upstream down`)
	c := loggedIn(t, srv)

	_, err := c.Request(context.Background(), inventory.KindCampus, "query", map[string]any{})
	require.Error(t, err)
	assert.True(t, inventory.IsRemoteServiceError(err))
	assert.Contains(t, err.Error(), "503")
}

func TestRequest_TimeoutIsRemoteServiceError(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	c := New(Session{BaseURL: slow.URL, Timeout: 20 * time.Millisecond}, WithSessionID("SID"))
	_, err := c.Request(context.Background(), inventory.KindNode, "query", map[string]any{})
	require.Error(t, err)
	assert.True(t, inventory.IsRemoteServiceError(err))
}

func TestRequest_RejectedCarriesMessage(t *testing.T) {
	g, srv := newFakeGateway(t)
	g.on(entityPath+"/node/create", 400, `{"status":{"message":"mandatory attribute id missing"}}`)
	c := loggedIn(t, srv)

	resp, err := c.Request(context.Background(), inventory.KindNode, "create", map[string]any{})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "mandatory attribute id missing", resp.Message)
}

func TestResponseRecords_ListAndKeyedObject(t *testing.T) {
	list := &Response{Data: json.RawMessage(`[{"elid":"A","id":7},{"elid":"B"}]`)}
	recs, err := list.Records()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].Elid)
	assert.Equal(t, "7", recs[0].String("id"))

	keyed := &Response{Data: json.RawMessage(`{"y":{"elid":"Y"},"x":{"elid":"X"}}`)}
	recs, err = keyed.Records()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "X", recs[0].Elid)

	empty := &Response{}
	recs, err = empty.Records()
	require.NoError(t, err)
	assert.Empty(t, recs)
}
