package httpapi_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/jotter/internal/httpapi"
	"github.com/aretw0/jotter/pkg/adapters/memory"
	"github.com/aretw0/jotter/pkg/auth"
	"github.com/aretw0/jotter/pkg/core"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	srv    *httptest.Server
	api    *httpapi.Server
	store  *memory.Store
	tokens *auth.Tokens
	token  string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.New(nil)
	store.Seed(
		core.NewNote("a", "u1", core.NoteInput{Title: "Note A", Content: "hello", Tags: []string{"Work"}}, epoch),
		core.NewNote("b", "u1", core.NoteInput{Title: "Note B", Tags: []string{"Personal"}, IsFavorite: true}, epoch.Add(time.Minute)),
		core.NewNote("c", "u1", core.NoteInput{Title: "Note C", Tags: []string{"Work"}, IsArchived: true}, epoch.Add(2*time.Minute)),
		core.NewNote("z", "u2", core.NoteInput{Title: "Not yours"}, epoch),
	)

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	token, err := tokens.Issue(core.Identity{ID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)

	api, err := httpapi.New(httpapi.Config{Store: store, Tokens: tokens, MaxTagValues: 2, Timeout: 2 * time.Second})
	require.NoError(t, err)
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, api: api, store: store, tokens: tokens, token: token}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeView(t *testing.T, resp *http.Response) core.View {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v core.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func noteIDs(v core.View) []string {
	out := make([]string, len(v.Notes))
	for i, n := range v.Notes {
		out[i] = n.ID
	}
	return out
}

func TestAuthentication(t *testing.T) {
	f := setup(t)

	resp, err := http.Get(f.srv.URL + "/notes")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, err := auth.NewTokens("other-secret", time.Hour)
	require.NoError(t, err)
	f.token, err = other.Issue(core.Identity{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/notes", "").StatusCode)

	health, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestList(t *testing.T) {
	f := setup(t)

	v := decodeView(t, f.do(t, http.MethodGet, "/notes", ""))
	assert.ElementsMatch(t, []string{"a", "b"}, noteIDs(v))
	assert.Equal(t, core.NoteCounts{Total: 2, Favorites: 1, Archived: 1}, v.Counts)
	assert.Equal(t, "All Notes", v.Title)
	assert.True(t, v.Ready)

	v = decodeView(t, f.do(t, http.MethodGet, "/notes?archived=true", ""))
	assert.Equal(t, []string{"c"}, noteIDs(v))

	v = decodeView(t, f.do(t, http.MethodGet, "/notes?tag=Work&tag=Personal&sort=alphabetical", ""))
	assert.Equal(t, []string{"a", "b"}, noteIDs(v))

	v = decodeView(t, f.do(t, http.MethodGet, "/notes?search=HELLO", ""))
	assert.Equal(t, []string{"a"}, noteIDs(v))

	t.Run("Bad Parameters", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/notes?sort=random", "").StatusCode)
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/notes?favorites=maybe", "").StatusCode)
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/notes?tag=a&tag=b&tag=c", "").StatusCode)
	})
}

func TestWrites(t *testing.T) {
	f := setup(t)

	resp := f.do(t, http.MethodPost, "/notes", `{"title":"  ","tags":["x"," x "]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	id := created["id"]
	require.NotEmpty(t, id)

	n, ok := f.store.Get(id)
	require.True(t, ok)
	assert.Equal(t, core.DefaultTitle, n.Title)
	assert.Equal(t, []string{"x"}, n.Tags)
	assert.Equal(t, "u1", n.UserID)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPatch, "/notes/"+id, `{"content":"body"}`).StatusCode)
	n, _ = f.store.Get(id)
	assert.Equal(t, "body", n.Content)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/notes/"+id, `{}`).StatusCode)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/notes/a/favorite", "").StatusCode)
	n, _ = f.store.Get("a")
	assert.True(t, n.IsFavorite)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/notes/b/archive", "").StatusCode)
	n, _ = f.store.Get("b")
	assert.True(t, n.IsArchived)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/notes/"+id, "").StatusCode)
	_, ok = f.store.Get(id)
	assert.False(t, ok)

	t.Run("Errors", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/notes", `{`).StatusCode)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/notes/missing/favorite", "").StatusCode)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/notes/missing", "").StatusCode)
		assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/notes/z", "").StatusCode)
		_, ok := f.store.Get("z")
		assert.True(t, ok)
	})

	assert.Eventually(t, func() bool {
		state := f.api.State().(httpapi.DebugState)
		return state.ActiveSessions == 0 && f.store.ActiveListeners() == 0
	}, 2*time.Second, 10*time.Millisecond, "every request releases its session")
}

func TestStream(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/notes/stream?tag=Work", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan core.View, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var v core.View
			if json.Unmarshal([]byte(data), &v) == nil {
				events <- v
			}
		}
	}()

	next := func(cond func(core.View) bool) core.View {
		t.Helper()
		timeout := time.After(3 * time.Second)
		for {
			select {
			case v, ok := <-events:
				require.True(t, ok, "stream ended")
				if cond(v) {
					return v
				}
			case <-timeout:
				t.Fatal("timed out waiting for event")
				return core.View{}
			}
		}
	}

	v := next(func(v core.View) bool { return v.Ready })
	assert.Equal(t, []string{"a"}, noteIDs(v))
	assert.Equal(t, "Work Notes", v.Title)

	f.store.Seed(core.NewNote("d", "u1", core.NoteInput{Title: "Note D", Tags: []string{"Work"}}, epoch.Add(time.Hour)))
	v = next(func(v core.View) bool { return len(v.Notes) == 2 })
	assert.Equal(t, []string{"d", "a"}, noteIDs(v))

	require.Eventually(t, func() bool {
		return f.api.State().(httpapi.DebugState).ActiveStreams == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		return f.api.State().(httpapi.DebugState).ActiveStreams == 0 && f.store.ActiveListeners() == 0
	}, 2*time.Second, 10*time.Millisecond, "disconnect releases the live queries")
}

func TestDebugState(t *testing.T) {
	f := setup(t)
	resp, err := http.Get(f.srv.URL + "/debug/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, "memory-store", state["store_type"])
	assert.Equal(t, "http-api", f.api.ComponentType())
}

func TestNew_Validation(t *testing.T) {
	_, err := httpapi.New(httpapi.Config{})
	assert.Error(t, err)
	_, err = httpapi.New(httpapi.Config{Store: memory.New(nil)})
	assert.Error(t, err)
}
