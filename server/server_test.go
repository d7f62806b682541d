package server_test

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techfeed/artifact"
	"techfeed/models"
	"techfeed/server"
	"techfeed/viewer"
)

type itemsBody struct {
	View   string       `json:"view"`
	Search string       `json:"search"`
	Total  int          `json:"total"`
	Items  []models.Row `json:"items"`
	Error  string       `json:"error"`
}

type stateBody struct {
	Link    string   `json:"link"`
	Active  bool     `json:"active"`
	Starred []string `json:"starred"`
	Read    []string `json:"read"`
}

func setup(t *testing.T) (*fiber.App, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.json")
	app := server.Server(&server.ServerConfig{
		Cache:       artifact.NewCache(path),
		Store:       viewer.NewMemoryStore(),
		Broadcaster: server.NewBroadcaster(),
	})
	return app, path
}

func writeFixture(t *testing.T, path string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, artifact.Write(path, []models.FeedItem{
		{Title: "Go 1.23 released", Link: "https://go.dev/blog/go1.23", PubDate: now.Add(-time.Hour), Categories: []string{"go"}, Source: "Go Blog"},
		{Title: "Kubernetes tips", Link: "https://k8s.io/tips", PubDate: now.Add(-2 * time.Hour), Categories: []string{"k8s"}, Source: "CNCF"},
	}))
}

func do(t *testing.T, app *fiber.App, req *http.Request, user string) *http.Response {
	t.Helper()
	if user != "" {
		req.AddCookie(&http.Cookie{Name: server.UserCookie, Value: user})
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var body T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func post(path string, link string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(fmt.Sprintf(`{"link":%q}`, link)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestFeedJSON(t *testing.T) {
	app, path := setup(t)

	resp := do(t, app, httptest.NewRequest(http.MethodGet, "/feed.json", nil), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	writeFixture(t, path)
	resp = do(t, app, httptest.NewRequest(http.MethodGet, "/feed.json", nil), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	items, err := artifact.Decode(resp.Body)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestItemsLoadFailure(t *testing.T) {
	app, _ := setup(t)

	resp := do(t, app, httptest.NewRequest(http.MethodGet, "/api/items", nil), "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := decode[itemsBody](t, resp)
	assert.Equal(t, "Failed to load feed.", body.Error)
	assert.Empty(t, body.Items)
}

func TestItemsInvalidView(t *testing.T) {
	app, path := setup(t)
	writeFixture(t, path)

	resp := do(t, app, httptest.NewRequest(http.MethodGet, "/api/items?view=trash", nil), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestItemsIssuesUserCookie(t *testing.T) {
	app, path := setup(t)
	writeFixture(t, path)

	resp := do(t, app, httptest.NewRequest(http.MethodGet, "/api/items", nil), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, server.UserCookie, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)

	body := decode[itemsBody](t, resp)
	assert.Equal(t, "new", body.View)
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Items, 2)
	assert.Equal(t, "Go 1.23 released", body.Items[0].Title)
	assert.Equal(t, "1h ago", body.Items[0].Age)
}

func TestToggleAndViews(t *testing.T) {
	app, path := setup(t)
	writeFixture(t, path)
	user := "5f0c7c8e-0a57-4e6e-9b43-7b8f3a3c7c11"

	resp := do(t, app, post("/api/star", "https://go.dev/blog/go1.23"), user)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	toggled := decode[stateBody](t, resp)
	assert.True(t, toggled.Active)
	assert.Equal(t, []string{"https://go.dev/blog/go1.23"}, toggled.Starred)

	resp = do(t, app, post("/api/read", "https://k8s.io/tips"), user)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, app, httptest.NewRequest(http.MethodGet, "/api/items?view=starred", nil), user)
	starred := decode[itemsBody](t, resp)
	require.Len(t, starred.Items, 1)
	assert.True(t, starred.Items[0].Starred)

	resp = do(t, app, httptest.NewRequest(http.MethodGet, "/api/items?view=archive", nil), user)
	archive := decode[itemsBody](t, resp)
	require.Len(t, archive.Items, 1)
	assert.Equal(t, "https://k8s.io/tips", archive.Items[0].Link)

	resp = do(t, app, httptest.NewRequest(http.MethodGet, "/api/items?view=new&q=GO", nil), user)
	search := decode[itemsBody](t, resp)
	assert.Equal(t, "GO", search.Search)
	assert.Len(t, search.Items, 1)

	resp = do(t, app, httptest.NewRequest(http.MethodGet, "/api/state", nil), user)
	state := decode[stateBody](t, resp)
	assert.Equal(t, []string{"https://go.dev/blog/go1.23"}, state.Starred)
	assert.Equal(t, []string{"https://k8s.io/tips"}, state.Read)

	// Other readers are unaffected
	resp = do(t, app, httptest.NewRequest(http.MethodGet, "/api/state", nil), "")
	other := decode[stateBody](t, resp)
	assert.Empty(t, other.Starred)
	assert.Empty(t, other.Read)
}

func TestToggleRequiresLink(t *testing.T) {
	app, _ := setup(t)

	resp := do(t, app, post("/api/star", ""), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConcurrentTogglesAreSerialized(t *testing.T) {
	app, _ := setup(t)
	user := "0b8a6f0e-5d6b-4c39-8f0d-2f8d1c2b7a55"

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := post("/api/star", fmt.Sprintf("https://example.com/%02d", i))
			req.AddCookie(&http.Cookie{Name: server.UserCookie, Value: user})
			resp, err := app.Test(req, -1)
			if assert.NoError(t, err) {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}(i)
	}
	wg.Wait()

	resp := do(t, app, httptest.NewRequest(http.MethodGet, "/api/state", nil), user)
	state := decode[stateBody](t, resp)
	assert.Len(t, state.Starred, 20)
}

func TestServesUI(t *testing.T) {
	app, _ := setup(t)

	resp := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Tech Feed")
}

func TestUIScriptHandlesLoadFailure(t *testing.T) {
	app, _ := setup(t)

	resp := do(t, app, httptest.NewRequest(http.MethodGet, "/app.js", nil), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	script := string(body)
	// The API error text is shown in place of the list
	assert.Contains(t, script, `"Failed to load feed."`)
	assert.Contains(t, script, "itemsEl.replaceChildren();")
	assert.Contains(t, script, "if (!res.ok) throw")
	// Superseded searches are cancelled
	assert.Contains(t, script, "new AbortController()")
}

func TestMetrics(t *testing.T) {
	app, _ := setup(t)

	resp := do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBroadcaster(t *testing.T) {
	bc := server.NewBroadcaster()
	first := make(chan models.RebuiltEvent, 1)
	second := make(chan models.RebuiltEvent, 1)
	bc.AddClient("first", first)
	bc.AddClient("second", second)
	assert.Equal(t, 2, bc.Clients())

	event := models.RebuiltEvent{Items: 42, Timestamp: time.Now()}
	bc.BroadcastRebuilt(event)
	assert.Equal(t, event, <-first)
	assert.Equal(t, event, <-second)

	// A full channel does not block the others
	second <- event
	bc.BroadcastRebuilt(event)
	assert.Equal(t, event, <-first)

	bc.RemoveClient("first")
	_, ok := <-first
	assert.False(t, ok)
	bc.RemoveClient("first")

	bc.Shutdown()
	assert.Equal(t, 0, bc.Clients())
	<-second
	_, ok = <-second
	assert.False(t, ok)
}

// readEvent reads one server-sent event frame
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if event != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventsStream(t *testing.T) {
	bc := server.NewBroadcaster()
	app := server.Server(&server.ServerConfig{
		Cache:       artifact.NewCache(filepath.Join(t.TempDir(), "feed.json")),
		Store:       viewer.NewMemoryStore(),
		Broadcaster: bc,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	defer app.ShutdownWithTimeout(5 * time.Second)
	// Closing the client channels ends the stream before shutdown
	defer bc.Shutdown()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)

	event, key := readEvent(t, reader)
	assert.Equal(t, "init", event)
	assert.NotEmpty(t, key)
	assert.Equal(t, 1, bc.Clients())

	bc.BroadcastRebuilt(models.RebuiltEvent{Items: 3, Timestamp: time.Now()})

	event, data := readEvent(t, reader)
	for event == "ping" {
		event, data = readEvent(t, reader)
	}
	require.Equal(t, "rebuilt", event)

	var rebuilt models.RebuiltEvent
	require.NoError(t, json.Unmarshal([]byte(data), &rebuilt))
	assert.Equal(t, 3, rebuilt.Items)
}
