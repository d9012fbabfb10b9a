package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sightline/pkg/cache"
	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/observability"
	"github.com/matzehuels/sightline/pkg/pipeline"
	"github.com/matzehuels/sightline/pkg/scene"
	"github.com/matzehuels/sightline/pkg/store"
	"github.com/matzehuels/sightline/pkg/visibility"
)

const squareJSON = `{
  "name": "square",
  "polygons": [{"vertices": [[0, 0], [10, 0], [10, 10], [0, 10]]}],
  "observers": [{"name": "guard", "at": [2, 2]}]
}`

const squareYAML = `name: square
polygons:
  - vertices: [[0, 0], [10, 0], [10, 10], [0, 10]]
`

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestServer(t *testing.T, c cache.Cache) (*Server, *httptest.Server) {
	t.Helper()
	runner := pipeline.NewRunner(c, nil, quietLogger())
	s := New(store.NewMemoryStore(), runner, quietLogger(), Options{})
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func do(t *testing.T, method, url, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func createScene(t *testing.T, ts *httptest.Server) SceneSummary {
	t.Helper()
	resp, body := do(t, http.MethodPost, ts.URL+"/v1/scenes", "application/json", squareJSON)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	var out SceneSummary
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func decodeError(t *testing.T, body []byte) errorBody {
	t.Helper()
	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("error body %s: %v", body, err)
	}
	return e
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, body := do(t, http.MethodGet, ts.URL+"/healthz", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Errorf("healthz = %d %s", resp.StatusCode, body)
	}
}

func TestSceneLifecycle(t *testing.T) {
	s, ts := newTestServer(t, nil)
	created := createScene(t, ts)

	if created.Triangulation == nil || created.Triangulation.Faces == 0 {
		t.Errorf("create response lacks triangulation stats: %+v", created)
	}
	if s.Registry().Len() != 1 {
		t.Errorf("registry holds %d scenes, want 1", s.Registry().Len())
	}

	resp, body := do(t, http.MethodGet, ts.URL+"/v1/scenes/"+created.ID, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d: %s", resp.StatusCode, body)
	}
	var rec struct {
		ID    string `json:"id"`
		Scene struct {
			Name string `json:"name"`
		} `json:"scene"`
	}
	if err := json.Unmarshal(body, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != created.ID || rec.Scene.Name != "square" {
		t.Errorf("get = %s", body)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/v1/scenes", "", "")
	var list []SceneSummary
	if err := json.Unmarshal(body, &list); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list = %d %s", resp.StatusCode, body)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}

	resp, _ = do(t, http.MethodDelete, ts.URL+"/v1/scenes/"+created.ID, "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if s.Registry().Len() != 0 {
		t.Error("deleted scene still attached")
	}
	resp, body = do(t, http.MethodGet, ts.URL+"/v1/scenes/"+created.ID, "", "")
	if resp.StatusCode != http.StatusNotFound || decodeError(t, body).Code != errors.ErrCodeSceneNotFound {
		t.Errorf("get after delete = %d %s", resp.StatusCode, body)
	}
}

func TestCreateSceneFormats(t *testing.T) {
	_, ts := newTestServer(t, nil)
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		code        errors.Code
	}{
		{"yaml", "application/yaml; charset=utf-8", squareYAML, http.StatusCreated, ""},
		{"default json", "", squareJSON, http.StatusCreated, ""},
		{"plain text", "text/plain", squareJSON, http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"schema violation", "application/json", `{"polygons": [{"vertices": "nope"}]}`, http.StatusBadRequest, errors.ErrCodeInvalidScene},
		{"no geometry", "application/json", `{"name": "empty"}`, http.StatusBadRequest, errors.ErrCodeInvalidScene},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, ts.URL+"/v1/scenes", tt.contentType, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, body)
			}
			if tt.code != "" {
				if got := decodeError(t, body).Code; got != tt.code {
					t.Errorf("code = %s, want %s", got, tt.code)
				}
			}
		})
	}
}

func TestVisibility(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, ts := newTestServer(t, c)
	created := createScene(t, ts)
	url := ts.URL + "/v1/scenes/" + created.ID + "/visibility"

	tests := []struct {
		name     string
		body     string
		status   int
		code     errors.Code
		observer string
		cached   bool
	}{
		{"point", `{"observer": [2, 2]}`, http.StatusOK, "", "q", false},
		{"named observer at the same point", `{"name": "guard"}`, http.StatusOK, "", "guard", true},
		{"exact point", `{"observer": ["7/2", "1/3"]}`, http.StatusOK, "", "q", false},
		{"on wall", `{"observer": [0, 5]}`, http.StatusUnprocessableEntity, errors.ErrCodePointNotLocated, "", false},
		{"outside", `{"observer": [20, 5]}`, http.StatusUnprocessableEntity, errors.ErrCodePointNotLocated, "", false},
		{"unknown name", `{"name": "ghost"}`, http.StatusBadRequest, errors.ErrCodeInvalidObserver, "", false},
		{"both", `{"name": "guard", "observer": [1, 1]}`, http.StatusBadRequest, errors.ErrCodeInvalidInput, "", false},
		{"empty", `{}`, http.StatusBadRequest, errors.ErrCodeInvalidInput, "", false},
		{"unknown field", `{"where": [1, 1]}`, http.StatusBadRequest, errors.ErrCodeInvalidInput, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, url, "application/json", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, body)
			}
			if tt.code != "" {
				if got := decodeError(t, body).Code; got != tt.code {
					t.Errorf("code = %s, want %s", got, tt.code)
				}
				return
			}
			var out VisibilityResponse
			if err := json.Unmarshal(body, &out); err != nil {
				t.Fatal(err)
			}
			if out.Observer != tt.observer || out.Cached != tt.cached {
				t.Errorf("response observer=%q cached=%v, want %q %v", out.Observer, out.Cached, tt.observer, tt.cached)
			}
			if out.Area != "100" || out.Vertices != 4 {
				t.Errorf("region area=%s vertices=%d, want the whole room", out.Area, out.Vertices)
			}
		})
	}
}

func TestVisibilityUnknownScene(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, body := do(t, http.MethodPost, ts.URL+"/v1/scenes/0b9c2d1e-3f4a-4b5c-8d6e-7f8091a2b3c4/visibility",
		"application/json", `{"observer": [1, 1]}`)
	if resp.StatusCode != http.StatusNotFound || decodeError(t, body).Code != errors.ErrCodeSceneNotFound {
		t.Errorf("status = %d: %s", resp.StatusCode, body)
	}
}

func TestRoutingErrors(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, _ := do(t, http.MethodGet, ts.URL+"/v2/nothing", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown route status = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPut, ts.URL+"/v1/scenes", "", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("PUT status = %d", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeInvalidScene, http.StatusBadRequest},
		{errors.ErrCodeInvalidObserver, http.StatusBadRequest},
		{errors.ErrCodeSceneNotFound, http.StatusNotFound},
		{errors.ErrCodePointNotLocated, http.StatusUnprocessableEntity},
		{errors.ErrCodeStepLimitExceeded, http.StatusUnprocessableEntity},
		{errors.ErrCodeDetached, http.StatusConflict},
		{errors.ErrCodeTimeout, http.StatusGatewayTimeout},
		{errors.ErrCodeTopologyInvariant, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.code); got != tt.want {
			t.Errorf("StatusFor(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

type recordingHTTPHooks struct {
	mu     sync.Mutex
	routes []string
}

func (h *recordingHTTPHooks) OnRequest(context.Context, string, string) {}

func (h *recordingHTTPHooks) OnResponse(_ context.Context, method, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, method+" "+route)
}

func TestHTTPHooks(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	_, ts := newTestServer(t, nil)
	created := createScene(t, ts)
	do(t, http.MethodGet, ts.URL+"/v1/scenes/"+created.ID, "", "")

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.routes) != 2 {
		t.Fatalf("routes = %v, want 2 requests", hooks.routes)
	}
	if !strings.HasPrefix(hooks.routes[0], "POST /v1/scenes") {
		t.Errorf("create reported as %q", hooks.routes[0])
	}
	if !strings.HasPrefix(hooks.routes[1], "GET /v1/scenes/{id}") || strings.Contains(hooks.routes[1], created.ID) {
		t.Errorf("get reported as %q, want the route pattern", hooks.routes[1])
	}
}

func TestRegistryBuildsOnce(t *testing.T) {
	st := store.NewMemoryStore()
	runner := pipeline.NewRunner(nil, nil, quietLogger())
	reg := NewRegistry(runner, pipeline.Options{}, quietLogger())

	sc, err := scene.Decode([]byte(squareJSON), scene.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := st.Put(context.Background(), sc)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	adapters := make(chan any, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := reg.Acquire(context.Background(), rec)
			if err != nil {
				t.Error(err)
				return
			}
			adapters <- a
		}()
	}
	wg.Wait()
	close(adapters)

	var first any
	for a := range adapters {
		if first == nil {
			first = a
		} else if a != first {
			t.Error("Acquire built more than one adapter")
		}
	}

	a, _ := reg.Acquire(context.Background(), rec)
	if a.Builds() != 1 {
		t.Errorf("adapter built %d times", a.Builds())
	}
	reg.Remove(rec.ID)
	if a.IsAttached() {
		t.Error("Remove left the adapter attached")
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d after Remove", reg.Len())
	}
}

func TestRegistryRemoveDuringAcquire(t *testing.T) {
	st := store.NewMemoryStore()
	runner := pipeline.NewRunner(nil, nil, quietLogger())

	sc, err := scene.Decode([]byte(squareJSON), scene.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := st.Put(context.Background(), sc)
	if err != nil {
		t.Fatal(err)
	}

	for round := 0; round < 50; round++ {
		reg := NewRegistry(runner, pipeline.Options{}, quietLogger())

		var (
			wg  sync.WaitGroup
			got *visibility.Adapter
			err error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			got, err = reg.Acquire(context.Background(), rec)
		}()
		go func() {
			defer wg.Done()
			reg.Remove(rec.ID)
		}()
		wg.Wait()

		switch {
		case err != nil:
			if !errors.Is(err, errors.ErrCodeDetached) {
				t.Fatalf("round %d: Acquire error = %v, want %s", round, err, errors.ErrCodeDetached)
			}
		case got == nil:
			t.Fatalf("round %d: Acquire returned neither adapter nor error", round)
		case got.IsAttached() && reg.Len() != 1:
			// An adapter built after Remove must still be tracked so a later
			// Remove can detach it.
			t.Fatalf("round %d: attached adapter escaped the registry", round)
		}
		reg.Close()
		if got != nil && got.IsAttached() {
			t.Fatalf("round %d: Close left the adapter attached", round)
		}
	}
}
