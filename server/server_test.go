package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sardine-ai/go-widget-config/client"
	"github.com/sardine-ai/go-widget-config/model"
	"github.com/sardine-ai/go-widget-config/source"
)

// mockRepository is a MemoryRepository whose reads can be made to fail.
type mockRepository struct {
	*source.MemoryRepository
	shouldError atomic.Bool
}

func newMockRepository(name string) *mockRepository {
	return &mockRepository{MemoryRepository: source.NewMemoryRepository(name)}
}

func (m *mockRepository) Read(ctx context.Context, channel model.Channel) (string, error) {
	if m.shouldError.Load() {
		return "", errors.New("mock read error")
	}
	return m.MemoryRepository.Read(ctx, channel)
}

func newTestServer(t *testing.T, repo source.Repository) *Server {
	t.Helper()
	controller := client.NewController(context.Background(), repo, 0)
	t.Cleanup(controller.Close)
	return NewServer(controller)
}

func do(t *testing.T, handler http.Handler, method, target, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	return string(body)
}

// TestServerHealthEndpoint tests the /health endpoint
func TestServerHealthEndpoint(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))

	resp := do(t, server.Handler(), "GET", "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(readBody(t, resp)), &result); err != nil {
		t.Fatalf("Failed to parse JSON response: %v", err)
	}
	if result["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%v'", result["status"])
	}
}

// TestServerHealthEndpointUnhealthy tests /health when the repository fails
func TestServerHealthEndpointUnhealthy(t *testing.T) {
	repo := newMockRepository("test")
	repo.shouldError.Store(true)
	server := newTestServer(t, repo)

	resp := do(t, server.Handler(), "GET", "/health", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "unhealthy") {
		t.Errorf("Expected unhealthy status, got %s", body)
	}
	if !server.IsReady() {
		t.Error("Expected server to be ready after a failed refresh")
	}
}

// TestServerReadyEndpoint tests the /ready endpoint
func TestServerReadyEndpoint(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))

	resp := do(t, server.Handler(), "GET", "/ready", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	var result map[string]string
	if err := json.Unmarshal([]byte(readBody(t, resp)), &result); err != nil {
		t.Fatalf("Failed to parse JSON response: %v", err)
	}
	if result["status"] != "ready" {
		t.Errorf("Expected status 'ready', got '%s'", result["status"])
	}
}

// TestServerStatusEndpoint tests the /status endpoint
func TestServerStatusEndpoint(t *testing.T) {
	repo := newMockRepository("widgets")
	if err := repo.Write(context.Background(), model.SceneList, "[]"); err != nil {
		t.Fatal(err)
	}
	server := newTestServer(t, repo)

	resp := do(t, server.Handler(), "GET", "/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	var result struct {
		Healthy    bool             `json:"healthy"`
		Ready      bool             `json:"ready"`
		Repository RepositoryStatus `json:"repository"`
	}
	if err := json.Unmarshal([]byte(readBody(t, resp)), &result); err != nil {
		t.Fatalf("Failed to parse JSON response: %v", err)
	}
	if !result.Healthy || !result.Ready {
		t.Errorf("Expected healthy and ready, got %+v", result)
	}
	if result.Repository.Name != "widgets" {
		t.Errorf("Expected repository widgets, got %s", result.Repository.Name)
	}
	if !result.Repository.Channels["scene_configuration"] {
		t.Error("Expected scene_configuration to be set up")
	}
	if result.Repository.Channels["control_configuration"] {
		t.Error("Expected control_configuration not to be set up")
	}
}

func TestServerListNotSetUp(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))

	for _, path := range []string{"/scenes", "/controls", "/states"} {
		resp := do(t, server.Handler(), "GET", path, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: Expected status 200, got %d", path, resp.StatusCode)
		}
		if body := readBody(t, resp); body != `{"error":"Not Set Up"}` {
			t.Errorf("%s: Expected Not Set Up, got %s", path, body)
		}
	}
}

func TestServerSaveAndGetSceneList(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	handler := server.Handler()

	resp := do(t, handler, "PUT", "/scenes", `[{"name":"Evening","id":1}]`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); body != model.Success.JSON() {
		t.Errorf("Expected success response, got %s", body)
	}

	resp = do(t, handler, "GET", "/scenes", "")
	if body := readBody(t, resp); body != `{"data":[{"name":"Evening","id":1}]}` {
		t.Errorf("Unexpected scene list %s", body)
	}

	resp = do(t, handler, "GET", "/blobs/scenes", "")
	if body := readBody(t, resp); body != `[{"name":"Evening","id":1}]` {
		t.Errorf("Unexpected stored blob %s", body)
	}

	scenes := server.Controller.Scenes()
	if len(scenes) != 1 || scenes[0].Name != "Evening" || scenes[0].ID != "1" {
		t.Errorf("Unexpected parsed scenes %+v", scenes)
	}
}

func TestServerSaveListRejectsBadBodies(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))

	for _, body := range []string{"not json", `{"id":1}`, "", "[1] [2]"} {
		resp := do(t, server.Handler(), "PUT", "/controls", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%q: Expected status 400, got %d", body, resp.StatusCode)
		}
	}
	if server.Controller.IsSetUp(model.ControlDeviceList) {
		t.Error("Rejected bodies must not be stored")
	}
}

func TestServerAppInfo(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	handler := server.Handler()

	resp := do(t, handler, "POST", "/app-info", `{"uid":"u","appKey":"k","languageKey":"en"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.StatusCode)
	}
	app, ok := server.Controller.AppConfiguration()
	if !ok || app.AppKey != "k" || app.LanguageKey != "en" {
		t.Errorf("Unexpected app configuration %+v", app)
	}

	resp = do(t, handler, "GET", "/blobs/app", "")
	if body := readBody(t, resp); body != `{"uid":"u","appKey":"k","languageKey":"en"}` {
		t.Errorf("Key order must be preserved, got %s", body)
	}

	resp = do(t, handler, "POST", "/app-info", `["not","an","object"]`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestServerClearAll(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	handler := server.Handler()

	do(t, handler, "POST", "/app-info", `{"appKey":"k"}`)
	do(t, handler, "PUT", "/states", `[{"id":1}]`)

	resp := do(t, handler, "DELETE", "/configuration", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); body != model.Success.JSON() {
		t.Errorf("Expected success response, got %s", body)
	}

	for _, path := range []string{"/scenes", "/controls", "/states"} {
		if body := readBody(t, do(t, handler, "GET", path, "")); body != `{"data":[]}` {
			t.Errorf("%s: Expected empty data, got %s", path, body)
		}
	}
	if resp := do(t, handler, "GET", "/blobs/app-info", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected app info to be absent, got %d", resp.StatusCode)
	}
}

func TestServerInvalidStoredBlob(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	handler := server.Handler()

	resp := do(t, handler, "PUT", "/blobs/states", "{oops")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.StatusCode)
	}
	if body := readBody(t, do(t, handler, "GET", "/states", "")); body != `{"err":"JSON ERROR"}` {
		t.Errorf("Expected JSON ERROR, got %s", body)
	}
}

func TestServerDeeplyNestedBodies(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	handler := server.Handler()
	body := strings.Repeat("[", maxBodyBytes-1)

	if resp := do(t, handler, "PUT", "/scenes", body); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
	if resp := do(t, handler, "POST", "/app-info", strings.Repeat(`{"a":`, 20000)); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}

	if resp := do(t, handler, "PUT", "/blobs/scenes", body); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.StatusCode)
	}
	if got := readBody(t, do(t, handler, "GET", "/scenes", "")); got != `{"err":"JSON ERROR"}` {
		t.Errorf("Expected JSON ERROR, got %s", got)
	}
}

func TestServerBlobs(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	handler := server.Handler()

	if resp := do(t, handler, "GET", "/blobs/scene_configuration", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for absent blob, got %d", resp.StatusCode)
	}
	if resp := do(t, handler, "GET", "/blobs/unknown", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown channel, got %d", resp.StatusCode)
	}
	if resp := do(t, handler, "PUT", "/blobs/scene_configuration", "[]"); resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	if resp := do(t, handler, "DELETE", "/blobs/scene_configuration", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	if resp := do(t, handler, "GET", "/blobs/scene_configuration", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}
}

// TestServerMethodNotAllowed tests that unsupported methods are rejected
func TestServerMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	handler := server.Handler()

	cases := map[string][]string{
		"POST":   {"/health", "/ready", "/status", "/scenes"},
		"PUT":    {"/health", "/app-info"},
		"DELETE": {"/states", "/metrics"},
		"PATCH":  {"/blobs/scenes", "/configuration"},
	}
	for method, endpoints := range cases {
		for _, endpoint := range endpoints {
			resp := do(t, handler, method, endpoint, "")
			if resp.StatusCode != http.StatusMethodNotAllowed {
				t.Errorf("%s %s: Expected status 405, got %d", method, endpoint, resp.StatusCode)
			}
		}
	}
}

// TestServerAuthMiddleware tests the authentication middleware
func TestServerAuthMiddleware(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	server.AuthKey = "secret-key"
	handler := server.Handler()

	// Test without auth key
	if resp := do(t, handler, "GET", "/scenes", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without auth key, got %d", resp.StatusCode)
	}

	// Test with wrong auth key
	req := httptest.NewRequest("GET", "/scenes", nil)
	req.Header.Set("X-API-KEY", "wrong-key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong auth key, got %d", w.Result().StatusCode)
	}

	// Test with correct auth key
	req = httptest.NewRequest("GET", "/scenes", nil)
	req.Header.Set("X-API-KEY", "secret-key")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with correct auth key, got %d", w.Result().StatusCode)
	}
}

// TestServerHealthEndpointsBypassAuth tests that probes don't require authentication
func TestServerHealthEndpointsBypassAuth(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	server.AuthKey = "secret-key"
	handler := server.Handler()

	for _, endpoint := range []string{"/health", "/ready", "/status", "/metrics"} {
		if resp := do(t, handler, "GET", endpoint, ""); resp.StatusCode != http.StatusOK {
			t.Errorf("%s: Expected 200 without auth key, got %d", endpoint, resp.StatusCode)
		}
	}
	if resp := do(t, handler, "GET", "/blobs/scenes", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("/blobs/scenes: Expected 401 without auth key, got %d", resp.StatusCode)
	}
}

func TestServerRequestID(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	handler := server.Handler()

	resp := do(t, handler, "GET", "/health", "")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected a generated request id")
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Result().Header.Get("X-Request-ID"); got != "abc" {
		t.Errorf("Expected request id abc, got %q", got)
	}
}

func TestServerETag(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	handler := server.Handler()
	do(t, handler, "PUT", "/scenes", `[{"id":1}]`)

	resp := do(t, handler, "GET", "/scenes", "")
	tag := resp.Header.Get("ETag")
	if tag == "" {
		t.Fatal("Expected an ETag header")
	}

	req := httptest.NewRequest("GET", "/scenes", nil)
	req.Header.Set("If-None-Match", tag)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusNotModified {
		t.Errorf("Expected 304, got %d", w.Result().StatusCode)
	}
}

func TestServerMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	handler := server.Handler()
	do(t, handler, "GET", "/controls", "")

	resp := do(t, handler, "GET", "/metrics", "")
	if body := readBody(t, resp); !strings.Contains(body, "widget_config_bridge_operations_total") {
		t.Error("Expected bridge operation counter in metrics output")
	}
}

// TestServerConcurrentHTTPRequests tests concurrent HTTP requests
func TestServerConcurrentHTTPRequests(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	handler := server.Handler()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				for _, endpoint := range []string{"/health", "/status", "/scenes"} {
					req := httptest.NewRequest("GET", endpoint, nil)
					handler.ServeHTTP(httptest.NewRecorder(), req)
				}
				req := httptest.NewRequest("PUT", "/scenes", strings.NewReader("[]"))
				handler.ServeHTTP(httptest.NewRecorder(), req)
			}
		}()
	}
	wg.Wait()
}

// TestServerHEADRequests tests that HEAD requests work for probes
func TestServerHEADRequests(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	for _, endpoint := range []string{"/health", "/ready", "/status"} {
		if resp := do(t, server.Handler(), "HEAD", endpoint, ""); resp.StatusCode != http.StatusOK {
			t.Errorf("HEAD %s: Expected 200, got %d", endpoint, resp.StatusCode)
		}
	}
}

// TestServerStartReturnsError tests that Start returns error properly
func TestServerStartReturnsError(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start("invalid-address:99999999")
	}()

	select {
	case err := <-errChan:
		if err == nil {
			t.Error("Expected error for invalid address")
		}
	case <-time.After(2 * time.Second):
		t.Error("Start did not fail")
	}
}

func TestServerShutdownBeforeStart(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))
	if err := server.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected no error on shutdown, got: %v", err)
	}
	if err := server.Start("127.0.0.1:0"); err != nil {
		t.Errorf("Expected Start after Shutdown to return nil, got: %v", err)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	server := newTestServer(t, newMockRepository("test"))

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start("127.0.0.1:0")
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("Expected no error on shutdown, got: %v", err)
	}
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Expected nil after graceful shutdown, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Start did not return after Shutdown")
	}
}

// A WebRepository pointed at the server reads and writes its blobs.
func TestWebRepositoryAgainstServer(t *testing.T) {
	server := newTestServer(t, newMockRepository("backing"))
	server.AuthKey = "secret-key"
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	remote, err := source.NewWebRepository("remote", httpServer.URL)
	if err != nil {
		t.Fatal(err)
	}
	remote.APIKey = "secret-key"
	ctx := context.Background()

	if _, err := remote.Read(ctx, model.SceneList); !errors.Is(err, source.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := remote.Write(ctx, model.SceneList, `[{"id":"s"}]`); err != nil {
		t.Fatal(err)
	}
	blob, err := remote.Read(ctx, model.SceneList)
	if err != nil || blob != `[{"id":"s"}]` {
		t.Errorf("Unexpected read %q, %v", blob, err)
	}
	if scenes := server.Controller.Scenes(); len(scenes) != 1 {
		t.Errorf("Expected the server's view to include the write, got %+v", scenes)
	}
	if err := remote.Delete(ctx, model.SceneList); err != nil {
		t.Fatal(err)
	}
	if err := remote.Delete(ctx, model.SceneList); err != nil {
		t.Errorf("Deleting twice must succeed, got %v", err)
	}

	remote.APIKey = ""
	if _, err := remote.Read(ctx, model.SceneList); err == nil || errors.Is(err, source.ErrNotFound) {
		t.Errorf("Expected an authorization error, got %v", err)
	}
}
