package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/impa/website/internal/auth"
	"github.com/impa/website/internal/contact"
	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/email"
	"github.com/impa/website/internal/events"
	"github.com/impa/website/internal/kv"
	"github.com/impa/website/internal/server/dto"
	"github.com/impa/website/internal/server/handlers"
	"github.com/impa/website/internal/server/ratelimit"
	"golang.org/x/crypto/bcrypt"
)

var testJWTSecret = []byte("test-secret-key-32-bytes-long!!!")

const (
	testAdmin    = "admin"
	testPassword = "correct horse"
)

type testEnv struct {
	server *httptest.Server
	store  *content.Store
	mem    *kv.Memory
	mail   *email.Simulated
	hub    *Hub
}

type envOption func(*Options)

func setupTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	mem := kv.NewMemory()
	store, err := content.New(t.Context(), mem)
	if err != nil {
		t.Fatalf("content.New: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	authSvc, err := auth.NewService(auth.Options{Username: testAdmin, PasswordHash: string(hash), Secret: testJWTSecret})
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	mail := &email.Simulated{}
	contactSvc, err := contact.NewService("", mail, "staff@impa.example")
	if err != nil {
		t.Fatalf("contact.NewService: %v", err)
	}
	hub := NewHub("http://localhost:3000")
	t.Cleanup(hub.Close)
	t.Cleanup(hub.Attach(store.Notifier(), store))
	o := &Options{
		Services: &handlers.Services{
			Content: store,
			Auth:    authSvc,
			Contact: contactSvc,
		},
		Config:       &handlers.Config{Frontend: "http://localhost:3000"},
		CORSOrigin:   "http://localhost:3000",
		MaxBodyBytes: 1 << 20,
		Hub:          hub,
	}
	for _, opt := range opts {
		opt(o)
	}
	server := httptest.NewServer(NewRouter(o))
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store, mem: mem, mail: mail, hub: hub}
}

// do performs an HTTP request, decodes the JSON response, and returns the
// response with its body consumed.
func (e *testEnv) do(t *testing.T, method, path string, body, response any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			bodyReader = strings.NewReader(s)
		} else {
			data, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("Marshal request body: %v", err)
			}
			bodyReader = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequestWithContext(t.Context(), method, e.server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do request: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		t.Fatalf("ReadAll/Close: %v", err)
	}
	if response != nil && len(data) > 0 {
		if err := json.Unmarshal(data, response); err != nil {
			t.Fatalf("Unmarshal response: %v\nBody: %s", err, string(data))
		}
	}
	return resp
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body, response any, token string) int {
	t.Helper()
	return e.do(t, method, path, body, response, token).StatusCode
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	var resp dto.Envelope[dto.LoginResponse]
	status := e.doJSON(t, http.MethodPost, "/api/auth/login", dto.LoginRequest{Username: testAdmin, Password: testPassword}, &resp, "")
	if status != http.StatusOK {
		t.Fatalf("POST /api/auth/login: got status %d, want %d", status, http.StatusOK)
	}
	if resp.Data.Token == "" {
		t.Fatal("login returned no token")
	}
	return resp.Data.Token
}

func TestIntegration(t *testing.T) {
	t.Parallel()
	t.Run("Health", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		var health dto.HealthResponse
		if status := env.doJSON(t, http.MethodGet, "/api/health", nil, &health, ""); status != http.StatusOK {
			t.Fatalf("got status %d, want %d", status, http.StatusOK)
		}
		if health.Status != "OK" || health.Version != handlers.APIVersion {
			t.Errorf("got %+v", health)
		}
		if _, err := time.Parse(time.RFC3339Nano, health.Timestamp); err != nil {
			t.Errorf("timestamp: %v", err)
		}
		var info dto.APIInfo
		if status := env.doJSON(t, http.MethodGet, "/api", nil, &info, ""); status != http.StatusOK {
			t.Fatalf("GET /api: got status %d", status)
		}
		if info.Message != "IMPA Backend API" || info.Endpoints["news"] != "/api/news" {
			t.Errorf("got %+v", info)
		}
	})

	t.Run("RouteNotFound", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		var resp dto.RouteNotFound
		if status := env.doJSON(t, http.MethodGet, "/api/nope", nil, &resp, ""); status != http.StatusNotFound {
			t.Fatalf("got status %d, want %d", status, http.StatusNotFound)
		}
		if resp.Message != "Route not found" || len(resp.AvailableRoutes) != len(handlers.Routes) {
			t.Errorf("got %+v", resp)
		}
	})

	t.Run("PublicReads", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		var news dto.Envelope[[]content.NewsItem]
		if status := env.doJSON(t, http.MethodGet, "/api/news", nil, &news, ""); status != http.StatusOK {
			t.Fatalf("got status %d", status)
		}
		if !news.Success || len(news.Data) != 6 || news.Count == nil || *news.Count != 6 {
			t.Errorf("got %d items, count %v", len(news.Data), news.Count)
		}

		var item dto.Envelope[content.NewsItem]
		if status := env.doJSON(t, http.MethodGet, "/api/news/1", nil, &item, ""); status != http.StatusOK {
			t.Fatalf("got status %d", status)
		}
		if item.Data.ID != 1 {
			t.Errorf("got id %d, want 1", item.Data.ID)
		}

		var html dto.Envelope[dto.NewsHTMLResponse]
		if status := env.doJSON(t, http.MethodGet, "/api/news/1/html", nil, &html, ""); status != http.StatusOK {
			t.Fatalf("html: got status %d", status)
		}
		if !strings.Contains(html.Data.HTML, "<p>") {
			t.Errorf("got %q", html.Data.HTML)
		}

		for _, path := range []string{"/api/news/999", "/api/news/abc"} {
			var e dto.ErrorResponse
			if status := env.doJSON(t, http.MethodGet, path, nil, &e, ""); status != http.StatusNotFound {
				t.Errorf("%s: got status %d, want %d", path, status, http.StatusNotFound)
			}
			if e.Success || e.Message != "News item not found" || e.Code != dto.ErrorCodeNotFound {
				t.Errorf("%s: got %+v", path, e)
			}
		}

		var projects dto.Envelope[[]content.ProjectItem]
		env.doJSON(t, http.MethodGet, "/api/projects/search?minProgress=60", nil, &projects, "")
		if len(projects.Data) != 3 {
			t.Errorf("got %d projects, want 3", len(projects.Data))
		}
		var p dto.Envelope[content.ProjectItem]
		if status := env.doJSON(t, http.MethodGet, "/api/projects/PRJ-002", nil, &p, ""); status != http.StatusOK || p.Data.Progress != 20 {
			t.Errorf("got status %d, %+v", status, p.Data)
		}
	})

	t.Run("WritesRequireToken", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		tests := []struct {
			method, path, token string
			want                string
		}{
			{http.MethodPost, "/api/news", "", "Access token required"},
			{http.MethodPut, "/api/news/1", "garbage", "Invalid or expired token"},
			{http.MethodDelete, "/api/projects/PRJ-001", "", "Access token required"},
			{http.MethodGet, "/api/admin/info", "", "Access token required"},
		}
		for _, tt := range tests {
			var e dto.ErrorResponse
			status := env.doJSON(t, tt.method, tt.path, map[string]string{}, &e, tt.token)
			if status != http.StatusUnauthorized {
				t.Errorf("%s %s: got status %d, want %d", tt.method, tt.path, status, http.StatusUnauthorized)
			}
			if e.Message != tt.want || e.Code != dto.ErrorCodeUnauthorized {
				t.Errorf("%s %s: got %+v", tt.method, tt.path, e)
			}
		}
		if got := len(env.store.AllNews()); got != 6 {
			t.Errorf("got %d news, want 6", got)
		}
	})

	t.Run("NewsCRUD", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		token := env.login(t)

		var created dto.Envelope[content.NewsItem]
		status := env.doJSON(t, http.MethodPost, "/api/news", dto.CreateNewsRequest{
			Title:   "افتتاح الميناء",
			Content: "تم افتتاح الميناء الجديد.",
		}, &created, token)
		if status != http.StatusCreated {
			t.Fatalf("POST /api/news: got status %d, want %d", status, http.StatusCreated)
		}
		if created.Message != "News created successfully" || created.Data.Status != "published" || created.Data.Summary == "" {
			t.Errorf("got %+v", created)
		}
		path := "/api/news/" + strconv.FormatInt(created.Data.ID, 10)

		var updated dto.Envelope[content.NewsItem]
		status = env.doJSON(t, http.MethodPut, path, map[string]any{"id": "ignored", "title": "عنوان جديد"}, &updated, token)
		if status != http.StatusOK {
			t.Fatalf("PUT: got status %d", status)
		}
		if updated.Data.Title != "عنوان جديد" || updated.Data.ID != created.Data.ID || updated.Message != "News updated successfully" {
			t.Errorf("got %+v", updated)
		}

		var photo dto.Envelope[content.NewsItem]
		env.doJSON(t, http.MethodPut, path+"/photo", map[string]any{"photo": "/images/port.jpg"}, &photo, token)
		if photo.Data.Photo == nil || *photo.Data.Photo != "/images/port.jpg" {
			t.Errorf("got photo %v", photo.Data.Photo)
		}

		var deleted dto.Envelope[any]
		if status := env.doJSON(t, http.MethodDelete, path, nil, &deleted, token); status != http.StatusOK {
			t.Fatalf("DELETE: got status %d", status)
		}
		if deleted.Message != "News deleted successfully" {
			t.Errorf("got %q", deleted.Message)
		}
		if status := env.doJSON(t, http.MethodDelete, path, nil, nil, token); status != http.StatusNotFound {
			t.Errorf("second DELETE: got status %d, want %d", status, http.StatusNotFound)
		}
	})

	t.Run("Drafts", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		token := env.login(t)
		var created dto.Envelope[content.NewsItem]
		env.doJSON(t, http.MethodPost, "/api/news", dto.CreateNewsRequest{Title: "t", Content: "c", Status: "draft"}, &created, token)
		path := "/api/news/" + strconv.FormatInt(created.Data.ID, 10)
		if status := env.doJSON(t, http.MethodGet, path, nil, nil, ""); status != http.StatusNotFound {
			t.Errorf("public GET draft: got status %d, want %d", status, http.StatusNotFound)
		}
		if status := env.doJSON(t, http.MethodGet, path, nil, nil, token); status != http.StatusOK {
			t.Errorf("admin GET draft: got status %d, want %d", status, http.StatusOK)
		}
		if status := env.doJSON(t, http.MethodGet, "/api/news?all=1", nil, nil, ""); status != http.StatusUnauthorized {
			t.Errorf("public ?all: got status %d, want %d", status, http.StatusUnauthorized)
		}
		var all dto.Envelope[[]content.NewsItem]
		env.doJSON(t, http.MethodGet, "/api/news?all=1", nil, &all, token)
		if len(all.Data) != 7 {
			t.Errorf("got %d items, want 7", len(all.Data))
		}
	})

	t.Run("BadRequests", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, func(o *Options) { o.MaxBodyBytes = 256 })
		token := env.login(t)
		tests := []struct {
			name   string
			body   any
			status int
			code   dto.ErrorCode
		}{
			{"missing title", map[string]string{"content": "c"}, http.StatusBadRequest, dto.ErrorCodeMissingField},
			{"bad date", map[string]string{"title": "t", "content": "c", "date": "01/02/2025"}, http.StatusBadRequest, dto.ErrorCodeInvalidFormat},
			{"unknown field", map[string]string{"title": "t", "content": "c", "author": "x"}, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
			{"malformed", `{"title":`, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
			{"too large", map[string]string{"title": "t", "content": strings.Repeat("x", 512)}, http.StatusRequestEntityTooLarge, dto.ErrorCodePayloadTooLarge},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var e dto.ErrorResponse
				status := env.doJSON(t, http.MethodPost, "/api/news", tt.body, &e, token)
				if status != tt.status || e.Code != tt.code {
					t.Errorf("got %d %s, want %d %s", status, e.Code, tt.status, tt.code)
				}
			})
		}
	})

	t.Run("StorageFailure", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		token := env.login(t)
		env.mem.SetFailWrites(true)
		var e dto.ErrorResponse
		status := env.doJSON(t, http.MethodDelete, "/api/news/1", nil, &e, token)
		if status != http.StatusInternalServerError || e.Code != dto.ErrorCodeStorageError {
			t.Errorf("got %d %+v", status, e)
		}
		if _, err := env.store.NewsByID(1); err != nil {
			t.Errorf("failed delete was not rolled back: %v", err)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		token := env.login(t)
		var v dto.Envelope[dto.VerifyResponse]
		if status := env.doJSON(t, http.MethodGet, "/api/auth/verify", nil, &v, token); status != http.StatusOK {
			t.Fatalf("verify: got status %d", status)
		}
		if v.Data.User.Username != testAdmin || v.Data.ExpiresAt == "" {
			t.Errorf("got %+v", v.Data)
		}
		if status := env.doJSON(t, http.MethodPost, "/api/auth/logout", nil, nil, token); status != http.StatusOK {
			t.Fatalf("logout: got status %d", status)
		}
		if status := env.doJSON(t, http.MethodGet, "/api/auth/verify", nil, nil, token); status != http.StatusUnauthorized {
			t.Errorf("verify after logout: got status %d, want %d", status, http.StatusUnauthorized)
		}
		var wrong dto.ErrorResponse
		status := env.doJSON(t, http.MethodPost, "/api/auth/login", dto.LoginRequest{Username: testAdmin, Password: "nope"}, &wrong, "")
		if status != http.StatusUnauthorized || wrong.Message != "Invalid credentials" {
			t.Errorf("got %d %+v", status, wrong)
		}
		var logins dto.Envelope[[]auth.LoginAttempt]
		env.doJSON(t, http.MethodGet, "/api/admin/logins", nil, &logins, env.login(t))
		if len(logins.Data) != 3 || logins.Data[1].Success {
			t.Errorf("got %+v", logins.Data)
		}
	})

	t.Run("RateLimit", func(t *testing.T) {
		t.Parallel()
		tiers := ratelimit.NewTiers(2, 0)
		t.Cleanup(tiers.Close)
		env := setupTestEnv(t, func(o *Options) { o.Tiers = tiers })
		req := dto.LoginRequest{Username: testAdmin, Password: "wrong"}
		for i := range 2 {
			resp := env.do(t, http.MethodPost, "/api/auth/login", req, nil, "")
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("attempt %d: got status %d", i, resp.StatusCode)
			}
			if resp.Header.Get("X-RateLimit-Limit") != "2" {
				t.Errorf("got limit header %q", resp.Header.Get("X-RateLimit-Limit"))
			}
		}
		var e dto.ErrorResponse
		resp := env.do(t, http.MethodPost, "/api/auth/login", req, &e, "")
		if resp.StatusCode != http.StatusTooManyRequests || e.Code != dto.ErrorCodeRateLimitExceeded {
			t.Errorf("got %d %+v", resp.StatusCode, e)
		}
		if resp.Header.Get("Retry-After") == "" {
			t.Error("missing Retry-After")
		}
		// Reads are never throttled.
		if status := env.doJSON(t, http.MethodGet, "/api/news", nil, nil, ""); status != http.StatusOK {
			t.Errorf("got status %d", status)
		}
	})

	t.Run("AdminExportImport", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		token := env.login(t)
		resp := env.do(t, http.MethodGet, "/api/admin/export", nil, nil, token)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("export: got status %d", resp.StatusCode)
		}
		if cd := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
			t.Errorf("got Content-Disposition %q", cd)
		}
		resp = env.do(t, http.MethodGet, "/api/admin/export.xlsx", nil, nil, token)
		if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Type"), "spreadsheetml") {
			t.Errorf("xlsx: got %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
		}

		var result dto.Envelope[dto.ImportResult]
		status := env.doJSON(t, http.MethodPost, "/api/admin/import", map[string]any{
			"version":  "1.0",
			"news":     []map[string]any{{"id": 10, "title": "t", "content": "c", "date": "2025-01-02", "status": "published"}},
			"projects": []map[string]any{},
		}, &result, token)
		if status != http.StatusOK {
			t.Fatalf("import: got status %d", status)
		}
		if result.Data.News != 1 || result.Data.Projects != 0 {
			t.Errorf("got %+v", result.Data)
		}
		var info dto.Envelope[content.StorageInfo]
		env.doJSON(t, http.MethodGet, "/api/admin/info", nil, &info, token)
		if info.Data.NewsCount != 1 || info.Data.StorageType != "memory" {
			t.Errorf("got %+v", info.Data)
		}
		if status := env.doJSON(t, http.MethodPost, "/api/admin/reset", nil, nil, token); status != http.StatusOK {
			t.Errorf("reset: got status %d", status)
		}
		if got := len(env.store.AllNews()); got != 6 {
			t.Errorf("got %d news after reset, want 6", got)
		}
		if status := env.doJSON(t, http.MethodGet, "/api/admin/history", nil, nil, token); status != http.StatusServiceUnavailable {
			t.Errorf("history: got status %d, want %d", status, http.StatusServiceUnavailable)
		}
	})

	t.Run("Contact", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		var resp dto.Envelope[dto.ContactResponse]
		status := env.doJSON(t, http.MethodPost, "/api/contact", dto.ContactRequest{
			Name: "Sara", Email: "sara@example.com", Message: "hello", Locale: "en",
		}, &resp, "")
		if status != http.StatusCreated || !resp.Data.Delivered || resp.Data.Reference == "" {
			t.Fatalf("got %d %+v", status, resp)
		}
		if got := len(env.mail.Sent()); got != 2 {
			t.Errorf("got %d mails, want 2", got)
		}
		var e dto.ErrorResponse
		status = env.doJSON(t, http.MethodPost, "/api/contact", dto.ContactRequest{Name: "x", Email: "bad", Message: "m"}, &e, "")
		if status != http.StatusBadRequest || e.Details["field"] != "email" {
			t.Errorf("got %d %+v", status, e)
		}
		token := env.login(t)
		var list dto.Envelope[[]contact.Message]
		env.doJSON(t, http.MethodGet, "/api/admin/contact", nil, &list, token)
		if len(list.Data) != 1 {
			t.Fatalf("got %d messages", len(list.Data))
		}
		if status := env.doJSON(t, http.MethodDelete, "/api/admin/contact/"+resp.Data.Reference, nil, nil, token); status != http.StatusOK {
			t.Errorf("delete: got status %d", status)
		}
	})

	t.Run("PushDisabled", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		var e dto.ErrorResponse
		status := env.doJSON(t, http.MethodGet, "/api/push/key", nil, &e, "")
		if status != http.StatusServiceUnavailable || e.Code != dto.ErrorCodeUnavailable {
			t.Errorf("got %d %+v", status, e)
		}
	})

	t.Run("Schema", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		var schema map[string]any
		if status := env.doJSON(t, http.MethodGet, "/api/schema/news", nil, &schema, ""); status != http.StatusOK {
			t.Fatalf("got status %d", status)
		}
		props, _ := schema["properties"].(map[string]any)
		if _, ok := props["title"]; !ok {
			t.Errorf("got %v", schema)
		}
		if status := env.doJSON(t, http.MethodGet, "/api/schema/nope", nil, nil, ""); status != http.StatusNotFound {
			t.Errorf("got status %d, want %d", status, http.StatusNotFound)
		}
	})

	t.Run("CORS", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		req, err := http.NewRequestWithContext(t.Context(), http.MethodOptions, env.server.URL+"/api/news", http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("got status %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("Events", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/events"
		conn, resp, err := websocket.DefaultDialer.DialContext(t.Context(), url, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		defer func() { _ = conn.Close() }()
		deadline := time.Now().Add(5 * time.Second)
		for env.hub.Len() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		token := env.login(t)
		env.doJSON(t, http.MethodDelete, "/api/projects/PRJ-004", nil, nil, token)
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var got []events.Kind
		for len(got) < 2 {
			var e struct {
				Kind events.Kind `json:"type"`
			}
			if err := conn.ReadJSON(&e); err != nil {
				t.Fatalf("read: %v", err)
			}
			got = append(got, e.Kind)
		}
		if got[0] != events.DataSaved || got[1] != events.ProjectDeleted {
			t.Errorf("got %v", got)
		}
	})

	t.Run("EventsHideDrafts", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		token := env.login(t)
		base := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/events"
		dial := func(url string) *websocket.Conn {
			conn, resp, err := websocket.DefaultDialer.DialContext(t.Context(), url, nil)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if err != nil {
				t.Fatalf("dial %s: %v", url, err)
			}
			t.Cleanup(func() { _ = conn.Close() })
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			return conn
		}
		if _, resp, err := websocket.DefaultDialer.DialContext(t.Context(), base+"?token=bogus", nil); err == nil {
			t.Fatal("dial with an invalid token succeeded")
		} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("got %v, want 401", resp)
		}
		anon := dial(base)
		admin := dial(base + "?token=" + token)
		deadline := time.Now().Add(5 * time.Second)
		for env.hub.Len() < 2 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		draft := map[string]string{"title": "SECRET DRAFT", "content": "embargoed", "status": "draft"}
		if status := env.doJSON(t, http.MethodPost, "/api/news", draft, nil, token); status != http.StatusCreated {
			t.Fatalf("POST /api/news: got %d, want %d", status, http.StatusCreated)
		}
		env.doJSON(t, http.MethodDelete, "/api/projects/PRJ-004", nil, nil, token)

		var seen []events.Kind
		for {
			_, data, err := anon.ReadMessage()
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if bytes.Contains(data, []byte("SECRET")) || bytes.Contains(data, []byte("embargoed")) {
				t.Fatalf("anonymous client got draft content: %s", data)
			}
			var e struct {
				Kind events.Kind `json:"type"`
			}
			if err := json.Unmarshal(data, &e); err != nil {
				t.Fatal(err)
			}
			seen = append(seen, e.Kind)
			if e.Kind == events.ProjectDeleted {
				break
			}
		}
		for _, k := range seen {
			if k == events.NewsAdded {
				t.Errorf("anonymous client got %v", seen)
			}
		}

		for {
			_, data, err := admin.ReadMessage()
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if bytes.Contains(data, []byte(`"newsAdded"`)) {
				if !bytes.Contains(data, []byte("SECRET DRAFT")) {
					t.Errorf("got %s", data)
				}
				break
			}
		}
	})
}
