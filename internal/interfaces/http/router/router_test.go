package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"z-novel-chapter-gen/internal/application/story/chapter"
	"z-novel-chapter-gen/internal/application/story/session"
	"z-novel-chapter-gen/internal/config"
	"z-novel-chapter-gen/internal/domain/entity"
	"z-novel-chapter-gen/internal/interfaces/http/handler"
	"z-novel-chapter-gen/internal/interfaces/http/middleware"
	apperrors "z-novel-chapter-gen/pkg/errors"
)

type fakeChapterService struct {
	mu       sync.Mutex
	requests []entity.ChapterRequest
	err      error
}

func (f *fakeChapterService) GenerateChapter(_ context.Context, story chapter.StoryReader, req entity.ChapterRequest) (*entity.GeneratedChapter, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	dir := story.Snapshot().OutputPath
	return &entity.GeneratedChapter{
		Number:    req.ChapterNumber,
		Text:      "text",
		WordCount: 1,
		Valid:     true,
		State:     entity.StateAccepted,
		Attempts:  []entity.AttemptRecord{{Attempt: 1, WordCount: 1, Outcome: entity.StateAccepted}},
		FilePath:  filepath.Join(dir, "Chapter 001.docx"),
	}, nil
}

func (f *fakeChapterService) ListPriorChapters(_ context.Context, dir string) ([]entity.ChapterFile, error) {
	if dir == "" {
		return nil, apperrors.Validation("output path is not set")
	}
	return []entity.ChapterFile{{Number: 1, Path: filepath.Join(dir, "Chapter 001.docx"), ModTime: time.Now()}}, nil
}

func (f *fakeChapterService) LoadChapter(_ context.Context, dir string, number int) (*entity.PriorChapter, error) {
	if number != 1 {
		return nil, apperrors.ErrChapterNotFound
	}
	return &entity.PriorChapter{Number: 1, Text: "one two three", Path: filepath.Join(dir, "Chapter 001.docx")}, nil
}

type denyingLimiter struct {
	deny string
}

func (l *denyingLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	return !strings.HasPrefix(key, l.deny), nil
}

// countingLimiter 每个 key 允许前 limit 次
type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	if l.counts[key] >= limit {
		return false, nil
	}
	l.counts[key]++
	return true, nil
}

type testServer struct {
	engine   *gin.Engine
	chapters *fakeChapterService
	root     string
}

func newTestServer(t *testing.T, limiter middleware.RateLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Storage.OutputRoot = root
	cfg.Generation.DefaultMinWordCount = 500
	cfg.Observability.Metrics.Enabled = true
	cfg.Observability.Metrics.Path = "/metrics"
	cfg.Security.RateLimit.Enabled = limiter != nil

	sessions := session.NewManager(cfg)
	chapters := &fakeChapterService{}
	handlers := &RouterHandlers{
		Health:  handler.NewHealthHandler(cfg, nil),
		Session: handler.NewSessionHandler(sessions),
		Story:   handler.NewStoryHandler(sessions),
		Chapter: handler.NewChapterHandler(sessions, chapters, cfg),
	}

	r := NewWithDeps(cfg, handlers, limiter)
	return &testServer{engine: r.Engine(), chapters: chapters, root: root}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/v1/sessions", nil)
	if code != http.StatusCreated {
		t.Fatalf("create session: %d %v", code, body)
	}
	return body["data"].(map[string]any)["id"].(string)
}

func errorCode(body map[string]any) string {
	detail, _ := body["error"].(map[string]any)
	code, _ := detail["error_code"].(string)
	return code
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{"/health", "/ready", "/live"} {
		if code, body := s.do(t, http.MethodGet, path, nil); code != http.StatusOK || body["status"] != "ok" {
			t.Fatalf("%s: %d %v", path, code, body)
		}
	}
	if code, _ := s.do(t, http.MethodGet, "/metrics", nil); code != http.StatusOK {
		t.Fatalf("metrics: %d", code)
	}
}

func TestSessionStoryFlow(t *testing.T) {
	s := newTestServer(t, nil)
	sid := s.createSession(t)
	base := "/v1/sessions/" + sid

	if code, _ := s.do(t, http.MethodPost, base+"/characters", map[string]string{"name": "Ana", "description": "a knight"}); code != http.StatusCreated {
		t.Fatalf("add Ana: %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, base+"/characters", map[string]string{"name": "Bo", "description": "a thief"}); code != http.StatusCreated {
		t.Fatalf("add Bo: %d", code)
	}
	code, body := s.do(t, http.MethodPost, base+"/characters", map[string]string{"name": "Ana", "description": "dup"})
	if code != http.StatusBadRequest || errorCode(body) != string(apperrors.CodeInvalidParam) {
		t.Fatalf("duplicate: %d %v", code, body)
	}
	if code, _ := s.do(t, http.MethodPut, base+"/characters/Ghost", map[string]string{"description": "x"}); code != http.StatusNotFound {
		t.Fatalf("update missing: %d", code)
	}

	if code, _ := s.do(t, http.MethodPut, base+"/fields/plot", map[string]string{"text": "Ana meets Bo"}); code != http.StatusOK {
		t.Fatalf("set plot: %d", code)
	}
	if code, _ := s.do(t, http.MethodPut, base+"/fields/mood", map[string]string{"text": "x"}); code != http.StatusBadRequest {
		t.Fatalf("unknown field: %d", code)
	}
	code, body = s.do(t, http.MethodPut, base+"/output-path", map[string]string{"path": "book"})
	if code != http.StatusOK {
		t.Fatalf("output path: %d %v", code, body)
	}
	if code, _ := s.do(t, http.MethodPut, base+"/output-path", map[string]string{"path": "../escape"}); code != http.StatusBadRequest {
		t.Fatalf("escaping output path: %d", code)
	}

	if code, _ := s.do(t, http.MethodDelete, base+"/characters/Ana", nil); code != http.StatusOK {
		t.Fatalf("remove Ana: %d", code)
	}

	code, body = s.do(t, http.MethodGet, base, nil)
	if code != http.StatusOK {
		t.Fatalf("get session: %d", code)
	}
	story := body["data"].(map[string]any)["story"].(map[string]any)
	chars := story["characters"].([]any)
	if len(chars) != 1 || chars[0].(map[string]any)["name"] != "Bo" {
		t.Fatalf("characters = %v", chars)
	}
	if story["plot"] != "Ana meets Bo" {
		t.Fatalf("plot = %v", story["plot"])
	}
	if story["output_path"] != filepath.Join(s.root, "book") {
		t.Fatalf("output_path = %v", story["output_path"])
	}

	if code, _ := s.do(t, http.MethodDelete, base, nil); code != http.StatusNoContent {
		t.Fatalf("delete session: %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, base, nil); code != http.StatusNotFound {
		t.Fatalf("deleted session still visible: %d", code)
	}
}

func TestGenerateChapterAppliesDefaultMinimum(t *testing.T) {
	s := newTestServer(t, nil)
	base := "/v1/sessions/" + s.createSession(t)
	s.do(t, http.MethodPut, base+"/output-path", map[string]string{"path": "book"})

	code, body := s.do(t, http.MethodPost, base+"/chapters", map[string]any{"chapter_number": 2})
	if code != http.StatusOK {
		t.Fatalf("generate: %d %v", code, body)
	}
	if state := body["data"].(map[string]any)["state"]; state != string(entity.StateAccepted) {
		t.Fatalf("state = %v", state)
	}
	if code, _ := s.do(t, http.MethodPost, base+"/chapters", map[string]any{"chapter_number": 3, "minimum_word_count": 0}); code != http.StatusOK {
		t.Fatalf("generate explicit zero: %d", code)
	}

	got := s.chapters.requests
	if len(got) != 2 {
		t.Fatalf("requests = %v", got)
	}
	if got[0].ChapterNumber != 2 || got[0].MinimumWordCount != 500 {
		t.Fatalf("default minimum not applied: %+v", got[0])
	}
	if got[1].MinimumWordCount != 0 {
		t.Fatalf("explicit zero overridden: %+v", got[1])
	}
}

func TestGenerateChapterErrorStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.Validation("chapter_number must be a positive integer"), http.StatusBadRequest},
		{"exhausted", apperrors.ErrGenerationExhausted.WithError(apperrors.ErrLLMCallFailed), http.StatusBadGateway},
		{"timeout", apperrors.ErrLLMTimeout, http.StatusGatewayTimeout},
		{"io", apperrors.IO(context.DeadlineExceeded, "write"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.chapters.err = tc.err
			base := "/v1/sessions/" + s.createSession(t)
			if code, _ := s.do(t, http.MethodPost, base+"/chapters", map[string]any{"chapter_number": 1}); code != tc.want {
				t.Fatalf("status = %d, want %d", code, tc.want)
			}
		})
	}
}

func TestChapterReadRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	base := "/v1/sessions/" + s.createSession(t)

	if code, _ := s.do(t, http.MethodGet, base+"/chapters", nil); code != http.StatusBadRequest {
		t.Fatalf("list without output path: %d", code)
	}
	s.do(t, http.MethodPut, base+"/output-path", map[string]string{"path": "book"})

	code, body := s.do(t, http.MethodGet, base+"/chapters", nil)
	if code != http.StatusOK || len(body["data"].(map[string]any)["chapters"].([]any)) != 1 {
		t.Fatalf("list: %d %v", code, body)
	}
	code, body = s.do(t, http.MethodGet, base+"/chapters/1", nil)
	if code != http.StatusOK || body["data"].(map[string]any)["word_count"].(float64) != 3 {
		t.Fatalf("get chapter: %d %v", code, body)
	}
	if code, _ := s.do(t, http.MethodGet, base+"/chapters/7", nil); code != http.StatusNotFound {
		t.Fatalf("missing chapter: %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, base+"/chapters/abc", nil); code != http.StatusBadRequest {
		t.Fatalf("bad chapter number: %d", code)
	}
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t, nil)
	code, body := s.do(t, http.MethodPost, "/v1/sessions/nope/chapters", map[string]any{"chapter_number": 1})
	if code != http.StatusNotFound || errorCode(body) != string(apperrors.CodeSessionNotFound) {
		t.Fatalf("unknown session: %d %v", code, body)
	}
}

func TestGenerationRateLimit(t *testing.T) {
	s := newTestServer(t, &denyingLimiter{deny: "ratelimit:generate:"})
	base := "/v1/sessions/" + s.createSession(t)

	if code, _ := s.do(t, http.MethodGet, base, nil); code != http.StatusOK {
		t.Fatalf("read should pass the limiter: %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, base+"/chapters", map[string]any{"chapter_number": 1}); code != http.StatusTooManyRequests {
		t.Fatalf("generation should be limited: %d", code)
	}
	if len(s.chapters.requests) != 0 {
		t.Fatalf("limited request reached the service")
	}
}

func TestGenerationRateLimitAfterQuota(t *testing.T) {
	s := newTestServer(t, &countingLimiter{})
	base := "/v1/sessions/" + s.createSession(t)
	s.do(t, http.MethodPut, base+"/output-path", map[string]string{"path": "book"})

	for i := 1; i <= 6; i++ {
		if code, body := s.do(t, http.MethodPost, base+"/chapters", map[string]any{"chapter_number": i}); code != http.StatusOK {
			t.Fatalf("generation %d: %d %v", i, code, body)
		}
	}
	code, body := s.do(t, http.MethodPost, base+"/chapters", map[string]any{"chapter_number": 7})
	if code != http.StatusTooManyRequests {
		t.Fatalf("generation 7 should be limited: %d %v", code, body)
	}
	if len(s.chapters.requests) != 6 {
		t.Fatalf("service saw %d requests, want 6", len(s.chapters.requests))
	}

	other := "/v1/sessions/" + s.createSession(t)
	s.do(t, http.MethodPut, other+"/output-path", map[string]string{"path": "other"})
	if code, _ := s.do(t, http.MethodPost, other+"/chapters", map[string]any{"chapter_number": 1}); code != http.StatusOK {
		t.Fatalf("other session should have its own quota: %d", code)
	}
}

func TestPanicRecovery(t *testing.T) {
	s := newTestServer(t, nil)
	s.engine.GET("/boom", func(*gin.Context) { panic("boom") })
	code, body := s.do(t, http.MethodGet, "/boom", nil)
	if code != http.StatusInternalServerError || errorCode(body) != string(apperrors.CodeInternalError) {
		t.Fatalf("panic: %d %v", code, body)
	}
}
