package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/framegrab/framegrab/internal/ai"
	"github.com/framegrab/framegrab/internal/analyzer"
	"github.com/framegrab/framegrab/internal/api"
	"github.com/framegrab/framegrab/internal/cache"
	"github.com/framegrab/framegrab/internal/database"
	"github.com/framegrab/framegrab/internal/sampler"
	"github.com/framegrab/framegrab/internal/storage"
)

// fakeSource stands in for an ffmpeg-backed decoding context so the
// analysis path can run without real video files.
type fakeSource struct {
	duration float64
	width    int
	height   int

	mu       sync.Mutex
	captures int
}

func (s *fakeSource) Duration() float64      { return s.duration }
func (s *fakeSource) Dimensions() (int, int) { return s.width, s.height }
func (s *fakeSource) CaptureAt(_ context.Context, ts float64, width, height int) (image.Image, error) {
	s.mu.Lock()
	s.captures++
	n := s.captures
	s.mu.Unlock()

	if width == 0 {
		width = s.width
	}
	if height == 0 {
		height = s.height
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y += 8 {
		for x := 0; x < width; x += 8 {
			img.Set(x, y, color.RGBA{R: uint8(n * 37), G: uint8(int(ts) * 11), B: uint8(x), A: 255})
		}
	}
	return img, nil
}

type fakeOpener struct {
	source *fakeSource
}

func (o *fakeOpener) Open(_ context.Context, _ string) (sampler.Source, error) {
	return o.source, nil
}

// stubClient returns a canned record and counts invocations.
type stubClient struct {
	mu     sync.Mutex
	calls  int
	record ai.AnalysisRecord
}

func (c *stubClient) AnalyzeFrames(_ context.Context, frames [][]byte, _ string) (*ai.AnalysisRecord, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	rec := c.record
	return &rec, nil
}

func (c *stubClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type testServer struct {
	Server *httptest.Server
	App    *api.App
	DB     *database.DB
	Cache  *cache.Cache
	Client *stubClient
	Source *fakeSource
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	tempDir := t.TempDir()

	localStorage, err := storage.NewLocalStorage(filepath.Join(tempDir, "uploads"))
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}

	db, err := database.NewDB(database.Config{Path: filepath.Join(tempDir, "test.db")})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	analysisCache := cache.New(db, logger)

	source := &fakeSource{duration: 125, width: 1920, height: 1080}
	client := &stubClient{record: ai.AnalysisRecord{
		Summary:          "two people talking in a kitchen",
		Objects:          `["table","kettle"]`,
		People:           `[{"count":2}]`,
		Actions:          `["talking"]`,
		TextContent:      `[]`,
		AudioContext:     `{}`,
		TechnicalAspects: `{"lighting":"warm"}`,
		Metadata:         `{}`,
	}}

	service := analyzer.New(
		&fakeOpener{source: source},
		sampler.New(logger),
		analysisCache,
		client,
		analyzer.Config{MaxDimension: 1024, LanguageHint: "English"},
		logger,
	)

	app := &api.App{
		Storage:       localStorage,
		VideoRepo:     database.NewVideoRepository(db),
		Cache:         analysisCache,
		Analyzer:      service,
		MaxUploadSize: 10 << 20,
		Logger:        logger,
	}

	server := httptest.NewServer(api.NewRouter(app))
	t.Cleanup(server.Close)

	return &testServer{
		Server: server,
		App:    app,
		DB:     db,
		Cache:  analysisCache,
		Client: client,
		Source: source,
	}
}

// uploadVideo posts a small fake mp4 and returns the decoded response.
func (ts *testServer) uploadVideo(t *testing.T, title, filename string, modifiedMs int64) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if title != "" {
		if err := writer.WriteField("title", title); err != nil {
			t.Fatalf("write title field: %v", err)
		}
	}
	if modifiedMs > 0 {
		if err := writer.WriteField("last_modified", strconv.FormatInt(modifiedMs, 10)); err != nil {
			t.Fatalf("write last_modified field: %v", err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="video"; filename="`+filename+`"`)
	header.Set("Content-Type", "video/mp4")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create form part: %v", err)
	}
	if _, err := part.Write([]byte("not a real mp4 but size and name are what matter here")); err != nil {
		t.Fatalf("write file content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp, err := http.Post(ts.Server.URL+"/api/videos/", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload returned %d: %s", resp.StatusCode, body)
	}
	return decodeJSON(t, resp.Body)
}

func decodeJSON(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func jsonDecodeList(r io.Reader, out *[]map[string]any) error {
	return json.NewDecoder(r).Decode(out)
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func postJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func doDelete(t *testing.T, url string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("build DELETE %s: %v", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE %s: %v", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}
