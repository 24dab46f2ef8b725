package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"videoSlides/core"
	"videoSlides/storage"
)

type stubProcessor struct {
	videoErr error
	videos   []string
	dirs     []string
}

func (s *stubProcessor) ProcessVideo(ctx context.Context, videoPath string) (core.DocumentResult, error) {
	s.videos = append(s.videos, videoPath)
	if s.videoErr != nil {
		return core.DocumentResult{}, s.videoErr
	}
	return core.DocumentResult{JobID: "job", VideoPath: videoPath, VideoID: "cours", PDFPath: "resultsdata/cours.pdf"}, nil
}

func (s *stubProcessor) ProcessFolder(ctx context.Context, dir string) (core.BatchReport, error) {
	s.dirs = append(s.dirs, dir)
	return core.BatchReport{Dir: dir, MergedPath: "resultsdata/lectures.pdf"}, nil
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewHandlers(&stubProcessor{}, storage.NewMemoryIndex(), nil).Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["ffmpeg"]; !ok {
		t.Errorf("health should report ffmpeg availability: %v", body)
	}
}

func TestProcessVideo(t *testing.T) {
	video := filepath.Join(t.TempDir(), "cours.mp4")
	if err := os.WriteFile(video, nil, 0644); err != nil {
		t.Fatal(err)
	}
	proc := &stubProcessor{}
	h := NewHandlers(proc, nil, nil).Routes()

	rec := post(t, h, "/process-video", map[string]string{"video_path": video})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var res core.DocumentResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.VideoPath != video || len(proc.videos) != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	if rec := post(t, h, "/process-video", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing path: expected 400, got %d", rec.Code)
	}
	if rec := post(t, h, "/process-video", "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: expected 400, got %d", rec.Code)
	}
	if rec := post(t, h, "/process-video", map[string]string{"video_path": video + ".missing"}); rec.Code != http.StatusNotFound {
		t.Errorf("missing file: expected 404, got %d", rec.Code)
	}

	proc.videoErr = fmt.Errorf("%w: corrupt", core.ErrSourceRead)
	if rec := post(t, h, "/process-video", map[string]string{"video_path": video}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("source failure: expected 422, got %d", rec.Code)
	}
}

func TestProcessFolder(t *testing.T) {
	proc := &stubProcessor{}
	h := NewHandlers(proc, nil, nil).Routes()
	rec := post(t, h, "/process-folder", map[string]string{"dir": "lectures"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var report core.BatchReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.MergedPath != "resultsdata/lectures.pdf" || len(proc.dirs) != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if rec := post(t, h, "/process-folder", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestQuery(t *testing.T) {
	idx := storage.NewMemoryIndex()
	idx.Upsert(context.Background(), "cours", []core.SlideRecord{
		{Index: 0, Page: 1, Start: 0, End: 10, Transcript: "les graphes orientés"},
		{Index: 1, Page: 2, Start: 10, End: 30, Transcript: "parcours en largeur"},
	})
	h := NewHandlers(&stubProcessor{}, idx, nil).Routes()

	rec := post(t, h, "/query", map[string]any{"video_id": "cours", "query": "graphes", "top_k": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].Page != 1 {
		t.Errorf("unexpected hits %+v", resp.Hits)
	}

	if rec := post(t, h, "/query", map[string]any{"query": " "}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	noIndex := NewHandlers(&stubProcessor{}, nil, nil).Routes()
	if rec := post(t, noIndex, "/query", map[string]any{"query": "x"}); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := NewHandlers(&stubProcessor{}, nil, nil).Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process-video", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
