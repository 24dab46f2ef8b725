package processors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"videoSlides/config"
	"videoSlides/core"
	"videoSlides/document"
	"videoSlides/storage"
)

// framesWithSlides n 张不同的幻灯片，每张停留两秒
func framesWithSlides(n int) []*core.Image {
	var frames []*core.Image
	for i := 0; i < n; i++ {
		img := solidFrame(16, 12, uint8(i*100))
		frames = append(frames, img, img)
	}
	return frames
}

func newTestBatch(t *testing.T, slides map[string]int, svc core.Transcriber) (*Batch, string) {
	t.Helper()
	root := t.TempDir()
	videos := filepath.Join(root, "lectures")
	if err := os.MkdirAll(videos, 0755); err != nil {
		t.Fatal(err)
	}
	for name := range slides {
		if err := os.WriteFile(filepath.Join(videos, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(root, "tempdata")
	cfg.OutputDir = filepath.Join(root, "resultsdata")

	factory := func(ctx context.Context, videoPath, scratchDir string, withAudio bool) (VideoSource, AudioSource, error) {
		n, ok := slides[filepath.Base(videoPath)]
		if !ok || n < 0 {
			return nil, nil, errors.New("cannot open video")
		}
		if _, err := os.Stat(scratchDir); err != nil {
			t.Errorf("scratch dir should exist: %v", err)
		}
		var audio AudioSource
		if withAudio {
			audio = &fakeAudio{}
		}
		return &fakeVideo{frames: framesWithSlides(n)}, audio, nil
	}
	b := &Batch{
		Config:      cfg,
		Sources:     factory,
		Transcriber: svc,
		Index:       storage.NewMemoryIndex(),
		Merger:      document.PDFMerger{},
	}
	return b, videos
}

func TestProcessFolderMergesInOrder(t *testing.T) {
	b, dir := newTestBatch(t, map[string]int{"b.mp4": 2, "a.mp4": 1, "c.mp4": 3}, &countingTranscriber{text: "bonjour"})
	report, err := b.ProcessFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}
	var names []string
	for _, p := range report.MergeOrder {
		names = append(names, filepath.Base(p))
	}
	if !reflect.DeepEqual(names, []string{"a.pdf", "b.pdf", "c.pdf"}) {
		t.Errorf("unexpected merge order %v", names)
	}
	if report.MergedPath != filepath.Join(b.Config.OutputDir, "lectures.pdf") {
		t.Errorf("unexpected merged path %s", report.MergedPath)
	}
	n, err := document.PageCount(report.MergedPath)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 6 {
		t.Errorf("expected 6 merged pages, got %d", n)
	}

	entries, err := os.ReadDir(b.Config.DataDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch directories should be removed, found %d entries", len(entries))
	}

	hits, err := b.Index.Search(context.Background(), "b", "bonjour", 10)
	if err != nil || len(hits) != 2 {
		t.Errorf("expected 2 indexed slides for b, got %d (%v)", len(hits), err)
	}
}

func TestProcessFolderIsolatesFailures(t *testing.T) {
	b, dir := newTestBatch(t, map[string]int{"cours1.mp4": 1, "broken.mp4": -1, "cours2.mp4": 2}, MockASR{})
	report, err := b.ProcessFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}
	if len(report.Failures) != 1 || !strings.HasSuffix(report.Failures[0].VideoPath, "broken.mp4") {
		t.Fatalf("expected broken.mp4 to fail, got %+v", report.Failures)
	}
	if len(report.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(report.Documents))
	}
	if _, err := os.Stat(filepath.Join(b.Config.OutputDir, "broken.pdf")); !os.IsNotExist(err) {
		t.Error("failed video must not produce a document")
	}
	if n, err := document.PageCount(report.MergedPath); err != nil || n != 3 {
		t.Errorf("expected 3 merged pages, got %d (%v)", n, err)
	}
}

func TestProcessFolderSkipsVideosWithoutSlides(t *testing.T) {
	b, dir := newTestBatch(t, map[string]int{"a.mp4": 1, "b.mp4": 0, "c.mp4": 2}, MockASR{})
	report, err := b.ProcessFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}
	if len(report.Empty) != 1 || filepath.Base(report.Empty[0]) != "b.mp4" {
		t.Errorf("expected b.mp4 reported as empty, got %v", report.Empty)
	}
	if len(report.Documents) != 2 || len(report.Failures) != 0 {
		t.Errorf("expected 2 documents and no failures, got %d / %+v", len(report.Documents), report.Failures)
	}
	for _, name := range []string{"b.pdf", "b.json"} {
		if _, err := os.Stat(filepath.Join(b.Config.OutputDir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should not be written for a video without slides", name)
		}
	}
	if n, err := document.PageCount(report.MergedPath); err != nil || n != 3 {
		t.Errorf("expected 1 + 0 + 2 merged pages, got %d (%v)", n, err)
	}
}

func TestProcessFolderOnlyEmptyVideos(t *testing.T) {
	b, dir := newTestBatch(t, map[string]int{"a.mp4": 0}, MockASR{})
	report, err := b.ProcessFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}
	if report.MergedPath != "" || len(report.Empty) != 1 {
		t.Errorf("expected no merge and one empty video, got %+v", report)
	}
}

func TestProcessFolderIsolatesWriteFailures(t *testing.T) {
	b, dir := newTestBatch(t, map[string]int{"cours1.mp4": 1, "cours2.mp4": 2}, MockASR{})
	// 目标路径被目录占用，cours1.pdf 无法写出
	if err := os.MkdirAll(filepath.Join(b.Config.OutputDir, "cours1.pdf"), 0755); err != nil {
		t.Fatal(err)
	}
	report, err := b.ProcessFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}
	if len(report.Failures) != 1 || !strings.HasSuffix(report.Failures[0].VideoPath, "cours1.mp4") {
		t.Fatalf("expected cours1.mp4 to fail, got %+v", report.Failures)
	}
	if !strings.Contains(report.Failures[0].Error, core.ErrSinkWrite.Error()) {
		t.Errorf("expected a write failure, got %q", report.Failures[0].Error)
	}
	if len(report.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(report.Documents))
	}
	if n, err := document.PageCount(report.MergedPath); err != nil || n != 2 {
		t.Errorf("expected 2 merged pages, got %d (%v)", n, err)
	}
}

func TestProcessVideoWithFailingTranscriber(t *testing.T) {
	svc := &countingTranscriber{err: errors.New("asr down")}
	b, dir := newTestBatch(t, map[string]int{"cours.mp4": 3}, svc)
	res, err := b.ProcessVideo(context.Background(), filepath.Join(dir, "cours.mp4"))
	if err != nil {
		t.Fatalf("ProcessVideo: %v", err)
	}
	if n, err := document.PageCount(res.PDFPath); err != nil || n != 3 {
		t.Fatalf("expected 3 pages, got %d (%v)", n, err)
	}
	if svc.Calls() != 3 {
		t.Errorf("expected one transcription per slide, got %d", svc.Calls())
	}
	m, err := document.ReadManifest(res.Manifest)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(m.Slides) != 3 {
		t.Fatalf("expected 3 manifest slides, got %d", len(m.Slides))
	}
	for _, s := range m.Slides {
		if s.Transcript != "" {
			t.Errorf("slide %d should have a blank transcript", s.Index)
		}
	}
	if m.Slides[0].Start != 0 || m.Slides[0].End != 2 || m.Slides[2].End != 5 {
		t.Errorf("unexpected time ranges %+v", m.Slides)
	}
}

func TestProcessFolderEmpty(t *testing.T) {
	b, dir := newTestBatch(t, map[string]int{}, MockASR{})
	report, err := b.ProcessFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}
	if report.MergedPath != "" || len(report.Documents) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestOrderOutputs(t *testing.T) {
	in := []string{"out/cours10.pdf", "out/cours2.pdf", "out/cours1.pdf"}
	natural := OrderOutputs(in, "natural")
	if !reflect.DeepEqual(natural, []string{"out/cours1.pdf", "out/cours2.pdf", "out/cours10.pdf"}) {
		t.Errorf("unexpected natural order %v", natural)
	}
	lexical := OrderOutputs(in, "lexical")
	if !reflect.DeepEqual(lexical, []string{"out/cours1.pdf", "out/cours10.pdf", "out/cours2.pdf"}) {
		t.Errorf("unexpected lexical order %v", lexical)
	}
	if in[0] != "out/cours10.pdf" {
		t.Error("input slice must not be modified")
	}
	if got := OrderOutputs([]string{"b.pdf", "a.pdf", "c.pdf"}, "lexical"); !reflect.DeepEqual(got, []string{"a.pdf", "b.pdf", "c.pdf"}) {
		t.Errorf("unexpected order %v", got)
	}
}

func TestMergedPathAvoidsInputs(t *testing.T) {
	if got := MergedPath("out", "videos/cours/", nil); got != filepath.Join("out", "cours.pdf") {
		t.Errorf("unexpected merged path %s", got)
	}
	inputs := []string{filepath.Join("out", "cours.pdf")}
	if got := MergedPath("out", "videos/cours", inputs); got != filepath.Join("out", "cours_merged.pdf") {
		t.Errorf("merged path must not overwrite an input, got %s", got)
	}
}

func TestDiscoverVideosSorted(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"z.mp4", "a.mp4", "notes.txt", "m.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.mp4"), 0755); err != nil {
		t.Fatal(err)
	}
	got, err := DiscoverVideos(dir, ".mp4")
	if err != nil {
		t.Fatalf("DiscoverVideos: %v", err)
	}
	var names []string
	for _, p := range got {
		names = append(names, filepath.Base(p))
	}
	if !reflect.DeepEqual(names, []string{"a.mp4", "m.mp4", "z.mp4"}) {
		t.Errorf("unexpected videos %v", names)
	}
}

func TestPrepareIsIdempotent(t *testing.T) {
	b, _ := newTestBatch(t, nil, MockASR{})
	for i := 0; i < 2; i++ {
		if err := b.Prepare(); err != nil {
			t.Fatalf("Prepare: %v", err)
		}
	}
	for _, d := range []string{b.Config.DataDir, b.Config.OutputDir} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Errorf("%s should exist", d)
		}
	}
}
