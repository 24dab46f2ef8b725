package benchmark

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"videoSlides/config"
	"videoSlides/core"
	"videoSlides/processors"
)

type stepVideo struct{ n int }

func (s stepVideo) ReadFrame(ctx context.Context, t float64) (*core.Image, bool) {
	if t >= float64(s.n) {
		return nil, false
	}
	img := core.NewImage(4, 4)
	for i := range img.Pix {
		img.Pix[i] = uint8(int(t) / 5 * 120)
	}
	return img, true
}

func (stepVideo) Close() error { return nil }

func TestBenchmarkRun(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "cours.mp4")
	if err := os.WriteFile(video, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "tempdata")
	sources := func(ctx context.Context, path, scratch string, withAudio bool) (processors.VideoSource, processors.AudioSource, error) {
		return stepVideo{n: 15}, nil, nil
	}
	var out bytes.Buffer
	pb := NewPerformanceBenchmark(cfg, sources, &out)
	results := pb.Run(context.Background(), []string{video, filepath.Join(dir, "missing.mp4")}, []float64{1, 5})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Success || r.Segments != 3 {
			t.Errorf("unexpected result %+v", r)
		}
	}
	// dt=1 读 t=0..14，dt=5 读 t=0,5,10
	if results[0].Frames != 15 || results[1].Frames != 3 {
		t.Errorf("unexpected frame counts %d, %d", results[0].Frames, results[1].Frames)
	}
	if results[0].Elapsed > 0 && results[0].FPS <= 0 {
		t.Errorf("frames per second should be recorded: %+v", results[0])
	}
	if !strings.Contains(out.String(), "跳过测试") {
		t.Errorf("missing video should be reported: %s", out.String())
	}
	report := pb.GenerateReport(results)
	summary := report["test_summary"].(map[string]interface{})
	if summary["total_frames"] != 18 {
		t.Errorf("unexpected total frames %v", summary["total_frames"])
	}
	if summary["successful_runs"] != 2 {
		t.Errorf("unexpected report %+v", report)
	}
}
