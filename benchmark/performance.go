package benchmark

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"videoSlides/config"
	"videoSlides/core"
	"videoSlides/processors"
	"videoSlides/utils"
)

// PerformanceBenchmark 不同采样步长下的分段耗时
type PerformanceBenchmark struct {
	config  *config.Config
	sources processors.SourceFactory
	out     io.Writer
}

func NewPerformanceBenchmark(cfg *config.Config, sources processors.SourceFactory, out io.Writer) *PerformanceBenchmark {
	if out == nil {
		out = os.Stdout
	}
	return &PerformanceBenchmark{config: cfg, sources: sources, out: out}
}

// BenchmarkResult 一个视频在一个步长下的结果
type BenchmarkResult struct {
	VideoPath string        `json:"video_path"`
	Dt        float64       `json:"dt"`
	Frames    int           `json:"frames_read"`
	FPS       float64       `json:"frames_per_second"`
	Segments  int           `json:"segments"`
	Duration  float64       `json:"duration"`
	Elapsed   time.Duration `json:"elapsed"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// countingSource 统计成功读出的帧数
type countingSource struct {
	processors.VideoSource
	frames int
}

func (c *countingSource) ReadFrame(ctx context.Context, t float64) (*core.Image, bool) {
	img, ok := c.VideoSource.ReadFrame(ctx, t)
	if ok {
		c.frames++
	}
	return img, ok
}

// Run 对每个视频依次使用各个 dt 分段，不做转录和渲染
func (pb *PerformanceBenchmark) Run(ctx context.Context, videos []string, dts []float64) []BenchmarkResult {
	fmt.Fprintln(pb.out, "\n=== 分段性能测试 ===")
	var results []BenchmarkResult
	for _, video := range videos {
		if !utils.FileExists(video) {
			fmt.Fprintf(pb.out, "跳过测试: %s (文件不存在)\n", video)
			continue
		}
		fmt.Fprintf(pb.out, "\n测试视频: %s\n", video)
		for _, dt := range dts {
			r := pb.benchmarkSingle(ctx, video, dt)
			pb.printResult(r)
			results = append(results, r)
		}
	}
	return results
}

func (pb *PerformanceBenchmark) benchmarkSingle(ctx context.Context, videoPath string, dt float64) BenchmarkResult {
	result := BenchmarkResult{VideoPath: videoPath, Dt: dt}

	jobDir := filepath.Join(pb.config.DataDir, "bench-"+utils.NewID())
	if err := utils.EnsureDir(jobDir); err != nil {
		result.Error = err.Error()
		return result
	}
	defer os.RemoveAll(jobDir)

	start := time.Now()
	video, _, err := pb.sources(ctx, videoPath, jobDir, false)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer video.Close()
	counter := &countingSource{VideoSource: video}

	seg := &processors.Segmenter{
		Dt:         dt,
		Threshold:  pb.config.SimilarityThreshold,
		WorkWidth:  pb.config.WorkWidth,
		WorkHeight: pb.config.WorkHeight,
	}
	seq, err := seg.Run(ctx, counter, nil)
	result.Elapsed = time.Since(start)
	result.Frames = counter.frames
	if secs := result.Elapsed.Seconds(); secs > 0 {
		result.FPS = float64(counter.frames) / secs
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Segments = seq.Len()
	if last, ok := seq.Last(); ok {
		result.Duration = last.TimeRange().End
	}
	result.Success = true
	return result
}

func (pb *PerformanceBenchmark) printResult(r BenchmarkResult) {
	if !r.Success {
		fmt.Fprintf(pb.out, "dt=%.2f: 失败 (%s)\n", r.Dt, r.Error)
		return
	}
	fmt.Fprintf(pb.out, "dt=%.2f: %d 帧, %d 段, 覆盖 %.0f 秒, 耗时 %.2f 秒 (%.1f 帧/秒)\n", r.Dt, r.Frames, r.Segments, r.Duration, r.Elapsed.Seconds(), r.FPS)
}

// GenerateReport 汇总
func (pb *PerformanceBenchmark) GenerateReport(results []BenchmarkResult) map[string]interface{} {
	var ok, frames int
	var total time.Duration
	for _, r := range results {
		if r.Success {
			ok++
			frames += r.Frames
			total += r.Elapsed
		}
	}
	summary := map[string]interface{}{
		"total_runs":      len(results),
		"successful_runs": ok,
		"total_frames":    frames,
		"total_time":      total.String(),
	}
	if ok > 0 {
		summary["average_time"] = (total / time.Duration(ok)).String()
	}
	return map[string]interface{}{
		"test_summary": summary,
		"results":      results,
		"timestamp":    time.Now().Format(time.RFC3339),
	}
}
