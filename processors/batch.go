package processors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maruel/natural"
	"github.com/schollz/progressbar/v3"

	"videoSlides/config"
	"videoSlides/core"
	"videoSlides/document"
	"videoSlides/storage"
	"videoSlides/utils"
)

// Batch 视频 -> 幻灯片文档。同一时间只处理一个视频
type Batch struct {
	Config      *config.Config
	Sources     SourceFactory
	Transcriber core.Transcriber
	Index       storage.SlideIndex
	Merger      document.Merger
	Logger      *slog.Logger

	// Progress 进度条输出，nil 时不显示
	Progress io.Writer

	mu          sync.Mutex
	prepareOnce sync.Once
	prepareErr  error
}

// NewBatch 默认使用 ffmpeg 源、配置指定的ASR和 pdfcpu 合并
func NewBatch(cfg *config.Config, index storage.SlideIndex, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	gpuType := ""
	if cfg.GPUAcceleration {
		gpuType = utils.ResolveGPUType(cfg.GPUType)
	}
	if index == nil {
		index = storage.NewMemoryIndex()
	}
	return &Batch{
		Config:      cfg,
		Sources:     NewFFmpegSourceFactory(gpuType, logger),
		Transcriber: PickTranscriber(cfg, logger),
		Index:       index,
		Merger:      document.PDFMerger{},
		Logger:      logger,
	}
}

// Prepare 创建数据和输出目录，只执行一次
func (b *Batch) Prepare() error {
	b.prepareOnce.Do(func() {
		for _, dir := range []string{b.Config.DataDir, b.Config.OutputDir} {
			if err := utils.EnsureDir(dir); err != nil {
				b.prepareErr = fmt.Errorf("create directory %s: %w", dir, err)
				return
			}
		}
	})
	return b.prepareErr
}

// ProcessVideo 处理单个视频
func (b *Batch) ProcessVideo(ctx context.Context, videoPath string) (core.DocumentResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.Prepare(); err != nil {
		return core.DocumentResult{}, err
	}
	return b.processVideo(ctx, videoPath)
}

func (b *Batch) processVideo(ctx context.Context, videoPath string) (core.DocumentResult, error) {
	cfg := b.Config
	start := time.Now()
	jobID := utils.NewID()
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	logger := b.logger().With("job_id", jobID, "video", videoPath)
	res := core.DocumentResult{JobID: jobID, VideoPath: videoPath, VideoID: base}

	// 每个作业独占的临时目录
	scratch := filepath.Join(cfg.DataDir, jobID)
	if err := utils.EnsureDir(scratch); err != nil {
		return res, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	video, audio, err := b.Sources(ctx, videoPath, scratch, cfg.TakeSpeech)
	if err != nil {
		return res, err
	}
	defer video.Close()
	if audio != nil {
		defer audio.Close()
	}

	seg := &Segmenter{
		Dt:         cfg.Dt,
		Threshold:  cfg.SimilarityThreshold,
		TakeSpeech: cfg.TakeSpeech,
		WorkWidth:  cfg.WorkWidth,
		WorkHeight: cfg.WorkHeight,
		Logger:     logger,
	}
	seq, err := seg.Run(ctx, video, audio)
	if err != nil {
		return res, fmt.Errorf("segment %s: %w", videoPath, err)
	}
	logger.Info("segmentation done", "segments", seq.Len())

	pdfPath := filepath.Join(cfg.OutputDir, base+".pdf")
	opts := document.DefaultPageOptions(cfg.TakeSpeech, cfg.FontSize)
	sink := document.NewPDFSink(pdfPath, opts.Width, opts.Height, opts.FontSize)
	w := &document.Writer{
		Options:     opts,
		Transcriber: b.Transcriber,
		Language:    cfg.Language,
		Logger:      logger,
	}
	slides, err := w.Write(ctx, seq, sink)
	if err != nil {
		return res, err
	}
	// 零页文档不写文件，PDFPath 留空
	if sink.Pages() == 0 {
		res.Elapsed = time.Since(start)
		logger.Warn("video has no slides, no document written")
		return res, nil
	}
	res.PDFPath = pdfPath

	res.Manifest = document.ManifestPath(res.PDFPath)
	manifest := document.Manifest{
		Video:     videoPath,
		PDF:       res.PDFPath,
		CreatedAt: time.Now(),
		Slides:    slides,
	}
	if cfg.TakeSpeech {
		manifest.Language = cfg.Language
	}
	if err := document.WriteManifest(res.Manifest, manifest); err != nil {
		logger.Warn("failed to write manifest", "path", res.Manifest, "error", err)
		res.Manifest = ""
	}

	for _, s := range slides {
		res.Slides = append(res.Slides, core.SlideRecord{
			VideoID:    base,
			Index:      s.Index,
			Page:       s.Page,
			Start:      s.Start,
			End:        s.End,
			Transcript: s.Transcript,
			PDFPath:    res.PDFPath,
		})
	}
	if b.Index != nil {
		if n, err := b.Index.Upsert(ctx, base, res.Slides); err != nil {
			logger.Warn("failed to index slides", "error", err)
		} else {
			logger.Debug("slides indexed", "count", n)
		}
	}

	res.Elapsed = time.Since(start)
	logger.Info("document written", "pdf", res.PDFPath, "pages", len(slides), "elapsed", res.Elapsed)
	return res, nil
}

// ProcessFolder 处理目录下所有匹配扩展名的视频，单个失败不影响其它文件，最后合并
func (b *Batch) ProcessFolder(ctx context.Context, dir string) (core.BatchReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	report := core.BatchReport{Dir: dir, StartTime: time.Now()}
	if err := b.Prepare(); err != nil {
		return report, err
	}
	videos, err := DiscoverVideos(dir, b.Config.VideoExt)
	if err != nil {
		return report, err
	}
	if len(videos) == 0 {
		b.logger().Warn("no videos found", "dir", dir, "ext", b.Config.VideoExt)
		report.EndTime = time.Now()
		return report, nil
	}

	out := b.Progress
	if out == nil {
		out = io.Discard
	}
	bar := progressbar.NewOptions(len(videos),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("videos"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var outputs []string
	for _, v := range videos {
		if ctx.Err() != nil {
			break
		}
		bar.Describe(filepath.Base(v))
		res, err := b.processVideo(ctx, v)
		bar.Add(1)
		if err != nil {
			b.logger().Error("video failed", "video", v, "error", err)
			report.Failures = append(report.Failures, core.FileFailure{VideoPath: v, Error: err.Error()})
			continue
		}
		if res.PDFPath == "" {
			report.Empty = append(report.Empty, v)
			continue
		}
		report.Documents = append(report.Documents, res)
		outputs = append(outputs, res.PDFPath)
	}
	bar.Finish()

	if err := ctx.Err(); err != nil {
		report.EndTime = time.Now()
		return report, err
	}
	if len(outputs) == 0 {
		report.EndTime = time.Now()
		if len(report.Failures) > 0 {
			return report, errors.New("no document produced")
		}
		b.logger().Warn("no slides in any video, nothing to merge", "dir", dir)
		return report, nil
	}

	report.MergeOrder = OrderOutputs(outputs, b.Config.MergeOrder)
	merged := MergedPath(b.Config.OutputDir, dir, report.MergeOrder)
	if err := b.Merger.Merge(report.MergeOrder, merged); err != nil {
		report.EndTime = time.Now()
		return report, err
	}
	report.MergedPath = merged
	report.EndTime = time.Now()
	b.logger().Info("folder merged", "dir", dir, "documents", len(outputs), "failures", len(report.Failures), "merged", merged)
	return report, nil
}

// DiscoverVideos 匹配 dir/*ext，按路径排序
func DiscoverVideos(dir, ext string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, fmt.Errorf("discover videos in %s: %w", dir, err)
	}
	var videos []string
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			videos = append(videos, m)
		}
	}
	sort.Strings(videos)
	return videos, nil
}

// OrderOutputs 合并顺序：natural（cours2 在 cours10 之前）或 lexical
func OrderOutputs(paths []string, order string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	if order == "lexical" {
		sort.Strings(out)
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return natural.Less(out[i], out[j]) })
	return out
}

// MergedPath <output>/<目录名>.pdf，与某个输入同名时加 _merged 后缀
func MergedPath(outputDir, dir string, inputs []string) string {
	name := filepath.Base(filepath.Clean(dir))
	merged := filepath.Join(outputDir, name+".pdf")
	for _, in := range inputs {
		if filepath.Clean(in) == filepath.Clean(merged) {
			return filepath.Join(outputDir, name+"_merged.pdf")
		}
	}
	return merged
}

func (b *Batch) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
