package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"videoSlides/core"
)

// ManifestSlide 一页幻灯片的元数据
type ManifestSlide struct {
	Index      int     `json:"index"`
	Page       int     `json:"page"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Transcript string  `json:"transcript"`
}

// Manifest 与 PDF 同名的 JSON 文件
type Manifest struct {
	Video     string          `json:"video"`
	PDF       string          `json:"pdf"`
	Language  string          `json:"language,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Slides    []ManifestSlide `json:"slides"`
}

// Writer 把片段序列渲染成文档，转录在渲染时按需解析
type Writer struct {
	Options     PageOptions
	Transcriber core.Transcriber
	Language    string
	Logger      *slog.Logger
}

// Write 按顺序渲染已定稿的片段并保存；没有定稿片段时不保存、返回空；sink 写失败时返回错误，转录失败只留空白
func (w *Writer) Write(ctx context.Context, seq *core.SegmentSequence, sink Sink) ([]ManifestSlide, error) {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var slides []ManifestSlide
	for i, seg := range seq.Segments() {
		if !seg.Finalized() {
			logger.Warn("skipping pending segment", "index", i)
			continue
		}
		var text string
		if w.Options.TakeText {
			text = seg.Transcript(ctx, w.Transcriber, w.Language)
		}
		page, err := LayoutPage(seg, text, w.Options)
		if err != nil {
			return nil, err
		}
		if err := page.Emit(sink); err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", core.ErrSinkWrite, len(slides)+1, err)
		}
		tr := seg.TimeRange()
		slides = append(slides, ManifestSlide{
			Index:      i,
			Page:       len(slides) + 1,
			Start:      tr.Start,
			End:        tr.End,
			Transcript: text,
		})
	}
	if len(slides) == 0 {
		logger.Warn("no finalized segments, document not written")
		return nil, nil
	}
	if err := sink.Save(); err != nil {
		return nil, err
	}
	logger.Info("document saved", "pages", len(slides))
	return slides, nil
}

// ManifestPath foo.pdf -> foo.json
func ManifestPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, ".pdf") + ".json"
}

// WriteManifest 写入带缩进的 JSON
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrSinkWrite, path, err)
	}
	return nil
}

// ReadManifest 读取 WriteManifest 的输出
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}
