package document

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"

	"github.com/go-pdf/fpdf"

	"videoSlides/core"
)

// ErrEmptyDocument 没有任何页面的文档不写文件
var ErrEmptyDocument = errors.New("document has no pages")

// Sink 文档输出目标
type Sink interface {
	NewPage(width, height float64) error
	DrawImage(img *core.Image, x, y, w, h float64) error
	DrawText(x, y float64, s string) error
	Save() error
}

// PDFSink 基于 fpdf 的 PDF 输出，单位 pt，字体 Times
type PDFSink struct {
	path     string
	fontSize float64
	pdf      *fpdf.Fpdf
	tr       func(string) string
	images   int
	pages    int
}

// NewPDFSink 保存路径在 Save 时才写入
func NewPDFSink(path string, width, height, fontSize float64) *PDFSink {
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	return &PDFSink{
		path:     path,
		fontSize: fontSize,
		pdf:      pdf,
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

// Pages 已创建的页数
func (s *PDFSink) Pages() int { return s.pages }

func (s *PDFSink) NewPage(width, height float64) error {
	s.pdf.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})
	s.pdf.SetFont("Times", "", s.fontSize)
	s.pages++
	return s.pdf.Error()
}

// DrawImage 以 JPEG 嵌入，缩放到给定的框
func (s *PDFSink) DrawImage(img *core.Image, x, y, w, h float64) error {
	if img == nil {
		return fmt.Errorf("draw image: nil image")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.ToRGBA(), &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	s.images++
	name := fmt.Sprintf("slide-%d", s.images)
	opt := fpdf.ImageOptions{ImageType: "JPG"}
	s.pdf.RegisterImageOptionsReader(name, opt, &buf)
	s.pdf.ImageOptions(name, x, y, w, h, false, opt, 0, "")
	return s.pdf.Error()
}

// DrawText y 为基线位置
func (s *PDFSink) DrawText(x, y float64, text string) error {
	s.pdf.Text(x, y, s.tr(text))
	return s.pdf.Error()
}

// Save 写文件，失败包装为 ErrSinkWrite；零页时不落盘（fpdf 会自动补一页空白页）
func (s *PDFSink) Save() error {
	if s.pages == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyDocument, s.path)
	}
	if err := s.pdf.OutputFileAndClose(s.path); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrSinkWrite, s.path, err)
	}
	return nil
}
