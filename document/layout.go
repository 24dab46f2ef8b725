package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"videoSlides/core"
)

// 页面尺寸（pt），与原有工具输出一致
const (
	ImageBoxWidth   = 1200.0
	ImageBoxHeight  = 750.0
	TextPageWidth   = 1450.0
	TextPageHeight  = 1200.0
	DefaultFontSize = 18.0
)

// PageOptions 版面参数
type PageOptions struct {
	Width    float64
	Height   float64
	ImageW   float64
	ImageH   float64
	FontSize float64
	TakeText bool
}

// DefaultPageOptions 有转录时用 1450x1200 的大页，否则页面等于图片框
func DefaultPageOptions(takeText bool, fontSize float64) PageOptions {
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	opts := PageOptions{
		Width:    ImageBoxWidth,
		Height:   ImageBoxHeight,
		ImageW:   ImageBoxWidth,
		ImageH:   ImageBoxHeight,
		FontSize: fontSize,
		TakeText: takeText,
	}
	if takeText {
		opts.Width, opts.Height = TextPageWidth, TextPageHeight
	}
	return opts
}

// WrapWords 按字符数近似宽度贪心折行：当前行累计 (len(word)+1)*S 不超过 W-2S 时继续追加。
// 每行第一个词总会放下，只在空白处断行，空文本返回0行。
func WrapWords(text string, width, fontSize float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	avail := width - 2*fontSize

	var (
		lines []string
		cur   []string
		acc   float64
	)
	for _, w := range words {
		cost := float64(utf8.RuneCountInString(w)+1) * fontSize
		if len(cur) > 0 && acc+cost > avail {
			lines = append(lines, strings.Join(cur, " "))
			cur, acc = nil, 0
		}
		cur = append(cur, w)
		acc += cost
	}
	return append(lines, strings.Join(cur, " "))
}

// FormatClock 秒数按零点起算格式化为 HH:MM:SS（向下取整）
func FormatClock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int64(sec)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// Caption 页脚时间说明
func Caption(tr core.TimeRange) string {
	return fmt.Sprintf("times: (%s to %s) [h:m:s]", FormatClock(tr.Start), FormatClock(tr.End))
}

type opKind int

const (
	opImage opKind = iota
	opText
)

// DrawOp 一次绘制操作，坐标从页面左上角起算，文本 Y 为基线
type DrawOp struct {
	kind opKind
	X, Y float64
	W, H float64
	Img  *core.Image
	Text string
}

// IsText 是否文本操作
func (op DrawOp) IsText() bool { return op.kind == opText }

// Page 一页的绘制计划，输出后封页
type Page struct {
	Width, Height float64
	ops           []DrawOp
	sealed        bool
}

// NewPage 新的空白页
func NewPage(width, height float64) *Page {
	return &Page{Width: width, Height: height}
}

// DrawImage 封页后返回 ErrPageSealed
func (p *Page) DrawImage(img *core.Image, x, y, w, h float64) error {
	if p.sealed {
		return core.ErrPageSealed
	}
	p.ops = append(p.ops, DrawOp{kind: opImage, X: x, Y: y, W: w, H: h, Img: img})
	return nil
}

// DrawText 封页后返回 ErrPageSealed
func (p *Page) DrawText(x, y float64, s string) error {
	if p.sealed {
		return core.ErrPageSealed
	}
	p.ops = append(p.ops, DrawOp{kind: opText, X: x, Y: y, Text: s})
	return nil
}

// Ops 绘制操作的副本
func (p *Page) Ops() []DrawOp {
	out := make([]DrawOp, len(p.ops))
	copy(out, p.ops)
	return out
}

// Lines 所有文本内容，按绘制顺序
func (p *Page) Lines() []string {
	var out []string
	for _, op := range p.ops {
		if op.kind == opText {
			out = append(out, op.Text)
		}
	}
	return out
}

// Seal 封页
func (p *Page) Seal() { p.sealed = true }

// Sealed 是否已封页
func (p *Page) Sealed() bool { return p.sealed }

// LayoutPage 图片放在顶部的图片框，转录从图片下方逐行排列，页脚是时间范围
func LayoutPage(seg *core.Segment, transcript string, opts PageOptions) (*Page, error) {
	p := NewPage(opts.Width, opts.Height)
	s := opts.FontSize
	if err := p.DrawImage(seg.Image(), 0, 0, opts.ImageW, opts.ImageH); err != nil {
		return nil, err
	}
	if opts.TakeText {
		for i, line := range WrapWords(transcript, opts.Width, s) {
			if err := p.DrawText(s, opts.ImageH+s*float64(i+1), line); err != nil {
				return nil, err
			}
		}
	}
	if err := p.DrawText(s, opts.Height-s, Caption(seg.TimeRange())); err != nil {
		return nil, err
	}
	return p, nil
}

// Emit 把页面写入 sink 并封页，已封页的页面不能再次输出
func (p *Page) Emit(sink Sink) error {
	if p.sealed {
		return core.ErrPageSealed
	}
	if err := sink.NewPage(p.Width, p.Height); err != nil {
		return err
	}
	for _, op := range p.ops {
		var err error
		switch op.kind {
		case opImage:
			err = sink.DrawImage(op.Img, op.X, op.Y, op.W, op.H)
		case opText:
			err = sink.DrawText(op.X, op.Y, op.Text)
		}
		if err != nil {
			return err
		}
	}
	p.Seal()
	return nil
}
