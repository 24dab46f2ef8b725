package document

import (
	"errors"
	"strings"
	"testing"

	"videoSlides/core"
)

func TestWrapWordsNeverSplitsWords(t *testing.T) {
	text := "le cours aujourd'hui porte sur les transformations linéaires et les espaces vectoriels de dimension finie"
	lines := WrapWords(text, 300, 18)
	if len(lines) < 2 {
		t.Fatalf("expected several lines, got %d", len(lines))
	}
	if got := strings.Join(lines, " "); got != strings.Join(strings.Fields(text), " ") {
		t.Errorf("words lost or altered:\n got %q", got)
	}
	words := map[string]bool{}
	for _, w := range strings.Fields(text) {
		words[w] = true
	}
	for _, line := range lines {
		for _, w := range strings.Fields(line) {
			if !words[w] {
				t.Errorf("line %q contains a split word %q", line, w)
			}
		}
	}
}

func TestWrapWordsWidthRule(t *testing.T) {
	// W-2S = 100 with S=10: "aaaa" costs 50, two fit, a third does not
	lines := WrapWords("aaaa bbbb cccc", 120, 10)
	want := []string{"aaaa bbbb", "cccc"}
	if len(lines) != len(want) {
		t.Fatalf("expected %v, got %v", want, lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestWrapWordsEdgeCases(t *testing.T) {
	if lines := WrapWords("", 1450, 18); len(lines) != 0 {
		t.Errorf("empty text should give no lines, got %v", lines)
	}
	if lines := WrapWords("   \t\n ", 1450, 18); len(lines) != 0 {
		t.Errorf("blank text should give no lines, got %v", lines)
	}
	long := strings.Repeat("x", 500)
	if lines := WrapWords(long, 100, 18); len(lines) != 1 || lines[0] != long {
		t.Errorf("a single long word must stay on one line, got %d lines", len(lines))
	}
	lines := WrapWords("a "+long+" b", 100, 18)
	if len(lines) != 3 {
		t.Errorf("expected the long word on its own line, got %v", lines)
	}
}

func TestFormatClockAndCaption(t *testing.T) {
	cases := map[float64]string{
		0:       "00:00:00",
		59.9:    "00:00:59",
		61:      "00:01:01",
		3600:    "01:00:00",
		86399.5: "23:59:59",
		-4:      "00:00:00",
	}
	for in, want := range cases {
		if got := FormatClock(in); got != want {
			t.Errorf("FormatClock(%v) = %q, want %q", in, got, want)
		}
	}
	got := Caption(core.TimeRange{Start: 3, End: 4000})
	if got != "times: (00:00:03 to 01:06:40) [h:m:s]" {
		t.Errorf("unexpected caption %q", got)
	}
}

func finalized(start, end float64) *core.Segment {
	seg := core.NewSegment(core.NewImage(4, 3))
	seg.Finalize(start, end, nil)
	return seg
}

func TestLayoutPageWithTranscript(t *testing.T) {
	opts := DefaultPageOptions(true, 18)
	if opts.Width != 1450 || opts.Height != 1200 {
		t.Fatalf("unexpected text page size %vx%v", opts.Width, opts.Height)
	}
	page, err := LayoutPage(finalized(0, 3), "bonjour à tous", opts)
	if err != nil {
		t.Fatalf("LayoutPage: %v", err)
	}
	ops := page.Ops()
	if len(ops) != 3 {
		t.Fatalf("expected image, one text line and a caption, got %d ops", len(ops))
	}
	if ops[0].IsText() || ops[0].W != 1200 || ops[0].H != 750 || ops[0].Y != 0 {
		t.Errorf("image should fill the top box, got %+v", ops[0])
	}
	if ops[1].Text != "bonjour à tous" || ops[1].Y != 750+18 || ops[1].X != 18 {
		t.Errorf("unexpected transcript op %+v", ops[1])
	}
	if ops[2].Text != "times: (00:00:00 to 00:00:03) [h:m:s]" || ops[2].Y != 1200-18 {
		t.Errorf("unexpected caption op %+v", ops[2])
	}
}

func TestLayoutPageEmptyTranscript(t *testing.T) {
	page, err := LayoutPage(finalized(1, 2), "", DefaultPageOptions(true, 18))
	if err != nil {
		t.Fatalf("LayoutPage: %v", err)
	}
	if lines := page.Lines(); len(lines) != 1 || !strings.HasPrefix(lines[0], "times:") {
		t.Errorf("expected caption only, got %v", lines)
	}
}

func TestLayoutPageWithoutText(t *testing.T) {
	opts := DefaultPageOptions(false, 0)
	if opts.Width != 1200 || opts.Height != 750 || opts.FontSize != DefaultFontSize {
		t.Fatalf("unexpected options %+v", opts)
	}
	page, err := LayoutPage(finalized(0, 1), "ignored words", opts)
	if err != nil {
		t.Fatalf("LayoutPage: %v", err)
	}
	for _, l := range page.Lines() {
		if strings.Contains(l, "ignored") {
			t.Errorf("transcript must not render when disabled")
		}
	}
}

func TestPageSealedAfterEmit(t *testing.T) {
	page, err := LayoutPage(finalized(0, 1), "x", DefaultPageOptions(true, 18))
	if err != nil {
		t.Fatalf("LayoutPage: %v", err)
	}
	sink := &recordingSink{}
	if err := page.Emit(sink); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !page.Sealed() {
		t.Fatal("page should be sealed after emit")
	}
	if err := page.DrawText(0, 0, "late"); !errors.Is(err, core.ErrPageSealed) {
		t.Errorf("expected ErrPageSealed, got %v", err)
	}
	if err := page.DrawImage(core.NewImage(1, 1), 0, 0, 1, 1); !errors.Is(err, core.ErrPageSealed) {
		t.Errorf("expected ErrPageSealed, got %v", err)
	}
	if err := page.Emit(sink); !errors.Is(err, core.ErrPageSealed) {
		t.Errorf("second emit should fail, got %v", err)
	}
	if sink.pages != 1 {
		t.Errorf("expected 1 page, got %d", sink.pages)
	}
}

type recordingSink struct {
	pages   int
	images  int
	texts   []string
	saved   bool
	saveErr error
	drawErr error
}

func (r *recordingSink) NewPage(w, h float64) error { r.pages++; return nil }

func (r *recordingSink) DrawImage(img *core.Image, x, y, w, h float64) error {
	if r.drawErr != nil {
		return r.drawErr
	}
	r.images++
	return nil
}

func (r *recordingSink) DrawText(x, y float64, s string) error {
	r.texts = append(r.texts, s)
	return nil
}

func (r *recordingSink) Save() error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = true
	return nil
}
