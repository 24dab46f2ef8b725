package processors

import (
	"context"
	"errors"
	"math"
	"sync"

	"videoSlides/core"
)

func solidFrame(w, h int, v uint8) *core.Image {
	img := core.NewImage(w, h)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// fakeVideo 第 i 帧对应 t = i*dt
type fakeVideo struct {
	frames []*core.Image
	dt     float64
	reads  []float64
	closed bool
}

func (f *fakeVideo) ReadFrame(ctx context.Context, t float64) (*core.Image, bool) {
	f.reads = append(f.reads, t)
	dt := f.dt
	if dt == 0 {
		dt = 1
	}
	i := int(math.Round(t / dt))
	if i < 0 || i >= len(f.frames) || f.frames[i] == nil {
		return nil, false
	}
	return f.frames[i].Clone(), true
}

func (f *fakeVideo) Close() error { f.closed = true; return nil }

type fakeAudio struct {
	fail   bool
	slices [][2]float64
	closed bool
}

func (f *fakeAudio) Slice(start, end float64) (core.AudioClip, error) {
	if f.fail {
		return core.AudioClip{}, errors.New("slice failed")
	}
	f.slices = append(f.slices, [2]float64{start, end})
	return core.AudioClip{SourcePath: "track.wav", Start: start, End: end}, nil
}

func (f *fakeAudio) Close() error { f.closed = true; return nil }

type countingTranscriber struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (c *countingTranscriber) Transcribe(ctx context.Context, clip core.AudioClip, language string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	return c.text, nil
}

func (c *countingTranscriber) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
