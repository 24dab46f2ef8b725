package processors

import (
	"context"
	"fmt"
	"log/slog"

	"videoSlides/core"
)

// Segmenter 按固定步长采样视频，把视觉稳定的时间段切成片段
type Segmenter struct {
	Dt         float64
	Threshold  float64
	TakeSpeech bool
	WorkWidth  int
	WorkHeight int
	Logger     *slog.Logger
}

// 状态机: SAMPLING -> FINALIZING_SEGMENT -> SAMPLING ... -> DONE
type segmenterState int

const (
	stateSampling segmenterState = iota
	stateFinalizing
	stateDone
)

type segmenterRun struct {
	*Segmenter
	audio AudioSource
	seq   *core.SegmentSequence

	workW, workH int
	prevStart    float64
	lastSampled  float64
	sampled      bool
}

// Run 采样到流结束。片段在下一个边界才确定结束时间和音频，
// 最后一个片段在最后一次成功采样的时间点收尾。转录不在这里进行。
// ctx 取消时按流结束收尾，并返回 ctx 的错误。
func (s *Segmenter) Run(ctx context.Context, video VideoSource, audio AudioSource) (*core.SegmentSequence, error) {
	if video == nil {
		return nil, fmt.Errorf("%w: no video source", core.ErrSourceRead)
	}
	dt := s.Dt
	if dt <= 0 {
		dt = 1.0
	}
	if !s.TakeSpeech {
		audio = nil
	}
	r := &segmenterRun{
		Segmenter: s,
		audio:     audio,
		seq:       core.NewSegmentSequence(s.Threshold),
	}

	var (
		state  = stateSampling
		frame  *core.Image
		runErr error
		t      float64
		step   int
	)
	for state != stateDone {
		switch state {
		case stateSampling:
			if err := ctx.Err(); err != nil {
				runErr = err
				state = stateDone
				continue
			}
			t = float64(step) * dt
			raw, ok := video.ReadFrame(ctx, t)
			if !ok || raw == nil {
				state = stateDone
				continue
			}
			img, err := r.normalize(raw)
			if err != nil {
				return nil, err
			}
			r.lastSampled, r.sampled = t, true
			step++

			same, err := r.seq.MatchesLast(img)
			if err != nil {
				return nil, err
			}
			if !same {
				frame = img
				state = stateFinalizing
			}
		case stateFinalizing:
			r.finalizeLast(t)
			r.prevStart = t
			if _, err := r.seq.Append(frame); err != nil {
				return nil, err
			}
			frame = nil
			state = stateSampling
		}
	}

	if r.sampled {
		r.finalizeLast(r.lastSampled)
	}
	r.logger().Debug("segmentation finished", "segments", r.seq.Len(), "samples", step, "last_t", r.lastSampled)
	return r.seq, runErr
}

// normalize 缩放到本次运行固定的工作分辨率（由第一帧决定）
func (r *segmenterRun) normalize(img *core.Image) (*core.Image, error) {
	if r.workW == 0 {
		r.workW, r.workH = img.Width, img.Height
		if r.WorkWidth > 0 && r.WorkWidth < r.workW {
			r.workW = r.WorkWidth
		}
		if r.WorkHeight > 0 && r.WorkHeight < r.workH {
			r.workH = r.WorkHeight
		}
	}
	if img.Width == r.workW && img.Height == r.workH {
		return img, nil
	}
	return img.Resize(r.workW, r.workH)
}

// finalizeLast 收尾当前最后一个（待定）片段
func (r *segmenterRun) finalizeLast(end float64) {
	last, ok := r.seq.Last()
	if !ok || last.Finalized() {
		return
	}
	var clip *core.AudioClip
	if r.audio != nil {
		c, err := r.audio.Slice(r.prevStart, end)
		if err != nil {
			r.logger().Warn("audio slice failed, segment keeps no audio", "start", r.prevStart, "end", end, "error", err)
		} else {
			clip = &c
		}
	}
	last.Finalize(r.prevStart, end, clip)
}

func (s *Segmenter) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
