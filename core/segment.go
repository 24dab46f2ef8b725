package core

import (
	"context"
	"log/slog"
	"sync"
)

// TimeRange 片段的时间范围（秒）。新片段在下一个边界出现前处于 Pending 状态
type TimeRange struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Pending bool    `json:"pending,omitempty"`
}

// Duration 返回时长，未定稿时为0
func (tr TimeRange) Duration() float64 {
	if tr.Pending {
		return 0
	}
	return tr.End - tr.Start
}

// AudioClip 从已抽取的音轨中截取的一段，只描述范围，按需落盘
type AudioClip struct {
	SourcePath string  `json:"source_path"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	// Origin 音轨来自的视频文件，用于转录缓存
	Origin string `json:"origin,omitempty"`
}

// Duration 片段时长
func (c AudioClip) Duration() float64 { return c.End - c.Start }

// Transcriber 语音识别服务
type Transcriber interface {
	Transcribe(ctx context.Context, clip AudioClip, language string) (string, error)
}

// TranscriptState 转录的两种状态
type TranscriptState int

const (
	TranscriptPending TranscriptState = iota
	TranscriptResolved
)

// Transcript 显式的 Pending | Resolved(text) 值
type Transcript struct {
	State TranscriptState
	Text  string
}

// ResolveTranscript 根据音频片段得到文本。没有音频时不调用服务；服务失败返回空串
func ResolveTranscript(ctx context.Context, clip *AudioClip, svc Transcriber, language string) string {
	if clip == nil || svc == nil {
		return ""
	}
	text, err := svc.Transcribe(ctx, *clip, language)
	if err != nil {
		slog.Debug("transcription dropped", "start", clip.Start, "end", clip.End, "error", err)
		return ""
	}
	return text
}

// Segment 一段视觉稳定的视频（tape）：代表帧、时间范围、可选音频和惰性转录
type Segment struct {
	image     *Image
	timeRange TimeRange
	audio     *AudioClip

	mu         sync.Mutex
	transcript Transcript
}

// NewSegment 以首次出现的帧创建片段，时间范围待定
func NewSegment(img *Image) *Segment {
	return &Segment{image: img, timeRange: TimeRange{Pending: true}}
}

// Image 代表帧，创建后不再替换
func (s *Segment) Image() *Image { return s.image }

// TimeRange 当前时间范围
func (s *Segment) TimeRange() TimeRange { return s.timeRange }

// Audio 已附加的音频片段，可能为nil
func (s *Segment) Audio() *AudioClip { return s.audio }

// Finalized 时间范围是否已确定
func (s *Segment) Finalized() bool { return !s.timeRange.Pending }

// Finalize 在下一个边界（或流结束）时确定时间范围并附加音频
func (s *Segment) Finalize(start, end float64, audio *AudioClip) {
	s.timeRange = TimeRange{Start: start, End: end}
	s.audio = audio
}

// Transcript 首次读取时解析并缓存；未定稿的片段返回空串且不缓存
func (s *Segment) Transcript(ctx context.Context, svc Transcriber, language string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcript.State == TranscriptResolved {
		return s.transcript.Text
	}
	if s.timeRange.Pending {
		return ""
	}
	s.transcript = Transcript{State: TranscriptResolved, Text: ResolveTranscript(ctx, s.audio, svc, language)}
	return s.transcript.Text
}

// TranscriptValue 当前转录状态，不触发解析
func (s *Segment) TranscriptValue() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// HasImage 判断候选帧是否与代表帧相同
func (s *Segment) HasImage(img *Image, threshold float64) (bool, error) {
	return IsSame(s.image, img, threshold)
}

// VisuallyEquivalent 只比较两个片段的代表帧
func VisuallyEquivalent(a, b *Segment, threshold float64) (bool, error) {
	return IsSame(a.image, b.image, threshold)
}
