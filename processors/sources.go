package processors

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"videoSlides/core"
	"videoSlides/utils"
)

// VideoSource 按时间戳取帧；没有帧（流结束或读取失败）时返回false
type VideoSource interface {
	ReadFrame(ctx context.Context, t float64) (*core.Image, bool)
	Close() error
}

// AudioSource 与视频同源的音轨
type AudioSource interface {
	Slice(start, end float64) (core.AudioClip, error)
	Close() error
}

// SourceFactory 为一个视频文件打开视频源和（可选的）音频源，scratchDir 为该作业独占
type SourceFactory func(ctx context.Context, videoPath, scratchDir string, withAudio bool) (VideoSource, AudioSource, error)

// FFmpegVideoSource 每次取帧都用 ffmpeg 定位并输出一帧PNG
type FFmpegVideoSource struct {
	path   string
	info   core.VideoInfo
	logger *slog.Logger
}

// OpenFFmpegVideo 探测视频信息
func OpenFFmpegVideo(ctx context.Context, path string, logger *slog.Logger) (*FFmpegVideoSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := utils.ProbeVideo(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSourceRead, err)
	}
	return &FFmpegVideoSource{path: path, info: info, logger: logger}, nil
}

// Info 探测结果
func (v *FFmpegVideoSource) Info() core.VideoInfo { return v.info }

// ReadFrame 超出时长或解码失败都视为流结束
func (v *FFmpegVideoSource) ReadFrame(ctx context.Context, t float64) (*core.Image, bool) {
	if t < 0 || (v.info.Duration > 0 && t >= v.info.Duration) {
		return nil, false
	}
	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(t, 'f', 3, 64),
		"-i", v.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
	out, err := utils.RunFFmpegOutput(ctx, args)
	if err != nil {
		v.logger.Warn("frame read failed, treating as end of stream", "video", v.path, "t", t, "error", err)
		return nil, false
	}
	if len(out) == 0 {
		return nil, false
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		v.logger.Warn("frame decode failed, treating as end of stream", "video", v.path, "t", t, "error", err)
		return nil, false
	}
	return core.FromImage(img), true
}

// Close 无需释放资源
func (v *FFmpegVideoSource) Close() error { return nil }

// FFmpegAudioSource 先把整条音轨抽成16kHz单声道WAV，切片只记录范围
type FFmpegAudioSource struct {
	trackPath string
	origin    string
}

// OpenFFmpegAudio 抽取音轨到 scratchDir/audio.wav
func OpenFFmpegAudio(ctx context.Context, videoPath, scratchDir string, gpuType string) (*FFmpegAudioSource, error) {
	if err := utils.EnsureDir(scratchDir); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	trackPath := filepath.Join(scratchDir, "audio.wav")
	if err := extractAudio(ctx, videoPath, trackPath, gpuType); err != nil {
		return nil, fmt.Errorf("%w: extract audio: %v", core.ErrSourceRead, err)
	}
	return &FFmpegAudioSource{trackPath: trackPath, origin: videoPath}, nil
}

// Slice 返回 [start, end] 的片段描述
func (a *FFmpegAudioSource) Slice(start, end float64) (core.AudioClip, error) {
	if end < start {
		return core.AudioClip{}, fmt.Errorf("invalid audio range [%.3f, %.3f]", start, end)
	}
	return core.AudioClip{SourcePath: a.trackPath, Start: start, End: end, Origin: a.origin}, nil
}

// Close 删除抽取的音轨
func (a *FFmpegAudioSource) Close() error {
	if err := os.Remove(a.trackPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func extractAudio(ctx context.Context, inputPath, audioOut, gpuType string) error {
	args := []string{"-y"}
	if gpuType != "" && gpuType != "cpu" {
		args = append(args, utils.GetHardwareAccelArgs(gpuType)...)
	}
	args = append(args, "-i", inputPath, "-vn", "-ac", "1", "-ar", "16000", "-f", "wav", audioOut)
	return utils.RunFFmpeg(ctx, args)
}

// WriteClipWAV 把片段写成独立的WAV文件
func WriteClipWAV(ctx context.Context, clip core.AudioClip, out string) error {
	args := []string{
		"-y", "-v", "error",
		"-i", clip.SourcePath,
		"-ss", strconv.FormatFloat(clip.Start, 'f', 3, 64),
		"-to", strconv.FormatFloat(clip.End, 'f', 3, 64),
		"-ac", "1", "-ar", "16000", "-f", "wav", out,
	}
	return utils.RunFFmpeg(ctx, args)
}

// NewFFmpegSourceFactory 默认的源工厂；gpuType 为空或 cpu 时不加硬件加速
func NewFFmpegSourceFactory(gpuType string, logger *slog.Logger) SourceFactory {
	return func(ctx context.Context, videoPath, scratchDir string, withAudio bool) (VideoSource, AudioSource, error) {
		video, err := OpenFFmpegVideo(ctx, videoPath, logger)
		if err != nil {
			return nil, nil, err
		}
		if !withAudio {
			return video, nil, nil
		}
		if !video.Info().HasAudio {
			if logger != nil {
				logger.Warn("video has no audio track, transcripts disabled", "video", videoPath)
			}
			return video, nil, nil
		}
		audio, err := OpenFFmpegAudio(ctx, videoPath, scratchDir, gpuType)
		if err != nil {
			video.Close()
			return nil, nil, err
		}
		return video, audio, nil
	}
}
