package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"videoSlides/core"
)

// NewID 生成作业ID
func NewID() string {
	return uuid.NewString()
}

// FFmpegAvailable ffmpeg 与 ffprobe 是否都在 PATH 中
func FFmpegAvailable() bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	_, err := exec.LookPath("ffprobe")
	return err == nil
}

// RunFFmpeg 执行FFmpeg命令，失败时附带输出
func RunFFmpeg(ctx context.Context, args []string) error {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	cmd.Env = os.Environ()
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\noutput: %s", err, tail(output, 2048))
	}
	return nil
}

// RunFFmpegOutput 执行FFmpeg并返回stdout（用于管道输出帧）
func RunFFmpegOutput(ctx context.Context, args []string) ([]byte, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w\nstderr: %s", err, tail(stderr.Bytes(), 2048))
	}
	return stdout.Bytes(), nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeVideo 用 ffprobe 读取时长、尺寸和是否含音轨
func ProbeVideo(ctx context.Context, path string) (core.VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error",
		"-show_entries", "stream=codec_type,width,height:format=duration",
		"-of", "json", path)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return core.VideoInfo{}, fmt.Errorf("ffprobe %s: %w (%s)", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(out.Bytes())
}

func parseProbe(data []byte) (core.VideoInfo, error) {
	var p probeOutput
	if err := json.Unmarshal(data, &p); err != nil {
		return core.VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	var info core.VideoInfo
	for _, s := range p.Streams {
		switch s.CodecType {
		case "video":
			if info.Width == 0 {
				info.Width, info.Height = s.Width, s.Height
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if p.Format.Duration != "" {
		d, err := strconv.ParseFloat(strings.TrimSpace(p.Format.Duration), 64)
		if err != nil {
			return core.VideoInfo{}, fmt.Errorf("parse duration %q: %w", p.Format.Duration, err)
		}
		info.Duration = d
	}
	if info.Width == 0 || info.Height == 0 {
		return info, fmt.Errorf("no video stream found")
	}
	return info, nil
}

// GetHardwareAccelArgs 获取硬件加速参数
func GetHardwareAccelArgs(gpuType string) []string {
	switch strings.ToLower(gpuType) {
	case "nvidia", "cuda":
		return []string{"-hwaccel", "cuda"}
	case "amd", "opencl":
		return []string{"-hwaccel", "opencl"}
	case "intel", "qsv":
		return []string{"-hwaccel", "qsv"}
	case "vaapi":
		return []string{"-hwaccel", "vaapi", "-hwaccel_device", "/dev/dri/renderD128"}
	case "videotoolbox":
		if runtime.GOOS == "darwin" {
			return []string{"-hwaccel", "videotoolbox"}
		}
		fallthrough
	default:
		return []string{} // CPU模式，无硬件加速
	}
}

// ResolveGPUType "auto" 时探测，否则原样返回
func ResolveGPUType(gpuType string) string {
	if gpuType == "" || gpuType == "auto" {
		return DetectGPUType()
	}
	return gpuType
}

// DetectGPUType 检测GPU类型
func DetectGPUType() string {
	if commandSucceeds("nvidia-smi") {
		return "nvidia"
	}
	if runtime.GOOS == "linux" {
		if _, err := os.Stat("/dev/dri/renderD128"); err == nil {
			return "vaapi"
		}
	}
	if runtime.GOOS == "darwin" {
		return "videotoolbox"
	}
	return "cpu"
}

func commandSucceeds(name string, args ...string) bool {
	if _, err := exec.LookPath(name); err != nil {
		return false
	}
	return exec.Command(name, args...).Run() == nil
}

// EnsureDir 确保目录存在
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// FileExists 检查文件是否存在
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
