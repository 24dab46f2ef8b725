package initialization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"videoSlides/config"
	"videoSlides/processors"
	"videoSlides/server"
	"videoSlides/storage"
	"videoSlides/utils"
)

// System 初始化后的各组件
type System struct {
	Config   *config.Config
	Index    storage.SlideIndex
	Batch    *processors.Batch
	Handlers *server.Handlers
}

// Close 释放索引连接
func (s *System) Close() error {
	if s.Index != nil {
		return s.Index.Close()
	}
	return nil
}

// SystemInitializer 系统初始化器
type SystemInitializer struct {
	config *config.Config
	logger *slog.Logger

	// ffmpegAvailable 测试中可替换
	ffmpegAvailable func() bool
}

func NewSystemInitializer(cfg *config.Config, logger *slog.Logger) *SystemInitializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemInitializer{config: cfg, logger: logger, ffmpegAvailable: utils.FFmpegAvailable}
}

// InitializeSystem 检查依赖、配置GPU、创建目录、打开索引并组装处理器
func (si *SystemInitializer) InitializeSystem(ctx context.Context) (*System, error) {
	cfg := si.config

	// 1. ffmpeg
	if !si.ffmpegAvailable() {
		return nil, errors.New("ffmpeg/ffprobe not found in PATH")
	}

	// 2. GPU加速
	if cfg.GPUAcceleration {
		if err := si.ConfigureGPUAcceleration(); err != nil {
			si.logger.Warn("GPU acceleration unavailable, using CPU", "error", err)
			cfg.GPUAcceleration = false
		}
	}

	// 3. 幻灯片索引（失败时内部退回内存）
	index := storage.Open(ctx, cfg, si.logger)

	// 4. 处理器和目录
	batch := processors.NewBatch(cfg, index, si.logger)
	if cfg.Verbose {
		batch.Progress = os.Stderr
	}
	if err := batch.Prepare(); err != nil {
		index.Close()
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	si.logger.Info("system initialized",
		"data_dir", cfg.DataDir,
		"output_dir", cfg.OutputDir,
		"asr", cfg.ASR.Provider,
		"store", cfg.Store,
		"gpu", cfg.GPUAcceleration,
	)
	return &System{
		Config:   cfg,
		Index:    index,
		Batch:    batch,
		Handlers: server.NewHandlers(batch, index, si.logger),
	}, nil
}

// ConfigureGPUAcceleration auto 时探测具体类型，并验证设备可用
func (si *SystemInitializer) ConfigureGPUAcceleration() error {
	cfg := si.config
	if cfg.GPUType == "" || cfg.GPUType == "auto" {
		detected := utils.DetectGPUType()
		if detected == "cpu" {
			return errors.New("no supported GPU detected")
		}
		cfg.GPUType = detected
		si.logger.Info("GPU detected", "type", detected)
	}
	return validateGPU(cfg.GPUType)
}

func validateGPU(gpuType string) error {
	switch gpuType {
	case "nvidia", "cuda":
		if _, err := os.Stat("/dev/nvidiactl"); err != nil && runtime.GOOS == "linux" {
			return fmt.Errorf("NVIDIA device not available: %w", err)
		}
	case "vaapi", "intel", "qsv", "amd":
		if runtime.GOOS == "linux" {
			if _, err := os.Stat("/dev/dri"); err != nil {
				return fmt.Errorf("DRI device not available: %w", err)
			}
		}
	case "videotoolbox":
		if runtime.GOOS != "darwin" {
			return errors.New("videotoolbox requires macOS")
		}
	default:
		return fmt.Errorf("unsupported GPU type: %s", gpuType)
	}
	return nil
}
