package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videoSlides/benchmark"
	"videoSlides/config"
	"videoSlides/initialization"
	"videoSlides/processors"
	"videoSlides/utils"
)

const usage = `用法:
  videoSlides serve              启动HTTP服务
  videoSlides video <file>       处理单个视频
  videoSlides folder <dir>       处理目录下的所有视频并合并
  videoSlides benchmark <file>…  测试不同采样步长的分段耗时
  videoSlides config             打印配置说明

配置文件由 CONFIG 指定，默认 config.yaml`

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	if cmd == "config" {
		config.PrintConfigInstructions()
		return
	}

	cfgPath := os.Getenv("CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		config.PrintConfigInstructions()
		os.Exit(1)
	}

	// serve 日志写 stdout；命令行模式结果写 stdout，日志写 stderr
	var logOut io.Writer = os.Stderr
	if cmd == "serve" {
		logOut = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cmd, os.Args[2:], cfg, logger); err != nil {
		logger.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, cfg *config.Config, logger *slog.Logger) error {
	switch cmd {
	case "serve", "video", "folder":
	case "benchmark":
		return runBenchmark(ctx, args, cfg, logger)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if cmd != "serve" && len(args) != 1 {
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("%s requires exactly one argument", cmd)
	}

	sys, err := initialization.NewSystemInitializer(cfg, logger).InitializeSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	switch cmd {
	case "video":
		res, err := sys.Batch.ProcessVideo(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	case "folder":
		report, err := sys.Batch.ProcessFolder(ctx, args[0])
		if perr := printJSON(report); perr != nil {
			return perr
		}
		return err
	default:
		return serve(ctx, cfg, sys, logger)
	}
}

func serve(ctx context.Context, cfg *config.Config, sys *initialization.System, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           sys.Handlers.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runBenchmark(ctx context.Context, videos []string, cfg *config.Config, logger *slog.Logger) error {
	if len(videos) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return errors.New("benchmark requires at least one video")
	}
	if !utils.FFmpegAvailable() {
		return errors.New("ffmpeg/ffprobe not found in PATH")
	}
	if err := utils.EnsureDir(cfg.DataDir); err != nil {
		return err
	}
	gpuType := ""
	if cfg.GPUAcceleration {
		gpuType = utils.ResolveGPUType(cfg.GPUType)
	}
	pb := benchmark.NewPerformanceBenchmark(cfg, processors.NewFFmpegSourceFactory(gpuType, logger), os.Stderr)
	results := pb.Run(ctx, videos, []float64{cfg.Dt / 2, cfg.Dt, cfg.Dt * 2})
	return printJSON(pb.GenerateReport(results))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
