package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videoSlides/config"
	"videoSlides/core"
	"videoSlides/utils"
)

// MockASR 不依赖任何服务的占位转录
type MockASR struct{}

func (MockASR) Transcribe(ctx context.Context, clip core.AudioClip, language string) (string, error) {
	return fmt.Sprintf("Placeholder transcript from %.0fs to %.0fs", clip.Start, clip.End), nil
}

// WhisperASR OpenAI 兼容的 /audio/transcriptions 接口
type WhisperASR struct {
	cli   *openai.Client
	model string
}

// NewWhisperASR 使用配置中的 api_key / base_url
func NewWhisperASR(cfg *config.Config) *WhisperASR {
	model := cfg.ASR.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperASR{cli: utils.NewOpenAIClient(cfg.APIKey, cfg.BaseURL), model: model}
}

func (w *WhisperASR) Transcribe(ctx context.Context, clip core.AudioClip, language string) (string, error) {
	path, cleanup, err := materializeClip(ctx, clip)
	if err != nil {
		return "", err
	}
	defer cleanup()

	resp, err := w.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Language: primaryLanguage(language),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// LocalWhisperASR 调用本地 Python whisper
type LocalWhisperASR struct {
	ModelSize string
}

const whisperScript = `#!/usr/bin/env python3
# -*- coding: utf-8 -*-
import io
import json
import os
import sys

import torch
import whisper

sys.stdout = io.TextIOWrapper(sys.stdout.buffer, encoding='utf-8')

def main(audio_path, language):
    device = "cuda" if torch.cuda.is_available() else "cpu"
    model = whisper.load_model(os.getenv("WHISPER_MODEL", "base"), device=device)
    opts = {"task": "transcribe", "fp16": torch.cuda.is_available(), "verbose": False}
    if language:
        opts["language"] = language
    result = model.transcribe(audio_path, **opts)
    print(json.dumps({"text": result.get("text", "").strip()}, ensure_ascii=False))

if __name__ == "__main__":
    if len(sys.argv) < 2:
        print("Usage: python whisper_transcribe.py <audio_file> [language]", file=sys.stderr)
        sys.exit(1)
    main(sys.argv[1], sys.argv[2] if len(sys.argv) > 2 else "")
`

func (l LocalWhisperASR) Transcribe(ctx context.Context, clip core.AudioClip, language string) (string, error) {
	path, cleanup, err := materializeClip(ctx, clip)
	if err != nil {
		return "", err
	}
	defer cleanup()

	scriptPath := filepath.Join(filepath.Dir(path), "whisper_transcribe.py")
	if err := os.WriteFile(scriptPath, []byte(whisperScript), 0644); err != nil {
		return "", fmt.Errorf("failed to create whisper script: %w", err)
	}
	defer os.Remove(scriptPath)

	cmd := exec.CommandContext(ctx, "python", scriptPath, path, primaryLanguage(language))
	if l.ModelSize != "" {
		cmd.Env = append(os.Environ(), "WHISPER_MODEL="+l.ModelSize)
	}
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("local whisper failed: %w", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(output, &result); err != nil {
		return "", fmt.Errorf("failed to parse whisper output: %w", err)
	}
	return result.Text, nil
}

// materializeClip 在音轨所在的作业目录写出片段
func materializeClip(ctx context.Context, clip core.AudioClip) (string, func(), error) {
	out := filepath.Join(filepath.Dir(clip.SourcePath),
		fmt.Sprintf("clip_%09.3f_%09.3f.wav", clip.Start, clip.End))
	if err := WriteClipWAV(ctx, clip, out); err != nil {
		return "", func() {}, fmt.Errorf("write audio clip: %w", err)
	}
	return out, func() { os.Remove(out) }, nil
}

// primaryLanguage "fr-CA" -> "fr"，whisper 只接受 ISO-639-1
func primaryLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

// ResilientTranscriber 为每次尝试加超时，失败后按间隔重试
type ResilientTranscriber struct {
	Inner      core.Transcriber
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

type transcribeResult struct {
	text string
	err  error
}

func (r *ResilientTranscriber) Transcribe(ctx context.Context, clip core.AudioClip, language string) (string, error) {
	if clip.Duration() <= 0 {
		return "", nil
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// 首次调用之外再重试 MaxRetries 次
	attempts := 1
	if r.MaxRetries > 0 {
		attempts += r.MaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		text, err := r.transcribeWithTimeout(ctx, clip, language)
		if err == nil {
			logger.Debug("transcription done", "start", clip.Start, "end", clip.End, "attempt", attempt, "elapsed", time.Since(start))
			return text, nil
		}
		lastErr = err
		logger.Warn("transcription attempt failed", "attempt", attempt, "max", attempts, "start", clip.Start, "end", clip.End, "error", err)

		if attempt < attempts && r.RetryDelay > 0 {
			select {
			case <-time.After(r.RetryDelay):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", core.ErrTranscription, ctx.Err())
			}
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %v", core.ErrTranscription, attempts, lastErr)
}

// transcribeWithTimeout 即使底层调用忽略ctx，也会在超时后返回
func (r *ResilientTranscriber) transcribeWithTimeout(ctx context.Context, clip core.AudioClip, language string) (string, error) {
	if r.Timeout <= 0 {
		return r.Inner.Transcribe(ctx, clip, language)
	}
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	resultChan := make(chan transcribeResult, 1)
	go func() {
		text, err := r.Inner.Transcribe(ctx, clip, language)
		resultChan <- transcribeResult{text: text, err: err}
	}()

	select {
	case result := <-resultChan:
		return result.text, result.err
	case <-ctx.Done():
		return "", fmt.Errorf("transcription timeout after %v: %w", r.Timeout, ctx.Err())
	}
}

// PickTranscriber 根据 asr.provider 选择实现，包装超时重试，配置了 cache_dir 时再加缓存
func PickTranscriber(cfg *config.Config, logger *slog.Logger) core.Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	var inner core.Transcriber
	switch cfg.ASR.Provider {
	case "mock":
		inner = MockASR{}
	case "api-whisper":
		if !cfg.HasValidAPI() {
			logger.Warn("API configuration not found for api-whisper, using local whisper")
			inner = LocalWhisperASR{ModelSize: cfg.ASR.ModelSize}
		} else {
			inner = NewWhisperASR(cfg)
		}
	default:
		inner = LocalWhisperASR{ModelSize: cfg.ASR.ModelSize}
	}
	var svc core.Transcriber = &ResilientTranscriber{
		Inner:      inner,
		Timeout:    cfg.ASR.TimeoutDuration(),
		MaxRetries: cfg.ASR.MaxRetries,
		RetryDelay: cfg.ASR.RetryDelayDuration(),
		Logger:     logger,
	}
	if cfg.CacheDir != "" && cfg.ASR.Provider != "mock" {
		svc = &CachingTranscriber{
			Inner:  svc,
			Cache:  NewTranscriptCache(cfg.CacheDir, int64(cfg.CacheMaxMB)<<20),
			Logger: logger,
		}
	}
	return svc
}
