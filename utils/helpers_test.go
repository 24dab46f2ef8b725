package utils

import (
	"testing"
)

func TestParseProbe(t *testing.T) {
	data := []byte(`{
  "streams": [
    {"codec_type": "video", "width": 1280, "height": 720},
    {"codec_type": "audio"}
  ],
  "format": {"duration": "125.480000"}
}`)
	info, err := parseProbe(data)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if info.Width != 1280 || info.Height != 720 || !info.HasAudio || info.Duration != 125.48 {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestParseProbeWithoutVideo(t *testing.T) {
	if _, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`)); err == nil {
		t.Fatal("expected error for audio-only input")
	}
}

func TestGetHardwareAccelArgs(t *testing.T) {
	if args := GetHardwareAccelArgs("nvidia"); len(args) != 2 || args[1] != "cuda" {
		t.Errorf("unexpected nvidia args %v", args)
	}
	if args := GetHardwareAccelArgs("cpu"); len(args) != 0 {
		t.Errorf("cpu should add no args, got %v", args)
	}
	if ResolveGPUType("intel") != "intel" {
		t.Error("explicit gpu type should be kept")
	}
}

func TestNewIDUnique(t *testing.T) {
	if NewID() == NewID() {
		t.Fatal("ids should differ")
	}
}
