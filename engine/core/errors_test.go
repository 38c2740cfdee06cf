package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapStage(t *testing.T) {
	if WrapStage(StageSubmit, nil) != nil {
		t.Fatal("nil error must stay nil")
	}

	inner := fmt.Errorf("vkQueueSubmit: %w", ErrDeviceLost)
	err := WrapStage(StageSubmit, inner)

	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %T", err)
	}
	if se.Stage != StageSubmit {
		t.Errorf("stage = %s, want %s", se.Stage, StageSubmit)
	}
	if !errors.Is(err, ErrDeviceLost) {
		t.Error("kind lost through wrapping")
	}
	if !IsFatal(err) {
		t.Error("device loss must be fatal")
	}

	again := WrapStage(StagePresent, err)
	if !errors.As(again, &se) || se.Stage != StageSubmit {
		t.Error("already staged errors keep their original stage")
	}
}

func TestStageErrorMessage(t *testing.T) {
	err := WrapStage(StageAcquire, ErrSwapchain)
	want := "acquisition failed: swapchain error"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) err = %v", tt.in, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ParseLogLevel(%q) should wrap ErrInvalidConfig", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
