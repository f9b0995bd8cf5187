package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		Setup(tt.level, "json")
		if got := zerolog.GlobalLevel(); got != tt.want {
			t.Errorf("Setup(%q): global level = %v, want %v", tt.level, got, tt.want)
		}
	}
}
