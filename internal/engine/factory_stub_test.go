//go:build !whispercpp

package engine

import (
	"errors"
	"testing"

	"whisperdesk/internal/config"
)

// TestNewFallsBackWithoutNative checks the stub fallback when the backend is not built.
func TestNewFallsBackWithoutNative(t *testing.T) {
	e, err := New(config.EngineConfig{Name: "whisper"}, nil)
	if !errors.Is(err, ErrNativeEngineUnavailable) {
		t.Fatalf("err = %v, want %v", err, ErrNativeEngineUnavailable)
	}
	if _, ok := e.(*StubEngine); !ok {
		t.Fatalf("engine type = %T, want *StubEngine", e)
	}
	if NativeAvailable() {
		t.Fatal("NativeAvailable should be false")
	}
}
