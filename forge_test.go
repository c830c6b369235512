package forge

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/nodeforge/forge/scene"
)

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	Logger().Info("hello", "k", "v")
	if !bytes.Contains(buf.Bytes(), []byte("hello")) {
		t.Error("configured logger not used")
	}

	SetLogger(nil)
	if Logger().Enabled(nil, slog.LevelError) {
		t.Error("nil restores the silent logger")
	}
}

func TestClassify(t *testing.T) {
	code, subject := Classify(&scene.Error{Code: scene.CodeCycle, Node: "a"})
	if code != "CYCLE" || subject != "a" {
		t.Errorf("Classify = %s/%s", code, subject)
	}

	wrapped := fmt.Errorf("outer: %w", &scene.Error{Code: scene.CodeSchema, Conn: "c9"})
	code, subject = Classify(wrapped)
	if code != "SCHEMA_ERROR" || subject != "c9" {
		t.Errorf("Classify(wrapped) = %s/%s", code, subject)
	}

	code, subject = Classify(errors.New("plain"))
	if code != "INTERNAL_ERROR" || subject != "" {
		t.Errorf("Classify(plain) = %s/%s", code, subject)
	}
}

// Plan swap logging reports deltas at info level.
func TestPlanSwapLogged(t *testing.T) {
	defer SetLogger(nil)
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	engine, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer engine.Close()
	if err := engine.Apply(encode(t, solidColor())); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("plan swapped")) {
		t.Errorf("swap not logged:\n%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("passesDelta")) {
		t.Error("swap log missing deltas")
	}
}
