package alert

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, hooksDir, name, manifest string) {
	t.Helper()

	hookDir := filepath.Join(hooksDir, name)
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatalf("failed to create hook dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(hookDir, "hook.json"), []byte(manifest), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

func TestManager_Discover(t *testing.T) {
	hooksDir := t.TempDir()

	writeManifest(t, hooksDir, "webhook", `{
		"name": "webhook",
		"version": "1.0.0",
		"description": "POST overspeed events to a URL",
		"executable": "webhook.sh",
		"events": ["overspeed"]
	}`)
	writeManifest(t, hooksDir, "logger", `{
		"name": "logger",
		"version": "0.2.0",
		"executable": "logger.sh",
		"events": ["overspeed", "speed"]
	}`)

	m := NewManager(hooksDir)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(m.List()) != 2 {
		t.Fatalf("expected 2 hooks, got %d", len(m.List()))
	}

	hook, err := m.Get("webhook")
	if err != nil {
		t.Fatalf("Get(webhook) error = %v", err)
	}
	if hook.Manifest.Version != "1.0.0" {
		t.Errorf("unexpected version %s", hook.Manifest.Version)
	}
	wantExec := filepath.Join(hooksDir, "webhook", "webhook.sh")
	if hook.Executable != wantExec {
		t.Errorf("executable = %s, want %s", hook.Executable, wantExec)
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope"))
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() on missing dir should be a no-op, got %v", err)
	}
	if len(m.List()) != 0 {
		t.Errorf("expected no hooks, got %d", len(m.List()))
	}
}

func TestManager_Discover_SkipsInvalid(t *testing.T) {
	hooksDir := t.TempDir()

	writeManifest(t, hooksDir, "good", `{"name": "good", "executable": "run.sh"}`)
	writeManifest(t, hooksDir, "bad", `{not json`)

	// A directory without a manifest is skipped too.
	if err := os.MkdirAll(filepath.Join(hooksDir, "empty"), 0755); err != nil {
		t.Fatalf("mkdir error = %v", err)
	}

	m := NewManager(hooksDir)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(m.List()) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(m.List()))
	}
	if _, err := m.Get("good"); err != nil {
		t.Errorf("Get(good) error = %v", err)
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	m := NewManager(t.TempDir())
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	_, err := m.Get("missing")
	if !errors.Is(err, ErrHookNotFound) {
		t.Errorf("expected ErrHookNotFound, got %v", err)
	}
}

func TestManager_Rediscover_Replaces(t *testing.T) {
	hooksDir := t.TempDir()
	writeManifest(t, hooksDir, "first", `{"name": "first", "executable": "run.sh"}`)

	m := NewManager(hooksDir)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(m.List()) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(m.List()))
	}

	if err := os.RemoveAll(filepath.Join(hooksDir, "first")); err != nil {
		t.Fatalf("remove error = %v", err)
	}
	writeManifest(t, hooksDir, "second", `{"name": "second", "executable": "run.sh"}`)

	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if _, err := m.Get("first"); !errors.Is(err, ErrHookNotFound) {
		t.Errorf("stale hook should be gone, got %v", err)
	}
	if _, err := m.Get("second"); err != nil {
		t.Errorf("Get(second) error = %v", err)
	}
}
