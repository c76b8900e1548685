// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer Sync(logger) //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer Sync(logger) //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

func TestForRunAddsField(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	ForRun(zap.New(core), "run-123").Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["run_id"]; got != "run-123" {
		t.Fatalf("expected run_id field, got %v", got)
	}
}

func TestSyncNop(t *testing.T) {
	t.Parallel()

	if err := Sync(zap.NewNop()); err != nil {
		t.Fatalf("Sync(nop) error = %v", err)
	}
}
