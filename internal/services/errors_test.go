package services_test

import (
	"errors"
	"strings"
	"testing"

	"lootwatch/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternal, "search", "fetch", "page failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"search", "fetch", "page failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestRetryable(t *testing.T) {
	configErr := services.Wrap(services.ErrConfiguration, "stash", "resolve tabs", "no tabs matched", nil)
	if services.Retryable(configErr) {
		t.Fatal("configuration errors should not be retryable")
	}
	transientErr := services.Wrap(services.ErrTransient, "dispatch", "send", "timeout", errors.New("io"))
	if !services.Retryable(transientErr) {
		t.Fatal("transient errors should be retryable")
	}
	if !services.Retryable(nil) {
		t.Fatal("nil error should be retryable")
	}
}
