package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":    zapcore.DebugLevel,
		" WARNING": zapcore.WarnLevel,
		"error":    zapcore.ErrorLevel,
		"":         zapcore.InfoLevel,
		"verbose":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestZapLoggerWritesObjectField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := newZapLogger(core)

	log.DebugObj("hidden", "k", 1)
	log.WarnObj("cycle skipped", "cycle_meta", map[string]any{"in_flight": true})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry above info, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.WarnLevel || e.Message != "cycle skipped" {
		t.Fatalf("entry = %+v", e)
	}
	if _, ok := e.ContextMap()["cycle_meta"]; !ok {
		t.Fatalf("missing object field: %v", e.ContextMap())
	}
}

func TestPackageHelpersBeforeAndAfterInit(t *testing.T) {
	prev := base
	t.Cleanup(func() { base = prev })

	base = nil
	InfoObj("dropped", "k", "v")

	core, logs := observer.New(zapcore.DebugLevel)
	base = zap.New(core)
	ErrorObj("fetch failed", "error", "timeout")
	if logs.Len() != 1 || logs.All()[0].ContextMap()["error"] != "timeout" {
		t.Fatalf("package helper entries = %+v", logs.All())
	}
}

func TestEnsure(t *testing.T) {
	if _, ok := Ensure(nil).(NopLogger); !ok {
		t.Fatalf("Ensure(nil) should return NopLogger")
	}
	l := newZapLogger(zapcore.NewNopCore())
	if Ensure(l) != Logger(l) {
		t.Fatalf("Ensure should keep a non-nil logger")
	}
}
