package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, cfg Config) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	InitializeWithLogger(cfg, zap.New(core))
	t.Cleanup(func() { InitializeWithLogger(Config{}, nil) })
	return logs
}

// TestAllCategoriesLog tests that every category writes when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	logs := observe(t, Config{DebugMode: true, Level: "debug"})

	categories := []Category{
		CategoryBoot,
		CategoryStore,
		CategoryEngine,
		CategoryRules,
		CategoryIngest,
		CategoryWatch,
		CategoryMetrics,
		CategoryAudit,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}

	if got, want := logs.Len(), len(categories)*4; got != want {
		t.Fatalf("expected %d entries, got %d", want, got)
	}

	for _, cat := range categories {
		named := logs.FilterLoggerName(string(cat))
		if named.Len() != 4 {
			t.Errorf("category %s: expected 4 entries, got %d", cat, named.Len())
		}
	}
}

func TestConvenienceFunctions(t *testing.T) {
	logs := observe(t, Config{DebugMode: true})

	Boot("boot %d", 1)
	Store("store %d", 2)
	Engine("engine %d", 3)
	Rules("rules %d", 4)
	Ingest("ingest %d", 5)
	Watch("watch %d", 6)

	msgs := make([]string, 0, logs.Len())
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	joined := strings.Join(msgs, "|")
	for _, want := range []string{"boot 1", "store 2", "engine 3", "rules 4", "ingest 5", "watch 6"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %q", want, joined)
		}
	}
}

// TestDebugModeDisabled tests that nothing is written when debug_mode is false
func TestDebugModeDisabled(t *testing.T) {
	logs := observe(t, Config{DebugMode: false})

	if IsCategoryEnabled(CategoryEngine) {
		t.Fatal("categories should be disabled")
	}
	Get(CategoryEngine).Error("should not appear")
	Engine("nor this")

	if logs.Len() != 0 {
		t.Fatalf("expected no entries in production mode, got %d", logs.Len())
	}
}

func TestCategoryFilter(t *testing.T) {
	logs := observe(t, Config{
		DebugMode:  true,
		Categories: map[string]bool{"store": false, "engine": true},
	})

	StoreDebug("hidden")
	Store("hidden")
	Engine("visible")
	Ingest("visible by default")

	if IsCategoryEnabled(CategoryStore) {
		t.Error("store category should be disabled")
	}
	if logs.FilterLoggerName("store").Len() != 0 {
		t.Error("store entries leaked through the filter")
	}
	if logs.FilterLoggerName("engine").Len() != 1 {
		t.Error("engine entry missing")
	}
	if logs.FilterLoggerName("ingest").Len() != 1 {
		t.Error("unlisted category should default to enabled")
	}
}

func TestWithContext(t *testing.T) {
	logs := observe(t, Config{DebugMode: true})

	Get(CategoryEngine).WithContext(map[string]interface{}{"stratum": 2}).Info("fixpoint reached")

	entries := logs.FilterMessage("fixpoint reached").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["stratum"]; got != int64(2) {
		t.Errorf("expected stratum=2 context, got %v (%T)", got, got)
	}
}

func TestTimerThreshold(t *testing.T) {
	logs := observe(t, Config{DebugMode: true, Level: "debug"})

	timer := StartTimer(CategoryEngine, "slow op")
	time.Sleep(5 * time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Millisecond)

	if elapsed < 5*time.Millisecond {
		t.Errorf("elapsed %v shorter than the sleep", elapsed)
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Error("expected a warning for exceeding the threshold")
	}
}

func TestAuditMangleFact(t *testing.T) {
	fact := MangleFact(AuditEvent{
		Type:      AuditEvalComplete,
		SessionID: "s1",
		Args:      []interface{}{12, 3, 4, 1500 * time.Millisecond},
	})
	if fact != `eval_complete("s1", 12, 3, 4, 1500).` {
		t.Errorf("unexpected fact: %s", fact)
	}

	logs := observe(t, Config{DebugMode: true})
	Audit("s2").Inconsistency("disjoint-classes")
	entries := logs.FilterLoggerName("audit").All()
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["fact"]; got != `inconsistency("s2", "disjoint-classes").` {
		t.Errorf("unexpected audit fact field: %v", got)
	}
}

func TestInitializeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "semkb.log")
	if err := Initialize(Config{DebugMode: true, Level: "info", Format: "json", File: path}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { InitializeWithLogger(Config{}, nil) })

	Engine("written to file")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestInitializeRejectsBadLevel(t *testing.T) {
	if err := Initialize(Config{DebugMode: true, Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
