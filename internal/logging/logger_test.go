package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"comicreel/internal/logging"
	"comicreel/internal/services"
)

func TestNewWritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "comicreel.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("encode finished", logging.Args(
		logging.String("output", "issue-01.mp4"),
		logging.Int("images", 42),
	)...)

	entry := readJSONLine(t, logPath)
	if entry["level"] != "info" {
		t.Fatalf("expected level info, got %v", entry["level"])
	}
	if entry["msg"] != "encode finished" {
		t.Fatalf("expected message, got %v", entry["msg"])
	}
	if entry["output"] != "issue-01.mp4" {
		t.Fatalf("expected output field, got %v", entry["output"])
	}
	if entry["images"] != float64(42) {
		t.Fatalf("expected images field, got %v", entry["images"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts field")
	}
	if _, ok := entry["source"]; ok {
		t.Fatal("did not expect source at info level")
	}
}

func TestNewAddsSourceInDevelopment(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "comicreel.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{logPath},
		Development: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("probe")

	entry := readJSONLine(t, logPath)
	source, ok := entry["source"].(string)
	if !ok {
		t.Fatalf("expected source field, got %v", entry["source"])
	}
	if !strings.Contains(source, "logger_test.go") {
		t.Fatalf("expected source to point at the call site, got %q", source)
	}
}

func TestNewDefaultsUnknownLevelToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "comicreel.log")

	logger, err := logging.New(logging.Options{
		Level:       "chatty",
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("visible")

	lines := readLines(t, logPath)
	if len(lines) != 1 {
		t.Fatalf("expected one entry, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "visible") {
		t.Fatalf("expected the info entry, got %q", lines[0])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml"})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleFormatPrefixesComponent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "comicreel.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	encoder := logging.NewComponentLogger(logger, "encoder")
	encoder.Info("encoding started", logging.Args(logging.Int("fps", 4))...)

	lines := readLines(t, logPath)
	if len(lines) != 1 {
		t.Fatalf("expected one entry, got %d", len(lines))
	}
	line := lines[0]
	if !strings.Contains(line, " INFO encoder: encoding started") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "fps=4") {
		t.Fatalf("expected flattened attr, got %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be folded into the prefix, got %q", line)
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "comicreel.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "job-1234")
	ctx = services.WithArchive(ctx, "issue-01.cbz")
	ctx = services.WithStage(ctx, "encode")

	logging.WithContext(ctx, logger).Info("stage update")

	entry := readJSONLine(t, logPath)
	if entry["job_id"] != "job-1234" {
		t.Fatalf("expected job_id, got %v", entry["job_id"])
	}
	if entry["archive"] != "issue-01.cbz" {
		t.Fatalf("expected archive, got %v", entry["archive"])
	}
	if entry["stage"] != "encode" {
		t.Fatalf("expected stage, got %v", entry["stage"])
	}
}

func readJSONLine(t *testing.T, path string) map[string]any {
	t.Helper()
	lines := readLines(t, path)
	if len(lines) == 0 {
		t.Fatal("log file is empty")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("parse log entry %q: %v", lines[0], err)
	}
	return entry
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
