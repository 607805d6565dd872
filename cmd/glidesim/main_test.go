package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/san-kum/glidesim/internal/config"
	"github.com/san-kum/glidesim/internal/storage"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvConfig, "")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "glidesim.yaml")
	if err := os.WriteFile(path, []byte("model:\n  r: 3\nsweep:\n  count: 4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GLIDESIM_SWEEP_COUNT", "6")

	v := config.NewViper()
	v.Set("model.r", 8)

	cfg, err := loadConfig("", path, v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.R != 8 {
		t.Errorf("explicit value should win, got r=%g", cfg.Model.R)
	}
	if cfg.Sweep.Count != 6 {
		t.Errorf("env should override file, got count=%d", cfg.Sweep.Count)
	}
}

func TestLoadConfig_Preset(t *testing.T) {
	isolate(t)

	cfg, err := loadConfig("draggy", "", config.NewViper())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.R != 2 {
		t.Errorf("expected preset r=2, got %g", cfg.Model.R)
	}

	if _, err := loadConfig("nope", "", config.NewViper()); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	isolate(t)
	t.Setenv("GLIDESIM_INTEGRATION_EPS_ABS", "0")

	if _, err := loadConfig("", "", config.NewViper()); err == nil {
		t.Error("expected validation error")
	}
}

func TestBindFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Float64("r", config.DefaultR, "")
	fs.Int("count", config.DefaultCount, "")
	fs.Bool("unbound", false, "")
	bindKey(fs, "r", "model.r")
	bindKey(fs, "count", "sweep.count")

	if err := fs.Parse([]string{"--r", "5", "--unbound"}); err != nil {
		t.Fatal(err)
	}

	v := config.NewViper()
	if err := bindFlags(v, fs); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Sweep.Count = 9
	config.Overlay(cfg, v)

	if cfg.Model.R != 5 {
		t.Errorf("expected r=5, got %g", cfg.Model.R)
	}
	if cfg.Sweep.Count != 9 {
		t.Errorf("unchanged flag overrode value: count=%d", cfg.Sweep.Count)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.Format = "json"
	cfg.Log.Level = "debug"

	var buf bytes.Buffer
	newLogger(&buf, cfg).Debug("hello", "k", 1)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json log line, got %q", buf.String())
	}
	if entry["msg"] != "hello" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestRunCommand_CSV(t *testing.T) {
	isolate(t)

	out, err := execute(t, "run", "--storage", "none", "--count", "3", "--format", "csv")
	if err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v\n%s", err, out)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header and 3 rows, got %d", len(rows))
	}
}

func TestRunCommand_SavesAndLists(t *testing.T) {
	dir := isolate(t)
	data := filepath.Join(dir, "runs")

	out, err := execute(t, "run", "--data", data, "--count", "2")
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 {
		t.Errorf("expected 2 text lines, got %q", out)
	}

	runs, err := storage.New(data).ListRuns(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Count != 2 {
		t.Fatalf("expected one saved run of 2, got %+v", runs)
	}
	id := runs[0].ID

	out, err = execute(t, "list", "--data", data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, id) {
		t.Errorf("list missing %s:\n%s", id, out)
	}

	out, err = execute(t, "show", id, "--data", data, "--format", "csv")
	if err != nil {
		t.Fatal(err)
	}
	if rows, _ := csv.NewReader(strings.NewReader(out)).ReadAll(); len(rows) != 3 {
		t.Errorf("show returned %d rows", len(rows))
	}

	out, err = execute(t, "plot", id, "--data", data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "final x vs launch angle") {
		t.Errorf("plot missing caption:\n%s", out)
	}

	if _, err := execute(t, "rm", id, "--data", data); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "show", id, "--data", data); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected not found after rm, got %v", err)
	}
}

func TestRunCommand_NoSave(t *testing.T) {
	dir := isolate(t)
	data := filepath.Join(dir, "runs")

	if _, err := execute(t, "run", "--data", data, "--count", "1", "--no-save"); err != nil {
		t.Fatal(err)
	}
	runs, err := storage.New(data).ListRuns(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("expected nothing saved, got %d runs", len(runs))
	}
}

func TestRunCommand_InvalidFlag(t *testing.T) {
	isolate(t)

	if _, err := execute(t, "run", "--storage", "none", "--eps-abs", "0"); err == nil {
		t.Error("expected configuration error")
	}
}

func TestOneCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "one", "1", "--path")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "•") {
		t.Errorf("expected drawn path:\n%s", out)
	}

	if _, err := execute(t, "one", "21"); err == nil {
		t.Error("expected out of range error")
	}
	if _, err := execute(t, "one", "x"); err == nil {
		t.Error("expected parse error")
	}
}

func TestInitConfig(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "out.yaml")

	if _, err := execute(t, "--preset", "fine", "init-config", path); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Integration.EpsAbs != 1e-11 {
		t.Errorf("expected preset tolerance, got %g", cfg.Integration.EpsAbs)
	}

	if _, err := execute(t, "init-config", path); err == nil {
		t.Error("expected refusal to overwrite")
	}
	if _, err := execute(t, "init-config", path, "--force"); err != nil {
		t.Errorf("force should overwrite: %v", err)
	}
}

func TestPresetsCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "presets")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range config.ListPresets() {
		if !strings.Contains(out, name) {
			t.Errorf("missing preset %s", name)
		}
	}
}

func TestBenchCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "bench", "--tols", "1e-6,1e-8")
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 3 {
		t.Errorf("expected header and 2 rows:\n%s", out)
	}
}
