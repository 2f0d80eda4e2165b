package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/biolumen/lumacq/types"
)

// newTestApp creates a cli.App with RunCommand wired up and ExitErrHandler
// suppressed so errors are returned instead of calling os.Exit.
func newTestApp() *cli.App {
	app := cli.NewApp()
	app.Commands = []*cli.Command{RunCommand()}
	app.ExitErrHandler = func(c *cli.Context, err error) {} // suppress os.Exit
	return app
}

// exitCode extracts the exit code from an app.Run error. A nil error is
// exit code 0.
func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var coder cli.ExitCoder
	if !errors.As(err, &coder) {
		t.Fatalf("error is not an ExitCoder: %v", err)
	}
	return coder.ExitCode()
}

func TestSplitModes(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"blue,green", []string{"blue", "green"}},
		{"blue, green, red", []string{"blue", "green", "red"}},
		{"blue", []string{"blue"}},
		{"blue,,green", []string{"blue", "green"}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := splitModes(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("splitModes(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitModes(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestOutcomeToExitCode(t *testing.T) {
	tests := []struct {
		status types.OutcomeStatus
		want   int
	}{
		{types.OutcomeSuccess, exitSuccess},
		{types.OutcomeInvalidConfig, exitInvalidConfig},
		{types.OutcomeDeviceFault, exitDeviceFault},
		{types.OutcomeCanceled, exitCanceled},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := outcomeToExitCode(tt.status); got != tt.want {
				t.Errorf("outcomeToExitCode(%q) = %d, want %d", tt.status, got, tt.want)
			}
		})
	}
}

func TestOutcomeToExitCode_UnknownDefaultsToDeviceFault(t *testing.T) {
	got := outcomeToExitCode(types.OutcomeStatus("unknown_status"))
	if got != exitDeviceFault {
		t.Errorf("unknown status should map to exitDeviceFault (%d), got %d", exitDeviceFault, got)
	}
}

func TestExitCodeValues(t *testing.T) {
	if exitSuccess != 0 {
		t.Errorf("exitSuccess should be 0, got %d", exitSuccess)
	}
	if exitInvalidConfig != 1 {
		t.Errorf("exitInvalidConfig should be 1, got %d", exitInvalidConfig)
	}
	if exitDeviceFault != 2 {
		t.Errorf("exitDeviceFault should be 2, got %d", exitDeviceFault)
	}
	if exitCanceled != 3 {
		t.Errorf("exitCanceled should be 3, got %d", exitCanceled)
	}
}

func TestRunAction_BoundedRunSucceeds(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp()

	err := app.Run([]string{"lumacq", "run",
		"--modes", "blue,green",
		"--frequency", "10",
		"--output-dir", dir,
		"--ticks", "20",
		"--quiet",
	})
	if code := exitCode(t, err); code != exitSuccess {
		t.Fatalf("exit code = %d, want %d (err: %v)", code, exitSuccess, err)
	}

	stacks, globErr := filepath.Glob(filepath.Join(dir, "*"+types.StackExt))
	if globErr != nil {
		t.Fatal(globErr)
	}
	if len(stacks) != 2 {
		t.Errorf("expected 2 stack artifacts, got %d", len(stacks))
	}

	sidecars, globErr := filepath.Glob(filepath.Join(dir, "metadata_*.yaml"))
	if globErr != nil {
		t.Fatal(globErr)
	}
	if len(sidecars) != 1 {
		t.Errorf("expected 1 metadata sidecar, got %d", len(sidecars))
	}
}

func TestRunAction_NoSaveLeavesNoArtifacts(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp()

	err := app.Run([]string{"lumacq", "run",
		"--modes", "blue",
		"--frequency", "10",
		"--output-dir", dir,
		"--ticks", "5",
		"--no-save",
		"--quiet",
	})
	if code := exitCode(t, err); code != exitSuccess {
		t.Fatalf("exit code = %d, want %d (err: %v)", code, exitSuccess, err)
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty output dir with --no-save, got %d entries", len(entries))
	}
}

func TestRunAction_EmptyModesRejected(t *testing.T) {
	app := newTestApp()

	err := app.Run([]string{"lumacq", "run",
		"--frequency", "10",
		"--ticks", "5",
		"--quiet",
	})
	if code := exitCode(t, err); code != exitInvalidConfig {
		t.Errorf("exit code = %d, want %d", code, exitInvalidConfig)
	}
}

func TestRunAction_UnknownModeRejected(t *testing.T) {
	app := newTestApp()

	err := app.Run([]string{"lumacq", "run",
		"--modes", "ultraviolet",
		"--frequency", "10",
		"--ticks", "5",
		"--quiet",
	})
	if code := exitCode(t, err); code != exitInvalidConfig {
		t.Errorf("exit code = %d, want %d", code, exitInvalidConfig)
	}
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("error should mention invalid config, got: %v", err)
	}
}

func TestRunAction_ConfigFileNotFound(t *testing.T) {
	app := newTestApp()

	err := app.Run([]string{"lumacq", "run",
		"--config", "/nonexistent/lumacq.yaml",
		"--quiet",
	})
	if code := exitCode(t, err); code != exitInvalidConfig {
		t.Errorf("exit code = %d, want %d", code, exitInvalidConfig)
	}
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("error should mention config file not found, got: %v", err)
	}
}

func TestRunAction_ConfigFileProvidesRun(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(dir, "lumacq.yaml")
	configContent := "device: sim\nfrequency_hz: 10\nmodes: [blue, green]\noutput:\n  dir: " + outDir + "\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}

	app := newTestApp()
	err := app.Run([]string{"lumacq", "run",
		"--config", configPath,
		"--ticks", "10",
		"--quiet",
	})
	if code := exitCode(t, err); code != exitSuccess {
		t.Fatalf("exit code = %d, want %d (err: %v)", code, exitSuccess, err)
	}

	stacks, globErr := filepath.Glob(filepath.Join(outDir, "*"+types.StackExt))
	if globErr != nil {
		t.Fatal(globErr)
	}
	if len(stacks) != 2 {
		t.Errorf("expected 2 stack artifacts, got %d", len(stacks))
	}
}

func TestRunAction_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}

	// Config says blue+green; the flag narrows the cycle to blue only.
	configPath := filepath.Join(dir, "lumacq.yaml")
	configContent := "frequency_hz: 10\nmodes: [blue, green]\noutput:\n  dir: " + outDir + "\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}

	app := newTestApp()
	err := app.Run([]string{"lumacq", "run",
		"--config", configPath,
		"--modes", "blue",
		"--ticks", "5",
		"--quiet",
	})
	if code := exitCode(t, err); code != exitSuccess {
		t.Fatalf("exit code = %d, want %d (err: %v)", code, exitSuccess, err)
	}

	stacks, globErr := filepath.Glob(filepath.Join(outDir, "*"+types.StackExt))
	if globErr != nil {
		t.Fatal(globErr)
	}
	if len(stacks) != 1 {
		t.Errorf("flag override should leave a single blue stack, got %d", len(stacks))
	}
}
