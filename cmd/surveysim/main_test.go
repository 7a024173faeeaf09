package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/surveysim/runtime/internal/cli"
)

// testFixturePath returns the path to test fixtures
func testFixturePath(filename string) string {
	return filepath.Join("..", "..", "internal", "config", "testdata", filename)
}

// runCLI runs the command in-process and returns stdout, stderr, and exit code
func runCLI(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer
	oldOut, oldErr := cli.Stdout, cli.Stderr
	cli.Stdout, cli.Stderr = &outBuf, &errBuf
	defer func() { cli.Stdout, cli.Stderr = oldOut, oldErr }()

	// Keep the JSON log lines out of the test output.
	exitCode = execute(append([]string{"--quiet"}, args...))
	return outBuf.String(), errBuf.String(), exitCode
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCLI_Help(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "--help")
	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	for _, cmd := range []string{"validate", "run", "models", "version"} {
		if !strings.Contains(stdout, cmd) {
			t.Errorf("help output missing %q command", cmd)
		}
	}
}

func TestCLI_Version(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "version")
	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if !strings.Contains(stdout, "Version: dev") {
		t.Errorf("unexpected version output %q", stdout)
	}
}

func TestCLI_Models(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "models")
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", exitCode)
	}
	for _, want := range []string{"magnitudeLimit", "sqlite", "sinusoidal", "Activity models"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("models output missing %q:\n%s", want, stdout)
		}
	}
}

func TestCLI_Validate(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		wantCode int
		stderr   string
	}{
		{"valid yaml", "valid-survey.yaml", cli.ExitSuccess, ""},
		{"valid json", "valid-survey.json", cli.ExitSuccess, ""},
		{"parse error", "invalid-json.json", cli.ExitParseError, "Parse errors"},
		{"schema violation", "missing-limit.yaml", cli.ExitValidationError, "Validation errors"},
		{"missing file", "does-not-exist.yaml", cli.ExitParseError, "Parse errors"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, exitCode := runCLI(t, "validate", testFixturePath(tt.file))
			if exitCode != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr: %s)", exitCode, tt.wantCode, stderr)
			}
			if !strings.Contains(stderr, tt.stderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.stderr)
			}
		})
	}
}

func TestLoadConfig_ParentRelativePath(t *testing.T) {
	path := testFixturePath("valid-survey.yaml")
	if !strings.Contains(filepath.ToSlash(path), "../") {
		t.Fatalf("fixture path %q should climb out of the package directory", path)
	}
	pipeline, result, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig(%q) failed: %v", path, err)
	}
	if !filepath.IsAbs(result.FilePath) {
		t.Errorf("FilePath = %q, want absolute", result.FilePath)
	}
	if pipeline.Name != "lsst-demo" {
		t.Errorf("Name = %q, want lsst-demo", pipeline.Name)
	}
}

func TestCLI_ValidateRequiresArgument(t *testing.T) {
	_, stderr, exitCode := runCLI(t, "validate")
	if exitCode != cli.ExitRuntimeError {
		t.Errorf("exit code = %d, want %d", exitCode, cli.ExitRuntimeError)
	}
	if !strings.Contains(stderr, "arg") {
		t.Errorf("stderr = %q, want argument error", stderr)
	}
}

func TestCLI_UnknownLogFormat(t *testing.T) {
	_, _, exitCode := runCLI(t, "--log-format", "xml", "version")
	if exitCode != cli.ExitRuntimeError {
		t.Errorf("exit code = %d, want %d", exitCode, cli.ExitRuntimeError)
	}
}

func surveyConfig(inPath, outPath string) string {
	return `schemaVersion: "1.0.0"
survey:
  name: cli-test
  version: "1.0.0"
  input:
    type: csv
    path: "` + filepath.ToSlash(inPath) + `"
  filters:
    - type: magnitudeLimit
      limit: 24.0
  output:
    type: csv
    path: "` + filepath.ToSlash(outPath) + `"
`
}

func TestCLI_Run(t *testing.T) {
	dir := t.TempDir()
	inPath := writeFile(t, dir, "detections.csv", "ObjID,optFilter,observedPSFMag\nS1,r,21.0\nS2,r,24.0\nS3,g,25.1\n")
	outPath := filepath.Join(dir, "kept.csv")
	cfgPath := writeFile(t, dir, "survey.yaml", surveyConfig(inPath, outPath))

	_, stderr, exitCode := runCLI(t, "run", cfgPath)
	if exitCode != cli.ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", exitCode, stderr)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if want := "ObjID,optFilter,observedPSFMag\nS1,r,21\n"; string(got) != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestCLI_RunDryRun(t *testing.T) {
	dir := t.TempDir()
	inPath := writeFile(t, dir, "detections.csv", "ObjID,optFilter,observedPSFMag\nS1,r,21.0\n")
	outPath := filepath.Join(dir, "kept.csv")
	cfgPath := writeFile(t, dir, "survey.yaml", surveyConfig(inPath, outPath))

	_, _, exitCode := runCLI(t, "run", "--dry-run", cfgPath)
	if exitCode != cli.ExitSuccess {
		t.Fatalf("exit code = %d", exitCode)
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Errorf("dry run wrote %s", outPath)
	}
}

func TestCLI_RunMissingInput(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "survey.yaml", surveyConfig(filepath.Join(dir, "absent.csv"), filepath.Join(dir, "out.csv")))

	_, stderr, exitCode := runCLI(t, "run", cfgPath)
	if exitCode != cli.ExitRuntimeError {
		t.Errorf("exit code = %d, want %d", exitCode, cli.ExitRuntimeError)
	}
	if !strings.Contains(stderr, "Pipeline execution failed") {
		t.Errorf("stderr = %q", stderr)
	}
}
