//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	semver "github.com/blang/semver/v4"
	"gopkg.in/ini.v1"
)

const (
	envProjectRoot = "BST_PROJECT_ROOT"
	envModule      = "BST_MODULE"
	envLogLevel    = "BST_LOG_LEVEL"
	envRevision    = "BST_REVISION"
	envDryRun      = "BST_DRY_RUN"
	envGitTimeout  = "BST_GIT_TIMEOUT"
)

const (
	moduleName           = "TDEditor"
	runTimeout           = 5 * time.Minute
	gitTerminalPromptOff = "GIT_TERMINAL_PROMPT=0"
	authorName           = "bst-integration"
	authorEmail          = "bst-integration@example.com"
)

var summaryPattern = regexp.MustCompile(`^New build number generated: (\d+) @ \w+, \d{2} \w+ \d{4} - \d{2}:\d{2}:\d{2} # ([0-9a-f]+)$`)

func TestIntegrationStampLifecycle(t *testing.T) {
	h := newHarness(t)

	// First run on a fresh project only writes the bootstrap sidecar.
	if stdout, stderr, err := h.runCLI(t, []string{"stamp"}, nil); err == nil {
		t.Fatalf("expected bootstrap failure; stdout=%q stderr=%q", stdout, stderr)
	} else if !strings.Contains(stderr, "bootstrap required") {
		t.Fatalf("expected bootstrap message, stderr=%q", stderr)
	}
	h.assertMissing(t, h.metaPath())
	h.assertExists(t, h.metaPath()+".generated")

	if _, stderr, err := h.runCLI(t, []string{"promote"}, nil); err != nil {
		t.Fatalf("promote failed: %v stderr=%q", err, stderr)
	}

	head := h.git.output(t, "rev-parse", "--short", "HEAD")
	for want := 1; want <= 3; want++ {
		stdout, stderr, err := h.runCLI(t, []string{"stamp"}, nil)
		if err != nil {
			t.Fatalf("stamp #%d failed: %v stderr=%q", want, err, stderr)
		}
		match := summaryPattern.FindStringSubmatch(stdout)
		if match == nil {
			t.Fatalf("unexpected summary %q", stdout)
		}
		if match[1] != fmt.Sprint(want) {
			t.Fatalf("expected build number %d, got %s", want, match[1])
		}
		if match[2] != head {
			t.Fatalf("expected hash %s, got %s", head, match[2])
		}
	}

	record := h.loadRecord(t)
	if got := record.Section("Build").Key("BuildNumber").String(); got != "3" {
		t.Fatalf("expected BuildNumber=3 in record, got %q", got)
	}
	if got := record.Section("Build").Key("GitHash").String(); got != head {
		t.Fatalf("expected GitHash=%s in record, got %q", head, got)
	}

	header := h.readFile(t, h.headerPath())
	for _, want := range []string{
		"#define BUILD_BUILD_NUMBER 3\n",
		fmt.Sprintf("#define BUILD_GIT_HASH %q\n", head),
		"#define BUILD_MINOR_VERSION 1\n",
	} {
		if !strings.Contains(header, want) {
			t.Fatalf("header missing %q:\n%s", want, header)
		}
	}

	stdout, stderr, err := h.runCLI(t, []string{"bump", "minor"}, nil)
	if err != nil {
		t.Fatalf("bump failed: %v stderr=%q", err, stderr)
	}
	v, err := semver.Parse(stdout)
	if err != nil {
		t.Fatalf("bump printed an invalid version %q: %v", stdout, err)
	}
	if v.Major != 0 || v.Minor != 2 || v.Patch != 0 || len(v.Build) != 1 || v.Build[0] != "3" {
		t.Fatalf("unexpected bumped version %s", v)
	}

	if stdout, _, err := h.runCLI(t, []string{"show", "--short"}, nil); err != nil || stdout != "0.2.0+3" {
		t.Fatalf("show --short: stdout=%q err=%v", stdout, err)
	}
}

func TestIntegrationFailureModes(t *testing.T) {
	h := newHarness(t)
	h.writeFile(t, h.metaPath(), "[Version]\nMajor=0\nMinor=1\nPatch=0\n\n[Build]\nBuildNumber=7\nBuildDate=\nBuildTime=\nGitHash=\n")

	// dry run renders without writing
	stdout, stderr, err := h.runCLI(t, []string{"stamp"}, map[string]string{envDryRun: "true", envRevision: "feedbee"})
	if err != nil {
		t.Fatalf("dry run failed: %v stderr=%q", err, stderr)
	}
	if !strings.Contains(stdout, "#define BUILD_BUILD_NUMBER 8") {
		t.Fatalf("dry run output missing header: %q", stdout)
	}
	h.assertMissing(t, h.headerPath())

	// unreachable git leaves the record untouched
	before := h.readFile(t, h.metaPath())
	if stdout, stderr, err := h.runCLI(t, []string{"stamp", "--git-binary", filepath.Join(h.dir, "missing-git")}, nil); err == nil {
		t.Fatalf("expected revision failure; stdout=%q stderr=%q", stdout, stderr)
	}
	if after := h.readFile(t, h.metaPath()); after != before {
		t.Fatalf("record changed after failed stamp:\n%s", after)
	}

	// corrupt counter is reported and nothing is written
	h.writeFile(t, h.metaPath(), "[Version]\nMajor=0\nMinor=1\nPatch=0\n\n[Build]\nBuildNumber=seven\n")
	if stdout, stderr, err := h.runCLI(t, []string{"stamp"}, nil); err == nil {
		t.Fatalf("expected corrupt record failure; stdout=%q stderr=%q", stdout, stderr)
	} else if !strings.Contains(stderr, "BuildNumber") {
		t.Fatalf("expected field name in error, stderr=%q", stderr)
	}
	h.assertMissing(t, h.headerPath())

	// invalid configuration
	if stdout, stderr, err := h.runCLI(t, []string{"stamp"}, map[string]string{envGitTimeout: "later"}); err == nil {
		t.Fatalf("expected invalid timeout failure; stdout=%q stderr=%q", stdout, stderr)
	}
}

type harness struct {
	t   *testing.T
	ctx context.Context
	dir string
	git *gitWorkspace
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	t.Cleanup(cancel)

	dir := t.TempDir()
	w := &gitWorkspace{dir: dir}
	w.run(t, "init", "--quiet")
	w.run(t, "config", "user.name", authorName)
	w.run(t, "config", "user.email", authorEmail)

	h := &harness{t: t, ctx: ctx, dir: dir, git: w}
	h.writeFile(t, filepath.Join(dir, moduleName+".uproject"), "{\n  \"FileVersion\": 3\n}\n")
	w.run(t, "add", ".")
	w.run(t, "commit", "--quiet", "-m", "initial project")
	return h
}

func (h *harness) metaPath() string {
	return filepath.Join(h.dir, "Source", moduleName+".Meta.ini")
}

func (h *harness) headerPath() string {
	return filepath.Join(h.dir, "Source", moduleName, "Public", "GameVersion.generated.h")
}

func (h *harness) runCLI(t *testing.T, args []string, overrides map[string]string) (string, string, error) {
	t.Helper()
	cmd := exec.CommandContext(h.ctx, "go", append([]string{"run", "./cmd/bst"}, args...)...)
	cmd.Dir = projectRoot(t)
	envMap := map[string]string{
		envProjectRoot: h.dir,
		envLogLevel:    "verbose",
	}
	for k, v := range overrides {
		envMap[k] = v
	}
	cmd.Env = append(withoutBSTEnv(os.Environ()), flattenEnv(envMap)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	h.t.Logf("running CLI: bst %s overrides=%v", strings.Join(args, " "), overrides)
	err := cmd.Run()
	stdoutStr := strings.TrimSpace(stdout.String())
	stderrStr := strings.TrimSpace(stderr.String())
	h.t.Logf("CLI result for %v err=%v stdout=%q stderr=%q", args, err, stdoutStr, stderrStr)
	return stdoutStr, stderrStr, err
}

func (h *harness) loadRecord(t *testing.T) *ini.File {
	t.Helper()
	f, err := ini.Load(h.metaPath())
	if err != nil {
		t.Fatalf("loading %s: %v", h.metaPath(), err)
	}
	return f
}

func (h *harness) readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func (h *harness) writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func (h *harness) assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func (h *harness) assertMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected %s to be absent", path)
	}
}

type gitWorkspace struct {
	dir string
}

func (w *gitWorkspace) run(t *testing.T, args ...string) {
	t.Helper()
	_ = w.output(t, args...)
}

func (w *gitWorkspace) output(t *testing.T, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = w.dir
	cmd.Env = append(os.Environ(), gitTerminalPromptOff)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

func projectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("unable to locate go.mod from %s", dir)
		}
		dir = parent
	}
}

func withoutBSTEnv(env []string) []string {
	kept := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "BST_") {
			continue
		}
		kept = append(kept, kv)
	}
	return kept
}

func flattenEnv(values map[string]string) []string {
	result := make([]string, 0, len(values))
	for k, v := range values {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}
