package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jongio/composeguard/analysis"
	"github.com/jongio/composeguard/compose"
	"github.com/jongio/composeguard/config"
	"github.com/jongio/composeguard/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const privilegedSocket = `services:
  app:
    image: nginx
    privileged: true
    volumes:
      - /var/run/docker.sock:/var/run/docker.sock
`

const hardened = `services:
  app:
    image: nginx
    user: "1000:1000"
    read_only: true
`

// isolate runs the test in an empty directory with no composeguard
// environment overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, env := range []string{config.EnvOutput, config.EnvFailOn, config.EnvCacheDir, "COMPOSEGUARD_DEBUG"} {
		t.Setenv(env, "")
	}
	return dir
}

// cli runs the command line with stdin and returns stdout and the exit code.
func cli(t *testing.T, stdin string, args ...string) (string, int) {
	t.Helper()
	var code int
	out := testutil.CaptureOutput(t, func() error {
		code = run(append(args, "--no-cache"), strings.NewReader(stdin))
		return nil
	})
	return out, code
}

func TestScanExitCodes(t *testing.T) {
	dir := isolate(t)
	vulnerable := testutil.WriteFile(t, dir, "vulnerable.yaml", privilegedSocket)
	clean := testutil.WriteFile(t, dir, "clean.yaml", hardened)

	out, code := cli(t, "", "scan", vulnerable)
	assert.Equal(t, ExitFindings, code)
	assert.Contains(t, out, "53/100")
	assert.Contains(t, out, "[privileged]")

	_, code = cli(t, "", "scan", vulnerable, "--fail-on", "none")
	assert.Equal(t, 0, code)

	out, code = cli(t, "", "scan", clean)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "No security issues found")
}

func TestScanFailOnThreshold(t *testing.T) {
	isolate(t)

	// Only medium and low findings.
	doc := "services:\n  app:\n    image: nginx\n"

	_, code := cli(t, doc, "scan")
	assert.Equal(t, 0, code, "default threshold is high")

	_, code = cli(t, doc, "scan", "--fail-on", "medium")
	assert.Equal(t, ExitFindings, code)

	_, code = cli(t, doc, "scan", "--fail-on", "bogus")
	assert.Equal(t, ExitError, code)
}

func TestScanStdinJSON(t *testing.T) {
	isolate(t)

	out, code := cli(t, privilegedSocket, "scan", "-", "-o", "json", "--fail-on", "none")
	require.Equal(t, 0, code)

	var report analysis.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 53, report.Score)
	assert.Equal(t, 2, report.Counts.Critical)
}

func TestScanSARIF(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteFile(t, dir, "compose.yaml", privilegedSocket)

	out, code := cli(t, "", "scan", path, "-o", "sarif")
	assert.Equal(t, ExitFindings, code)

	var doc struct {
		Version string            `json:"version"`
		Runs    []json.RawMessage `json:"runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "2.1.0", doc.Version)
	assert.Len(t, doc.Runs, 1)
}

func TestScanErrors(t *testing.T) {
	dir := isolate(t)

	_, code := cli(t, "services: [unclosed", "scan")
	assert.Equal(t, ExitError, code)

	_, code = cli(t, "", "scan", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, ExitError, code)

	_, code = cli(t, "", "scan", "-o", "xml")
	assert.Equal(t, ExitError, code)
}

func TestScanParseErrorJSONStillPrinted(t *testing.T) {
	isolate(t)

	out, code := cli(t, "services: [unclosed", "scan", "-o", "json")
	assert.Equal(t, ExitError, code)

	var report analysis.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.ParseError)
}

func TestScanEmptyInput(t *testing.T) {
	isolate(t)

	out, code := cli(t, "", "scan")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Nothing to analyze")
}

func TestPatchStdout(t *testing.T) {
	isolate(t)

	out, code := cli(t, privilegedSocket, "patch")
	require.Equal(t, 0, code)
	assert.Equal(t, analysis.Analyze(privilegedSocket).PatchedText, out)
}

func TestPatchWrite(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteFile(t, dir, "compose.yaml", privilegedSocket)

	var code int
	stderr := testutil.CaptureStderr(t, func() error {
		_, code = cli(t, "", "patch", "--write", "--changes", path)
		return nil
	})
	require.Equal(t, 0, code)
	assert.Contains(t, stderr, "privileged: true")

	patched := testutil.ReadFile(t, path)
	assert.Equal(t, analysis.Analyze(privilegedSocket).PatchedText, patched)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	// A second pass removes nothing.
	out, code := cli(t, "", "patch", "-o", "json", path)
	require.Equal(t, 0, code)
	var result struct {
		Changes []struct {
			Action string `json:"action"`
		} `json:"changes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	for _, c := range result.Changes {
		assert.NotEqual(t, "removed", c.Action)
	}
}

func TestPatchOutFile(t *testing.T) {
	dir := isolate(t)
	src := testutil.WriteFile(t, dir, "compose.yaml", privilegedSocket)
	dst := filepath.Join(dir, "hardened.yaml")

	out, code := cli(t, "", "patch", src, "--out-file", dst)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "hardened.yaml")
	assert.Equal(t, privilegedSocket, testutil.ReadFile(t, src), "source must not change")
	assert.Equal(t, analysis.Analyze(privilegedSocket).PatchedText, testutil.ReadFile(t, dst))
}

func TestPatchErrors(t *testing.T) {
	isolate(t)

	_, code := cli(t, privilegedSocket, "patch", "--write")
	assert.Equal(t, ExitError, code, "--write needs a file")

	_, code = cli(t, "- a\n- list\n", "patch")
	assert.Equal(t, ExitError, code)
}

func TestDiff(t *testing.T) {
	isolate(t)

	out, code := cli(t, privilegedSocket, "diff")
	require.Equal(t, 0, code)

	var marked bool
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "privileged: true") && strings.HasPrefix(line, "!") {
			marked = true
		}
	}
	assert.True(t, marked, "privileged line should be marked:\n%s", out)
}

func TestRules(t *testing.T) {
	isolate(t)

	out, code := cli(t, "", "rules")
	require.Equal(t, 0, code)
	for _, id := range []string{"privileged", "docker-socket", "no-user", "writable-rootfs"} {
		assert.Contains(t, out, id)
	}

	out, code = cli(t, "", "rules", "docker-socket", "-o", "json")
	require.Equal(t, 0, code)
	var rule struct {
		ID       string `json:"id"`
		Severity string `json:"severity"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rule))
	assert.Equal(t, "docker-socket", rule.ID)
	assert.Equal(t, "critical", rule.Severity)

	_, code = cli(t, "", "rules", "nope")
	assert.Equal(t, ExitError, code)
}

func TestRulesOpen(t *testing.T) {
	isolate(t)

	out, code := cli(t, "", "rules", "privileged", "--open", "--browser", "none")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "privileged")

	_, code = cli(t, "", "rules", "--open")
	assert.Equal(t, ExitError, code)

	_, code = cli(t, "", "rules", "privileged", "--open", "--browser", "lynx")
	assert.Equal(t, ExitError, code)
}

func TestSample(t *testing.T) {
	isolate(t)

	out, code := cli(t, "", "sample")
	require.Equal(t, 0, code)
	assert.Equal(t, compose.SampleVulnerable, out)
}

func TestConfigFileAndEnv(t *testing.T) {
	dir := isolate(t)
	testutil.WriteFile(t, dir, config.DefaultFileName, "output: json\nfail_on: none\n")

	out, code := cli(t, privilegedSocket, "scan")
	require.Equal(t, 0, code)
	assert.True(t, json.Valid([]byte(out)), "config output should be JSON:\n%s", out)

	// Environment beats the file, flags beat the environment.
	t.Setenv(config.EnvFailOn, "critical")
	_, code = cli(t, privilegedSocket, "scan")
	assert.Equal(t, ExitFindings, code)

	_, code = cli(t, privilegedSocket, "scan", "--fail-on", "none")
	assert.Equal(t, 0, code)
}

func TestExplicitConfigMissing(t *testing.T) {
	dir := isolate(t)

	_, code := cli(t, "", "rules", "--config", filepath.Join(dir, "absent.yaml"))
	assert.Equal(t, ExitError, code)
}

func TestVersion(t *testing.T) {
	isolate(t)

	out, code := cli(t, "", "version", "--quiet")
	require.Equal(t, 0, code)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out, code = cli(t, "", "version", "-o", "json")
	require.Equal(t, 0, code)
	assert.True(t, json.Valid([]byte(out)))
}

func TestMetadata(t *testing.T) {
	isolate(t)

	out, code := cli(t, "", "metadata")
	require.Equal(t, 0, code)

	var commands []CommandMetadata
	require.NoError(t, json.Unmarshal([]byte(out), &commands))
	names := map[string]bool{}
	for _, c := range commands {
		names[strings.Join(c.Name, " ")] = true
	}
	for _, want := range []string{"scan", "patch", "diff", "rules", "watch", "serve", "mcp", "cache"} {
		assert.True(t, names[want], "missing command %s", want)
	}
	assert.False(t, names["metadata"], "hidden commands are excluded")
}

func TestCacheCommands(t *testing.T) {
	dir := isolate(t)
	cacheDir := filepath.Join(dir, "cache")
	path := testutil.WriteFile(t, dir, "compose.yaml", privilegedSocket)

	runWithCache := func(args ...string) (string, int) {
		var code int
		out := testutil.CaptureOutput(t, func() error {
			code = run(append(args, "--cache-dir", cacheDir), strings.NewReader(""))
			return nil
		})
		return out, code
	}

	_, code := runWithCache("scan", path, "--fail-on", "none")
	require.Equal(t, 0, code)

	out, code := runWithCache("cache", "dir")
	require.Equal(t, 0, code)
	assert.Equal(t, cacheDir, strings.TrimSpace(out))

	out, code = runWithCache("cache", "clear", "-o", "json")
	require.Equal(t, 0, code)
	var cleared map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &cleared))
	assert.Equal(t, 1, cleared["removed"])

	_, code = cli(t, "", "cache", "dir")
	assert.Equal(t, ExitError, code, "--no-cache disables the cache commands")
}
