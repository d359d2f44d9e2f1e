// Package testutil provides helpers shared by composeguard tests.
//
// It includes:
//   - CaptureOutput and CaptureStderr for asserting on CLI output
//   - TempDir for a scratch directory removed after the test
//   - WriteFile and ReadFile for compose fixtures on disk
//
// All helpers call t.Helper() so failures point at the calling test.
//
// Example usage:
//
//	func TestPatchWrite(t *testing.T) {
//	    dir := testutil.TempDir(t)
//	    path := testutil.WriteFile(t, dir, "compose.yaml", compose.SampleVulnerable)
//
//	    output := testutil.CaptureOutput(t, func() error {
//	        return run([]string{"patch", "--write", path})
//	    })
//	    if !strings.Contains(testutil.ReadFile(t, path), "read_only: true") {
//	        t.Error("expected hardened file")
//	    }
//	}
package testutil
