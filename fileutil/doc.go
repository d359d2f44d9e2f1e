// Package fileutil reads compose inputs and writes results to disk safely.
//
// # Reading Inputs
//
// ReadInput loads a compose document from a path, or from the supplied
// reader when the path is "-". Paths are checked with security.ValidatePath
// and inputs larger than MaxInputSize are rejected with ErrInputTooLarge.
//
//	text, err := fileutil.ReadInput("docker-compose.yml", os.Stdin)
//
// # Atomic Write Operations
//
// AtomicWriteFile and AtomicWriteJSON write to a temporary file in the target
// directory, sync it, set permissions and rename it into place. The rename
// is retried a few times with a short backoff. On failure the temporary
// file is removed, so the target is never left half written. `patch --write`
// and the report cache both go through these.
//
// # File Permissions
//
//   - DirPermission (0750) for created directories
//   - FilePermission (0644) for JSON written by AtomicWriteJSON
//
// AtomicWriteFile takes an explicit mode so a patched compose file keeps the
// permissions it had.
package fileutil
