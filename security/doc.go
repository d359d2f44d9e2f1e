// Package security validates the file paths composeguard reads and writes.
//
// Compose files arrive from the command line, from MCP tool arguments and
// from the watch loop. Every path is checked before it is opened so a
// request cannot walk out of the directory it was meant to stay in.
//
// # Path Validation
//
//   - ValidatePath rejects empty paths and any ".." segment, before and
//     after cleaning and symlink resolution.
//   - ValidatePathWithinBases additionally requires the resolved path to sit
//     under one of the given base directories. The MCP server uses it to pin
//     tool arguments to the working directory.
//
// # File Permissions
//
// ValidateFilePermissions reports ErrInsecureFilePermissions for
// group- or world-writable files on Unix. The config loader uses it to warn
// about a .composeguard.yaml that other users could edit.
package security
