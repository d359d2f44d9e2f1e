// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package compose

import (
	"fmt"
	"regexp"
	"strings"
)

// Field names recognized on a service.
const (
	FieldPrivileged  = "privileged"
	FieldNetworkMode = "network_mode"
	FieldPID         = "pid"
	FieldIPC         = "ipc"
	FieldUTS         = "uts"
	FieldVolumes     = "volumes"
	FieldSecurityOpt = "security_opt"
	FieldUser        = "user"
	FieldReadOnly    = "read_only"
)

// Well-known values compared against service fields.
const (
	HostValue          = "host"
	DockerSocketPath   = "/var/run/docker.sock"
	SeccompUnconfined  = "seccomp:unconfined"
	AppArmorUnconfined = "apparmor:unconfined"
)

var (
	hostRootMountPattern = regexp.MustCompile(`^\s*/:/`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// Service is a named view over one service mapping.
type Service struct {
	Name   string
	Fields map[string]any
}

// NormalizeSecurityOpt lower-cases s and strips all whitespace.
func NormalizeSecurityOpt(s string) string {
	return whitespacePattern.ReplaceAllString(strings.ToLower(s), "")
}

// IsHostRootMount reports whether a volume string mounts the host root directory.
func IsHostRootMount(volume string) bool {
	return hostRootMountPattern.MatchString(strings.TrimSpace(volume))
}

// Has reports whether the service declares key, whatever its value.
func (s Service) Has(key string) bool {
	_, ok := s.Fields[key]
	return ok
}

// Privileged reports whether privileged is exactly true.
func (s Service) Privileged() bool {
	return s.boolField(FieldPrivileged)
}

// ReadOnly reports whether read_only is exactly true.
func (s Service) ReadOnly() bool {
	return s.boolField(FieldReadOnly)
}

// HasUser reports whether a user key is present.
func (s Service) HasUser() bool {
	return s.Has(FieldUser)
}

// SharesHostNamespace reports whether field (network_mode, pid, ipc or uts)
// is set to host, ignoring case.
func (s Service) SharesHostNamespace(field string) bool {
	return strings.EqualFold(s.stringField(field), HostValue)
}

// MountsDockerSocket reports whether any volume mounts the Docker socket.
func (s Service) MountsDockerSocket() bool {
	for _, v := range s.Volumes() {
		if strings.Contains(v, DockerSocketPath) {
			return true
		}
	}
	return false
}

// MountsHostRoot reports whether any volume mounts the host root directory.
func (s Service) MountsHostRoot() bool {
	for _, v := range s.Volumes() {
		if IsHostRootMount(v) {
			return true
		}
	}
	return false
}

// HasSecurityOpt reports whether any security_opt entry normalizes to opt.
func (s Service) HasSecurityOpt(opt string) bool {
	want := NormalizeSecurityOpt(opt)
	for _, o := range s.SecurityOpts() {
		if NormalizeSecurityOpt(o) == want {
			return true
		}
	}
	return false
}

// Volumes returns the volume entries as strings. A non-list value yields nil.
func (s Service) Volumes() []string {
	return s.listField(FieldVolumes)
}

// SecurityOpts returns the security_opt entries as strings. A non-list value yields nil.
func (s Service) SecurityOpts() []string {
	return s.listField(FieldSecurityOpt)
}

func (s Service) boolField(key string) bool {
	b, ok := s.Fields[key].(bool)
	return ok && b
}

func (s Service) stringField(key string) string {
	v, ok := s.Fields[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

func (s Service) listField(key string) []string {
	items, ok := s.Fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil, map[string]any, map[any]any, []any:
			// Long-syntax entries have no short-form text to match or remove.
			out = append(out, "")
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
