// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package rules

import (
	"strings"

	"github.com/jongio/composeguard/compose"
	"github.com/jongio/composeguard/yamlutil"
)

// Rule is one entry of the catalogue. All fields except Match and the line
// matcher are plain data shared by every finding the rule produces.
type Rule struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Severity  Severity `json:"severity"`
	Priority  int      `json:"priority"`
	Field     string   `json:"field"`
	Impact    string   `json:"impact"`
	Exploit   string   `json:"exploit"`
	Fix       string   `json:"fix"`
	FixedCode string   `json:"fixedCode"`
	Reference string   `json:"reference,omitempty"`

	// SearchText is the needle used to attribute a finding to a line.
	// Empty means the service declaration line is used.
	SearchText string `json:"-"`

	// Match reports whether the service violates the rule.
	Match func(svc compose.Service) bool `json:"-"`

	// matchLine tests a trimmed, non-comment line inside the service block.
	matchLine func(trimmed string) bool
	// declFallback attributes the finding to the service declaration when
	// no line matches, for rules fired by an absent key.
	declFallback bool
}

// Reference documentation.
const (
	refPrivileged  = "https://docs.docker.com/reference/compose-file/services/#privileged"
	refVolumes     = "https://docs.docker.com/reference/compose-file/services/#volumes"
	refNetworkMode = "https://docs.docker.com/reference/compose-file/services/#network_mode"
	refPID         = "https://docs.docker.com/reference/compose-file/services/#pid"
	refIPC         = "https://docs.docker.com/reference/compose-file/services/#ipc"
	refUTS         = "https://docs.docker.com/reference/compose-file/services/#uts"
	refSeccomp     = "https://docs.docker.com/engine/security/seccomp/"
	refAppArmor    = "https://docs.docker.com/engine/security/apparmor/"
	refUser        = "https://cheatsheetseries.owasp.org/cheatsheets/Docker_Security_Cheat_Sheet.html#rule-2-set-a-user"
	refReadOnly    = "https://cheatsheetseries.owasp.org/cheatsheets/Docker_Security_Cheat_Sheet.html#rule-8-set-filesystem-and-volumes-to-read-only"
)

// keyLine matches a field line whose key is field.
func keyLine(field string) func(string) bool {
	prefix := field + ":"
	return func(trimmed string) bool {
		return strings.HasPrefix(trimmed, prefix)
	}
}

// containsLine matches any line containing needle.
func containsLine(needle string) func(string) bool {
	return func(trimmed string) bool {
		return strings.Contains(trimmed, needle)
	}
}

// securityOptLine matches a line whose normalized text contains opt, so
// "- seccomp : unconfined" still matches.
func securityOptLine(opt string) func(string) bool {
	return func(trimmed string) bool {
		return strings.Contains(compose.NormalizeSecurityOpt(trimmed), opt)
	}
}

// hostRootLine matches a list item that mounts the host root.
func hostRootLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "-") && compose.IsHostRootMount(yamlutil.ListItemValue(trimmed))
}

func namespaceRule(field string) func(compose.Service) bool {
	return func(svc compose.Service) bool {
		return svc.SharesHostNamespace(field)
	}
}

func securityOptRule(opt string) func(compose.Service) bool {
	return func(svc compose.Service) bool {
		return svc.HasSecurityOpt(opt)
	}
}

// catalogue is ordered by evaluation order within a service.
var catalogue = []Rule{
	{
		ID:         "privileged",
		Title:      "Privileged Mode Enabled",
		Severity:   SeverityCritical,
		Priority:   1,
		Field:      compose.FieldPrivileged,
		Impact:     "Container runs with full root capabilities on the host, effectively disabling container isolation.",
		Exploit:    "An attacker can access host devices, mount filesystems, and potentially escape to the host with full privileges.",
		Fix:        "Avoid privileged containers. Prefer narrowly scoped capabilities, read-only mounts, and tighter runtime profiles.",
		FixedCode:  "# Prefer removing privileged. If needed, switch to minimal caps:\ncap_drop:\n  - ALL\ncap_add:\n  - NET_BIND_SERVICE",
		Reference:  refPrivileged,
		SearchText: compose.FieldPrivileged + ":",
		Match:      compose.Service.Privileged,
		matchLine:  keyLine(compose.FieldPrivileged),
	},
	{
		ID:         "docker-socket",
		Title:      "Docker Socket Exposed",
		Severity:   SeverityCritical,
		Priority:   1,
		Field:      compose.FieldVolumes,
		Impact:     "Mounting the Docker socket effectively grants root-equivalent control of the host via the Docker daemon.",
		Exploit:    "An attacker can start privileged containers, mount the host filesystem, and obtain a host root shell.",
		Fix:        "Avoid mounting the Docker socket. If you must, isolate to a dedicated host, limit who can reach it, and consider proxying with authentication.",
		FixedCode:  "# Remove this mount:\n# - /var/run/docker.sock:/var/run/docker.sock",
		Reference:  refVolumes,
		SearchText: compose.DockerSocketPath,
		Match:      compose.Service.MountsDockerSocket,
		matchLine:  containsLine(compose.DockerSocketPath),
	},
	{
		ID:         "host-root-mount",
		Title:      "Host Root Mounted",
		Severity:   SeverityCritical,
		Priority:   1,
		Field:      compose.FieldVolumes,
		Impact:     "Mounting the host root filesystem allows reading/writing any host file (SSH keys, configs, binaries).",
		Exploit:    "An attacker can modify /etc, add persistence, read secrets, or backdoor the host.",
		Fix:        "Mount only the specific directory you need and prefer read-only. Avoid host-root mounts entirely for app containers.",
		FixedCode:  "# Prefer narrow, read-only mounts:\nvolumes:\n  - ./app-data:/data:ro\n  - ./config:/config:ro",
		Reference:  refVolumes,
		SearchText: "/:/",
		Match:      compose.Service.MountsHostRoot,
		matchLine:  hostRootLine,
	},
	{
		ID:         "host-network",
		Title:      "Host Network Mode",
		Severity:   SeverityHigh,
		Priority:   2,
		Field:      compose.FieldNetworkMode,
		Impact:     "Container shares the host network stack, removing network isolation and exposing host-local services.",
		Exploit:    "An attacker may access localhost-only services and bind to ports directly on the host.",
		Fix:        "Prefer bridge networking with explicit port mappings.",
		FixedCode:  "# Remove network_mode: host\nports:\n  - \"8080:80\"",
		Reference:  refNetworkMode,
		SearchText: compose.FieldNetworkMode + ":",
		Match:      namespaceRule(compose.FieldNetworkMode),
		matchLine:  keyLine(compose.FieldNetworkMode),
	},
	{
		ID:         "host-pid",
		Title:      "Host PID Namespace Shared",
		Severity:   SeverityHigh,
		Priority:   2,
		Field:      compose.FieldPID,
		Impact:     "Container can see and potentially interact with host processes via /proc.",
		Exploit:    "An attacker may enumerate host processes and attempt attacks against them.",
		Fix:        "Remove PID namespace sharing unless you are running a dedicated monitoring agent that explicitly requires it.",
		FixedCode:  "# Remove:\n# pid: host",
		Reference:  refPID,
		SearchText: compose.FieldPID + ":",
		Match:      namespaceRule(compose.FieldPID),
		matchLine:  keyLine(compose.FieldPID),
	},
	{
		ID:         "host-ipc",
		Title:      "Host IPC Namespace Shared",
		Severity:   SeverityMedium,
		Priority:   3,
		Field:      compose.FieldIPC,
		Impact:     "Container shares IPC with the host, increasing risk of shared-memory and IPC-based information exposure.",
		Exploit:    "An attacker may access shared memory segments or message queues used by host processes.",
		Fix:        "Remove IPC namespace sharing unless explicitly required for your workload.",
		FixedCode:  "# Remove:\n# ipc: host",
		Reference:  refIPC,
		SearchText: compose.FieldIPC + ":",
		Match:      namespaceRule(compose.FieldIPC),
		matchLine:  keyLine(compose.FieldIPC),
	},
	{
		ID:         "host-uts",
		Title:      "Host UTS Namespace Shared",
		Severity:   SeverityLow,
		Priority:   4,
		Field:      compose.FieldUTS,
		Impact:     "Container shares hostname/domain with the host (minor information disclosure / tampering risk).",
		Exploit:    "In some configurations, hostname changes may affect the host namespace.",
		Fix:        "Remove UTS namespace sharing unless required.",
		FixedCode:  "# Remove:\n# uts: host",
		Reference:  refUTS,
		SearchText: compose.FieldUTS + ":",
		Match:      namespaceRule(compose.FieldUTS),
		matchLine:  keyLine(compose.FieldUTS),
	},
	{
		ID:         "seccomp-unconfined",
		Title:      "Seccomp Disabled",
		Severity:   SeverityMedium,
		Priority:   3,
		Field:      compose.FieldSecurityOpt,
		Impact:     "Syscall filtering is disabled, allowing a wider set of dangerous system calls.",
		Exploit:    "An attacker may leverage expanded syscall access to escalate privileges or bypass controls in some environments.",
		Fix:        "Remove seccomp:unconfined to use the default profile or an approved custom one.",
		FixedCode:  "# Remove:\n# - seccomp:unconfined",
		Reference:  refSeccomp,
		SearchText: compose.SeccompUnconfined,
		Match:      securityOptRule(compose.SeccompUnconfined),
		matchLine:  securityOptLine(compose.SeccompUnconfined),
	},
	{
		ID:         "apparmor-unconfined",
		Title:      "AppArmor Disabled",
		Severity:   SeverityMedium,
		Priority:   3,
		Field:      compose.FieldSecurityOpt,
		Impact:     "Mandatory Access Control policy is disabled, removing an important hardening layer.",
		Exploit:    "An attacker may perform actions that would normally be constrained by policy.",
		Fix:        "Remove apparmor:unconfined to use the default profile or an approved custom one.",
		FixedCode:  "# Remove:\n# - apparmor:unconfined",
		Reference:  refAppArmor,
		SearchText: compose.AppArmorUnconfined,
		Match:      securityOptRule(compose.AppArmorUnconfined),
		matchLine:  securityOptLine(compose.AppArmorUnconfined),
	},
	{
		ID:           "no-user",
		Title:        "Running as Root (No User Set)",
		Severity:     SeverityMedium,
		Priority:     3,
		Field:        compose.FieldUser,
		Impact:       "If the container is compromised, attacker gets root inside the container by default.",
		Exploit:      "Root inside the container often makes breakout chains easier when combined with misconfigurations.",
		Fix:          "Set a non-root user that matches your image/app requirements (avoid breaking writes/permissions).",
		FixedCode:    "# Example (choose a user that exists in your image):\nuser: \"1000:1000\"",
		Reference:    refUser,
		Match:        func(svc compose.Service) bool { return !svc.HasUser() },
		declFallback: true,
	},
	{
		ID:           "writable-rootfs",
		Title:        "Root Filesystem Not Read-Only",
		Severity:     SeverityLow,
		Priority:     4,
		Field:        compose.FieldReadOnly,
		Impact:       "Writable filesystem makes persistence and tool installation easier after compromise.",
		Exploit:      "An attacker can drop binaries, modify configs, or stash payloads on disk.",
		Fix:          "Set read_only: true and mount necessary write paths using tmpfs or explicit volumes.",
		FixedCode:    "read_only: true\ntmpfs:\n  - /tmp",
		Reference:    refReadOnly,
		SearchText:   compose.FieldReadOnly + ":",
		Match:        func(svc compose.Service) bool { return !svc.ReadOnly() },
		matchLine:    keyLine(compose.FieldReadOnly),
		declFallback: true,
	},
}

// Catalogue returns a copy of every rule in evaluation order.
func Catalogue() []Rule {
	out := make([]Rule, len(catalogue))
	copy(out, catalogue)
	return out
}

// Lookup finds a rule by ID or, failing that, by case-insensitive title.
func Lookup(id string) (Rule, bool) {
	for _, r := range catalogue {
		if r.ID == id {
			return r, true
		}
	}
	for _, r := range catalogue {
		if strings.EqualFold(r.Title, id) {
			return r, true
		}
	}
	return Rule{}, false
}
