package yamlutil

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jongio/composeguard/compose"
)

func mustParse(t *testing.T, text string) *compose.Document {
	t.Helper()
	doc, err := compose.Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func TestPatch(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        string
		wantChanges []Change
	}{
		{
			name: "privileged service with docker socket",
			input: `services:
  web:
    image: nginx
    privileged: true
    volumes:
      - /var/run/docker.sock:/var/run/docker.sock
      - ./data:/data:ro
    ports:
      - "80:80"
`,
			want: `services:
  web:
    image: nginx
    volumes:
      - ./data:/data:ro
    ports:
      - "80:80"
    user: "1000:1000"
    read_only: true
`,
			wantChanges: []Change{
				{Service: "web", Action: ActionRemoved, Line: "privileged: true"},
				{Service: "web", Action: ActionRemoved, Line: "- /var/run/docker.sock:/var/run/docker.sock"},
				{Service: "web", Action: ActionAdded, Line: UserLine},
				{Service: "web", Action: ActionAdded, Line: ReadOnlyLine},
			},
		},
		{
			name: "host namespaces and security options",
			input: `services:
  agent:
    network_mode: Host
    pid: host
    ipc: host
    uts: host
    security_opt:
      - seccomp:unconfined
      - "apparmor : unconfined"
      - no-new-privileges:true
    user: app
    read_only: true
`,
			want: `services:
  agent:
    security_opt:
      - no-new-privileges:true
    user: app
    read_only: true
`,
			wantChanges: []Change{
				{Service: "agent", Action: ActionRemoved, Line: "network_mode: Host"},
				{Service: "agent", Action: ActionRemoved, Line: "pid: host"},
				{Service: "agent", Action: ActionRemoved, Line: "ipc: host"},
				{Service: "agent", Action: ActionRemoved, Line: "uts: host"},
				{Service: "agent", Action: ActionRemoved, Line: "- seccomp:unconfined"},
				{Service: "agent", Action: ActionRemoved, Line: `- "apparmor : unconfined"`},
			},
		},
		{
			name: "comments and blank lines are kept in place",
			input: `# top comment
services:

  # the app
  app:
    image: alpine   # pinned later
    privileged: true
    # trailing comment

volumes:
  data:
`,
			want: `# top comment
services:

  # the app
  app:
    image: alpine   # pinned later
    user: "1000:1000"
    read_only: true
    # trailing comment

volumes:
  data:
`,
			wantChanges: []Change{
				{Service: "app", Action: ActionRemoved, Line: "privileged: true"},
				{Service: "app", Action: ActionAdded, Line: UserLine},
				{Service: "app", Action: ActionAdded, Line: ReadOnlyLine},
			},
		},
		{
			name: "service with every field removed gets additions after its key",
			input: `services:
  only:
    privileged: true
  next:
    user: "0"
    read_only: true
`,
			want: `services:
  only:
    user: "1000:1000"
    read_only: true
  next:
    user: "0"
    read_only: true
`,
			wantChanges: []Change{
				{Service: "only", Action: ActionRemoved, Line: "privileged: true"},
				{Service: "only", Action: ActionAdded, Line: UserLine},
				{Service: "only", Action: ActionAdded, Line: ReadOnlyLine},
			},
		},
		{
			name: "textual matches outside the flagged block are kept",
			input: `services:
  worker:
    privileged: false
    network_mode: bridge
    environment:
      - DOCKER_HOST=unix:///var/run/docker.sock
    user: app
    read_only: true
`,
			want: `services:
  worker:
    privileged: false
    network_mode: bridge
    environment:
      - DOCKER_HOST=unix:///var/run/docker.sock
    user: app
    read_only: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Patch(tt.input, mustParse(t, tt.input))
			if got.PatchedText != tt.want {
				t.Errorf("PatchedText mismatch\ngot:\n%s\nwant:\n%s", got.PatchedText, tt.want)
			}
			if !reflect.DeepEqual(got.Changes, tt.wantChanges) {
				t.Errorf("Changes = %#v\nwant %#v", got.Changes, tt.wantChanges)
			}
		})
	}
}

func TestPatchWithoutServices(t *testing.T) {
	inputs := []string{
		"name: app\nvolumes:\n  data:\n",
		"services: []\n",
	}
	for _, input := range inputs {
		got := Patch(input, mustParse(t, input))
		if got.PatchedText != input {
			t.Errorf("expected %q unchanged, got %q", input, got.PatchedText)
		}
		if len(got.Changes) != 0 {
			t.Errorf("expected no changes for %q, got %v", input, got.Changes)
		}
	}

	if got := Patch("anything", nil); got.PatchedText != "anything" || got.Changes != nil {
		t.Errorf("nil document should pass text through, got %#v", got)
	}
}

func TestPatchKeepsServicesIndependent(t *testing.T) {
	input := `services:
  a:
    volumes:
      - /var/run/docker.sock:/var/run/docker.sock
  b:
    volumes:
      - /var/run/docker.sock:/var/run/docker.sock:ro
  c:
    volumes: []
`
	got := Patch(input, mustParse(t, input))

	var removed []Change
	for _, c := range got.Changes {
		if c.Action == ActionRemoved {
			removed = append(removed, c)
		}
	}
	want := []Change{
		{Service: "a", Action: ActionRemoved, Line: "- /var/run/docker.sock:/var/run/docker.sock"},
		{Service: "b", Action: ActionRemoved, Line: "- /var/run/docker.sock:/var/run/docker.sock:ro"},
	}
	if !reflect.DeepEqual(removed, want) {
		t.Errorf("removed = %#v, want %#v", removed, want)
	}
	if strings.Contains(got.PatchedText, "docker.sock") {
		t.Errorf("socket mount left in output:\n%s", got.PatchedText)
	}
	if !strings.Contains(got.PatchedText, "  c:\n    volumes: []\n    user: \"1000:1000\"") {
		t.Errorf("service c was not hardened in place:\n%s", got.PatchedText)
	}
}

func TestPatchIgnoresMatchingKeysInOtherSections(t *testing.T) {
	input := `x-extra:
  web:
    privileged: true
services:
  web:
    image: nginx
x-tail:
  web:
    foo: bar
`
	want := `x-extra:
  web:
    privileged: true
services:
  web:
    image: nginx
    user: "1000:1000"
    read_only: true
x-tail:
  web:
    foo: bar
`
	got := Patch(input, mustParse(t, input))

	if got.PatchedText != want {
		t.Errorf("patched text mismatch\ngot:\n%s\nwant:\n%s", got.PatchedText, want)
	}
	wantChanges := []Change{
		{Service: "web", Action: ActionAdded, Line: UserLine},
		{Service: "web", Action: ActionAdded, Line: ReadOnlyLine},
	}
	if !reflect.DeepEqual(got.Changes, wantChanges) {
		t.Errorf("changes = %+v, want %+v", got.Changes, wantChanges)
	}
}

func TestPatchOnlyRemovesWhenDecodedDataAgrees(t *testing.T) {
	// A relative mount of the project directory contains "/:/" but does not
	// mount the host root.
	input := `services:
  app:
    security_opt:
      - label=disable
    volumes:
      - ./:/app
`
	got := Patch(input, mustParse(t, input))
	if len(got.Removed()) != 0 {
		t.Errorf("expected no removals, got %v", got.Removed())
	}
}

func TestPatchHostRootKeepsSafeMounts(t *testing.T) {
	input := `services:
  db:
    volumes:
      # DANGEROUS
      - /:/host-root
      # SAFE
      - db-data:/var/lib/postgresql/data
      - ./:/workspace
`
	got := Patch(input, mustParse(t, input))
	want := `services:
  db:
    volumes:
      # DANGEROUS
      # SAFE
      - db-data:/var/lib/postgresql/data
      - ./:/workspace
    user: "1000:1000"
    read_only: true
`
	if got.PatchedText != want {
		t.Errorf("got:\n%s\nwant:\n%s", got.PatchedText, want)
	}
}

func TestPatchIsIdempotent(t *testing.T) {
	first := Patch(compose.SampleVulnerable, mustParse(t, compose.SampleVulnerable))
	if len(first.Removed()) == 0 {
		t.Fatal("expected the sample to need removals")
	}

	second := Patch(first.PatchedText, mustParse(t, first.PatchedText))
	if len(second.Changes) != 0 {
		t.Errorf("second patch produced changes: %v", second.Changes)
	}
	if second.PatchedText != first.PatchedText {
		t.Error("second patch changed the text")
	}
}

func TestPatchSampleClearsEveryPredicate(t *testing.T) {
	result := Patch(compose.SampleVulnerable, mustParse(t, compose.SampleVulnerable))
	doc := mustParse(t, result.PatchedText)

	services := doc.Services()
	if len(services) != 4 {
		t.Fatalf("expected 4 services, got %d", len(services))
	}
	for _, svc := range services {
		switch {
		case svc.Privileged(), svc.MountsDockerSocket(), svc.MountsHostRoot():
			t.Errorf("%s still has a critical setting", svc.Name)
		case svc.SharesHostNamespace(compose.FieldNetworkMode), svc.SharesHostNamespace(compose.FieldPID),
			svc.SharesHostNamespace(compose.FieldIPC), svc.SharesHostNamespace(compose.FieldUTS):
			t.Errorf("%s still shares a host namespace", svc.Name)
		case svc.HasSecurityOpt(compose.SeccompUnconfined), svc.HasSecurityOpt(compose.AppArmorUnconfined):
			t.Errorf("%s still disables a security profile", svc.Name)
		case !svc.HasUser(), !svc.ReadOnly():
			t.Errorf("%s was not hardened", svc.Name)
		}
	}

	for _, keep := range []string{
		"      - ./html:/usr/share/nginx/html",
		"      - db-data:/var/lib/postgresql/data",
		"      - ./redis.conf:/usr/local/etc/redis/redis.conf:ro",
		"      # DANGEROUS - will be removed",
	} {
		if !strings.Contains(result.PatchedText, keep) {
			t.Errorf("expected %q to be preserved", keep)
		}
	}

	if !strings.Contains(result.PatchedText, "    restart: unless-stopped\n    user: \"1000:1000\"\n    read_only: true\n\n  # Database") {
		t.Error("webapp additions are not anchored after its last field")
	}
}

func TestPatchPreservesCRLF(t *testing.T) {
	input := "services:\r\n  web:\r\n    image: nginx\r\n    privileged: true\r\n"
	got := Patch(input, mustParse(t, input))
	want := "services:\r\n  web:\r\n    image: nginx\r\n    user: \"1000:1000\"\r\n    read_only: true\r\n"
	if got.PatchedText != want {
		t.Errorf("got %q, want %q", got.PatchedText, want)
	}
}

func TestPatchFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "compose.yaml")
	input := "services:\n  web:\n    image: nginx\n    privileged: true\n"
	if err := os.WriteFile(path, []byte(input), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	result, err := PatchFile(path, false)
	if err != nil {
		t.Fatalf("PatchFile failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != input {
		t.Error("dry run modified the file")
	}

	if _, err := PatchFile(path, true); err != nil {
		t.Fatalf("PatchFile(write) failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != result.PatchedText {
		t.Errorf("file content = %q, want %q", data, result.PatchedText)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions changed to %v", info.Mode().Perm())
	}
}

func TestPatchFileErrors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := PatchFile("../escape.yaml", false); err == nil {
		t.Error("expected traversal path to be rejected")
	}

	empty := filepath.Join(tmpDir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := PatchFile(empty, false); err != ErrNothingToPatch {
		t.Errorf("expected ErrNothingToPatch, got %v", err)
	}

	broken := filepath.Join(tmpDir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("services: {web: [\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := PatchFile(broken, false); err == nil {
		t.Error("expected parse error")
	}
}
