package yamlutil

import (
	"testing"

	"github.com/jongio/composeguard/compose"
)

func TestAlign(t *testing.T) {
	original := "a: 1\nb: 2\nc: 3"
	patched := "a: 1\nc: 3"
	changes := []Change{{Service: "x", Action: ActionRemoved, Line: "b: 2"}}

	diff := Align(original, patched, changes)
	if len(diff) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(diff))
	}

	tests := []struct {
		idx                                       int
		changed, removed, added, problematic bool
	}{
		{idx: 0},
		{idx: 1, changed: true, problematic: true},
		{idx: 2, changed: true, removed: true},
	}
	for _, tt := range tests {
		got := diff[tt.idx]
		if got.LineNum != tt.idx+1 {
			t.Errorf("line %d: LineNum = %d", tt.idx, got.LineNum)
		}
		if got.Changed != tt.changed || got.Removed != tt.removed || got.Added != tt.added || got.IsProblematic != tt.problematic {
			t.Errorf("line %d: got %+v", tt.idx, got)
		}
	}
}

func TestAlignAddedLines(t *testing.T) {
	diff := Align("a", "a\nb", nil)
	if len(diff) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(diff))
	}
	if !diff[1].Added || diff[1].Original != "" || diff[1].Patched != "b" {
		t.Errorf("unexpected second line: %+v", diff[1])
	}
}

func TestAlignIgnoresCommentsAndAdditions(t *testing.T) {
	original := "# privileged: true\nprivileged: true\nuser: root"
	changes := []Change{
		{Service: "x", Action: ActionRemoved, Line: "privileged: true"},
		{Service: "x", Action: ActionAdded, Line: "user: \"1000:1000\""},
	}

	diff := Align(original, original, changes)
	if diff[0].IsProblematic {
		t.Error("comment lines must never be marked")
	}
	if !diff[1].IsProblematic {
		t.Error("removed line should be marked")
	}
	if diff[2].IsProblematic {
		t.Error("added changes must not mark lines")
	}
}

func TestAlignSample(t *testing.T) {
	doc, err := compose.Parse(compose.SampleVulnerable)
	if err != nil {
		t.Fatal(err)
	}
	result := Patch(compose.SampleVulnerable, doc)
	diff := Align(compose.SampleVulnerable, result.PatchedText, result.Changes)

	marked := map[string]bool{}
	for _, d := range diff {
		if d.IsProblematic {
			marked[d.Original] = true
		}
	}
	for _, line := range []string{
		"    privileged: true",
		"      - /var/run/docker.sock:/var/run/docker.sock",
		"      - seccomp:unconfined",
		"    network_mode: host",
	} {
		if !marked[line] {
			t.Errorf("expected %q to be marked problematic", line)
		}
	}
	if marked["    image: nginx:alpine"] {
		t.Error("unrelated line marked problematic")
	}
}
