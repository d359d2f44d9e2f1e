// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package browser

import (
	"errors"
	"testing"
)

func stubOpen(t *testing.T, err error) *[]string {
	t.Helper()
	var opened []string
	orig := openURL
	openURL = func(u string) error {
		opened = append(opened, u)
		return err
	}
	t.Cleanup(func() { openURL = orig })
	return &opened
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{"", TargetDefault, false},
		{"default", TargetDefault, false},
		{"NONE", TargetNone, false},
		{"chrome", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTarget(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTarget(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://docs.docker.com/engine/security/seccomp/", false},
		{"http://localhost:8080/v1/rules", false},
		{"file:///etc/passwd", true},
		{"javascript:alert(1)", true},
		{"https://", true},
		{"not a url", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := Validate(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidURL) {
				t.Errorf("expected ErrInvalidURL, got %v", err)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	opened := stubOpen(t, nil)

	if err := Open("https://docs.docker.com/", TargetDefault); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(*opened) != 1 || (*opened)[0] != "https://docs.docker.com/" {
		t.Errorf("unexpected launches: %v", *opened)
	}
}

func TestOpenTargetNone(t *testing.T) {
	opened := stubOpen(t, nil)

	if err := Open("https://docs.docker.com/", TargetNone); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(*opened) != 0 {
		t.Errorf("TargetNone must not launch, got %v", *opened)
	}
	if err := Open("file:///etc/passwd", TargetNone); err == nil {
		t.Error("TargetNone must still validate")
	}
}

func TestOpenRejectsInvalidURL(t *testing.T) {
	opened := stubOpen(t, nil)

	if err := Open("javascript:alert(1)", TargetDefault); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	if len(*opened) != 0 {
		t.Errorf("invalid URL reached the launcher: %v", *opened)
	}
}

func TestOpenLaunchError(t *testing.T) {
	stubOpen(t, errors.New("xdg-open not found"))

	if err := Open("https://docs.docker.com/", TargetDefault); err == nil {
		t.Fatal("expected launch error")
	}
}
