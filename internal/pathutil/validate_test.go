package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "accelerated_rollout", false},
		{"dashes and dots", "fy-2026.v2", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dot dot", "..", true},
		{"slash", "../secrets", true},
		{"nested", "a/b", true},
		{"backslash", `a\b`, true},
		{"null byte", "a\x00b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrBadName) {
				t.Errorf("error %v should wrap ErrBadName", err)
			}
		})
	}
}

func TestWithin(t *testing.T) {
	allowed := t.TempDir()
	other := t.TempDir()
	if err := os.MkdirAll(filepath.Join(allowed, "sub"), 0o700); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file inside", filepath.Join(allowed, "x.yaml"), false},
		{"missing file in subdir", filepath.Join(allowed, "sub", "new", "x.yaml"), false},
		{"the directory itself", allowed, false},
		{"dot dot escape", filepath.Join(allowed, "..", "x.yaml"), true},
		{"other directory", filepath.Join(other, "x.yaml"), true},
		{"prefix sibling", allowed + "bar", true},
		{"null byte", filepath.Join(allowed, "x\x00.yaml"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Within(tt.path, allowed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Within(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrOutside) {
				t.Errorf("error %v should wrap ErrOutside", err)
			}
		})
	}
}

func TestWithin_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on Windows")
	}
	allowed := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(allowed, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	if err := Within(filepath.Join(link, "x.yaml"), allowed); !errors.Is(err, ErrOutside) {
		t.Errorf("Within(symlinked path) error = %v, want ErrOutside", err)
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"", ""},
		{"x.yaml", "x.yaml"},
		{"/x.yaml", "x.yaml"},
		{"/home/user/config/scenarios/x.yaml", ".../scenarios/x.yaml"},
	}
	for _, tt := range tests {
		if got := RedactPath(tt.input); got != tt.want {
			t.Errorf("RedactPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
