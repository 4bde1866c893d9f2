// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	if err := FormatError(nil, "x.cue"); err != nil {
		t.Errorf("FormatError(nil) = %v, want nil", err)
	}

	plain := errors.New("disk on fire")
	err := FormatError(plain, "x.cue")
	if !errors.Is(err, plain) {
		t.Errorf("FormatError() = %v, want wrapped original", err)
	}
	if !strings.HasPrefix(err.Error(), "x.cue: ") {
		t.Errorf("FormatError() = %q, want file prefix", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"engine"}, "engine"},
		{[]string{"engine", "dialect"}, "engine.dialect"},
		{[]string{"items", "0", "name"}, "items[0].name"},
		{[]string{"a", "1", "2"}, "a[1][2]"},
		{[]string{"0", "x"}, "0.x"},
	}

	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := CheckFileSize(make([]byte, 10), 10, "f.cue"); err != nil {
		t.Errorf("CheckFileSize(at limit) = %v", err)
	}
	err := CheckFileSize(make([]byte, 11), 10, "f.cue")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("CheckFileSize(over limit) = %v, want ErrFileTooLarge", err)
	}
}
