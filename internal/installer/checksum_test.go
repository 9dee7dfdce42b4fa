// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/testutil"
)

func TestVerifyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.zip")
	testutil.MustWriteFile(t, path, "template bytes")
	sum := sha256.Sum256([]byte("template bytes"))
	good := hex.EncodeToString(sum[:])

	t.Run("match", func(t *testing.T) {
		t.Parallel()
		if err := VerifyFile(path, good); err != nil {
			t.Errorf("VerifyFile() error = %v", err)
		}
	})

	t.Run("match uppercase", func(t *testing.T) {
		t.Parallel()
		if err := VerifyFile(path, strings.ToUpper(good)); err != nil {
			t.Errorf("VerifyFile() error = %v", err)
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		t.Parallel()
		err := VerifyFile(path, strings.Repeat("0", 64))
		var checksumErr *ChecksumError
		if !errors.As(err, &checksumErr) {
			t.Fatalf("VerifyFile() error = %v, want *ChecksumError", err)
		}
		if checksumErr.Got != good {
			t.Errorf("Got = %q, want %q", checksumErr.Got, good)
		}
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Error("errors.Is(err, ErrChecksumMismatch) = false")
		}
	})

	t.Run("malformed pin", func(t *testing.T) {
		t.Parallel()
		if err := VerifyFile(path, "abc"); !errors.Is(err, ErrInvalidChecksum) {
			t.Errorf("VerifyFile() error = %v, want ErrInvalidChecksum", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if err := VerifyFile(filepath.Join(t.TempDir(), "gone"), good); err == nil {
			t.Error("VerifyFile() succeeded for a missing file")
		}
	})
}

func TestIsValidHexHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{strings.Repeat("a", 64), true},
		{strings.Repeat("F", 64), true},
		{strings.Repeat("a", 63), false},
		{strings.Repeat("g", 64), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidHexHash(tt.in); got != tt.want {
			t.Errorf("IsValidHexHash(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
