// SPDX-License-Identifier: MIT

//go:build windows

package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// writeAtomic uses temp file + rename; Windows has no fsync-then-rename guarantee.
func writeAtomic(_ context.Context, path string, r Report) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".opsdash-report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := Encode(tmpFile, r); err != nil {
		return fmt.Errorf("write report data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp report file: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename report file: %w", err)
	}
	return nil
}
