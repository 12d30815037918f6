// SPDX-License-Identifier: MIT

//go:build !windows

package report

import (
	"context"
	"fmt"

	"github.com/google/renameio/v2"

	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
)

// writeAtomic writes the report with fsync before rename.
func writeAtomic(ctx context.Context, path string, r Report) error {
	logger := xglog.FromContext(ctx)

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() {
		// no-op once committed
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending report file")
		}
	}()

	if err := Encode(pendingFile, r); err != nil {
		return fmt.Errorf("write report data: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace report file: %w", err)
	}
	return nil
}
