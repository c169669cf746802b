package cmd

import (
	"fmt"
	"io"

	"github.com/wufan123/vs-ex-compress/workspace"
)

// consoleNotifier prints user-facing outcome messages.
type consoleNotifier struct {
	out   io.Writer
	scans bool // also report every completed scan
}

func (n consoleNotifier) ArchiveCompleted(_ string, sizeBytes int64) {
	fmt.Fprintf(n.out, "Compression completed. Archive size: %s\n", workspace.FormatSize(sizeBytes)) //nolint:errcheck
}

func (n consoleNotifier) ArchiveFailed(message string) {
	fmt.Fprintf(n.out, "Compression failed: %s\n", message) //nolint:errcheck
}

func (n consoleNotifier) ScanCompleted(list *workspace.RankedList) {
	if !n.scans {
		return
	}
	fmt.Fprintf(n.out, "Indexed %d files\n", list.Len()) //nolint:errcheck
}
