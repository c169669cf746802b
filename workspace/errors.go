package workspace

import (
	"errors"
	"fmt"
)

// ErrNoSelection is returned when a selection archive is requested with no paths.
var ErrNoSelection = errors.New("no files or folders selected for compression")

// ScanRootError means the scan root itself could not be opened.
// No partial list is produced for that scan.
type ScanRootError struct {
	Root string
	Err  error
}

func (e *ScanRootError) Error() string {
	return fmt.Sprintf("scan root %s: %v", e.Root, e.Err)
}

func (e *ScanRootError) Unwrap() error { return e.Err }

// SelectionOutsideRootError rejects a selected path whose archive name would
// escape the archive root. It is raised by path validation alone and wraps
// no underlying error.
type SelectionOutsideRootError struct {
	Path string
	Root string
}

func (e *SelectionOutsideRootError) Error() string {
	return fmt.Sprintf("selected path %s is outside root %s", e.Path, e.Root)
}

// ArchiveWriteError is an I/O failure while producing the archive.
// The partial output file is left on disk unless removal was requested.
type ArchiveWriteError struct {
	Op         string
	OutputPath string
	Err        error
}

func (e *ArchiveWriteError) Error() string {
	return fmt.Sprintf("archive %s: %s: %v", e.OutputPath, e.Op, e.Err)
}

func (e *ArchiveWriteError) Unwrap() error { return e.Err }
