package workspace

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/mholt/archives"
	"github.com/spf13/afero"
)

// ListArchive returns the file names stored in the archive at path,
// sorted. Directory entries are omitted.
func ListArchive(ctx context.Context, fsys afero.Fs, path string) ([]string, error) {
	var names []string
	err := walkArchive(ctx, fsys, path, func(info archives.FileInfo) error {
		names = append(names, info.NameInArchive)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// ReadArchive returns the contents of every file in the archive keyed by
// name. Meant for verification of small archives.
func ReadArchive(ctx context.Context, fsys afero.Fs, path string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := walkArchive(ctx, fsys, path, func(info archives.FileInfo) error {
		f, err := info.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", info.NameInArchive, err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", info.NameInArchive, err)
		}
		out[info.NameInArchive] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func walkArchive(ctx context.Context, fsys afero.Fs, path string, fn func(archives.FileInfo) error) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	format, _, err := archives.Identify(ctx, filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("identify archive: %w", err)
	}
	ex, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("archive %s: format %s cannot be read", path, format.Extension())
	}

	// Zip needs random access, so hand the file itself over, rewound.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind archive: %w", err)
	}
	return ex.Extract(ctx, f, func(_ context.Context, info archives.FileInfo) error {
		if info.IsDir() {
			return nil
		}
		return fn(info)
	})
}
