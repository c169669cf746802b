package workspace

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/maruel/natural"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

const (
	// SelectionArchiveName is the output name for selection archives.
	SelectionArchiveName = "selected-items.zip"

	archiveTimeLayout = "20060102-150405"
	copyChunkSize     = 256 * 1024
)

// WholeTreeArchiveName returns "{base}_{timestamp}.zip" for root.
func WholeTreeArchiveName(root string, now time.Time) string {
	return fmt.Sprintf("%s_%s.zip", filepath.Base(filepath.Clean(root)), now.Format(archiveTimeLayout))
}

// ArchiveOptions tunes ArchiveBuilder behavior.
type ArchiveOptions struct {
	// IncludeArchives keeps existing .zip files in whole-tree archives.
	// The zero value leaves them out, so a repeated whole-tree run never
	// packs the archives written by earlier runs.
	IncludeArchives bool
	// RemovePartial deletes the output file when a job fails. A failed
	// removal is logged; the job still reports the original error.
	RemovePartial bool
	// ApplyIgnoreToSelection filters expanded selections with the ignore
	// rule too. Off by default: explicitly selected paths are taken as-is.
	ApplyIgnoreToSelection bool
}

// ArchiveBuilder writes a file set into a single zip stream.
type ArchiveBuilder struct {
	fs      afero.Fs
	indexer *Indexer
	opts    ArchiveOptions
}

// NewArchiveBuilder creates a builder. A nil indexer gets a sequential one over fs.
func NewArchiveBuilder(fs afero.Fs, indexer *Indexer, opts ArchiveOptions) *ArchiveBuilder {
	if indexer == nil {
		indexer = NewIndexer(fs)
	}
	return &ArchiveBuilder{fs: fs, indexer: indexer, opts: opts}
}

// Build resolves the job's entries and streams them into job.OutputPath,
// one entry at a time, deflated at the maximum level. Selection problems
// are reported before the output file is created. Once writing has
// started, any failure returns *ArchiveWriteError.
func (b *ArchiveBuilder) Build(ctx context.Context, job ArchiveJob) (res *ArchiveResult, err error) {
	l := sub("archive")
	start := time.Now()
	defer func() {
		var size int64
		if res != nil {
			size = res.SizeBytes
		}
		recordArchive(job.Mode, size, err)
	}()

	job.RootDir = filepath.Clean(job.RootDir)
	job.OutputPath = filepath.Clean(job.OutputPath)

	entries, err := b.Plan(ctx, job)
	if err != nil {
		l.Warn("archive plan failed", "root", job.RootDir, "mode", job.Mode, "err", err)
		return nil, err
	}
	l.Info("archive start", "output", job.OutputPath, "mode", job.Mode, "entries", len(entries))

	res, err = b.write(ctx, job.OutputPath, entries)
	if err != nil {
		l.Error("archive failed", "output", job.OutputPath, "err", err)
		return nil, err
	}

	l.Info("archive complete", "output", res.OutputPath, "entries", res.Entries,
		"size", res.HumanSize, "took", time.Since(start))
	return res, nil
}

// Plan returns the entries job would write, sorted in natural order of
// their archive names. The output path itself is never included.
func (b *ArchiveBuilder) Plan(ctx context.Context, job ArchiveJob) ([]ArchiveEntry, error) {
	root := filepath.Clean(job.RootDir)
	output := filepath.Clean(job.OutputPath)

	var sources []string
	switch job.Mode {
	case ModeWholeTree:
		files, err := b.indexer.Walk(ctx, root, b.wholeTreeFilter(job.Ignore, output))
		if err != nil {
			return nil, err
		}
		sources = files
	case ModeSelection:
		files, err := b.expandSelection(ctx, root, output, job)
		if err != nil {
			return nil, err
		}
		sources = files
	default:
		return nil, fmt.Errorf("unknown archive mode %d", job.Mode)
	}

	entries := make([]ArchiveEntry, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if src == output {
			continue
		}
		name, ok := archiveName(root, src)
		if !ok {
			return nil, &SelectionOutsideRootError{Path: src, Root: root}
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		entries = append(entries, ArchiveEntry{SourcePath: src, NameInArchive: name})
	}

	sort.Slice(entries, func(i, j int) bool {
		return natural.Less(entries[i].NameInArchive, entries[j].NameInArchive)
	})
	return entries, nil
}

func (b *ArchiveBuilder) wholeTreeFilter(ignore *IgnoreRule, output string) Filter {
	return func(path string, info os.FileInfo) bool {
		if path == output || ignore.Match(path) {
			return false
		}
		if !b.opts.IncludeArchives && !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".zip") {
			return false
		}
		return true
	}
}

// expandSelection validates every selected path against root first, then
// expands directories recursively.
func (b *ArchiveBuilder) expandSelection(ctx context.Context, root, output string, job ArchiveJob) ([]string, error) {
	selection := lo.Uniq(lo.Compact(job.Selection))
	if len(selection) == 0 {
		return nil, ErrNoSelection
	}

	resolved := lo.Map(selection, func(p string, _ int) string {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		return filepath.Clean(p)
	})
	for _, p := range resolved {
		if _, ok := relativeTo(root, p); !ok {
			return nil, &SelectionOutsideRootError{Path: p, Root: root}
		}
	}

	keep := func(path string, _ os.FileInfo) bool { return path != output }
	if b.opts.ApplyIgnoreToSelection {
		keep = func(path string, _ os.FileInfo) bool {
			return path != output && !job.Ignore.Match(path)
		}
	}

	var files []string
	for _, p := range resolved {
		info, err := b.fs.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat selected path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := b.indexer.Walk(ctx, p, keep)
		if err != nil {
			return nil, fmt.Errorf("expand selected directory: %w", err)
		}
		files = append(files, found...)
	}
	return files, nil
}

// relativeTo returns path relative to root, or false if it escapes root.
func relativeTo(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// archiveName is the forward-slash, root-relative name of a file entry.
func archiveName(root, path string) (string, bool) {
	rel, ok := relativeTo(root, path)
	if !ok || rel == "." {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (b *ArchiveBuilder) write(ctx context.Context, output string, entries []ArchiveEntry) (*ArchiveResult, error) {
	f, err := b.fs.OpenFile(output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &ArchiveWriteError{Op: "create", OutputPath: output, Err: err}
	}

	cw := &countingWriter{w: f}
	zw := zip.NewWriter(cw)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	fail := func(op string, err error) (*ArchiveResult, error) {
		f.Close() //nolint:errcheck
		b.discardPartial(output)
		return nil, &ArchiveWriteError{Op: op, OutputPath: output, Err: err}
	}

	written := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return fail("cancelled", err)
		}
		ok, err := b.addEntry(ctx, zw, e)
		if err != nil {
			return fail("add "+e.NameInArchive, err)
		}
		if ok {
			written++
		}
	}

	if err := zw.Close(); err != nil {
		return fail("finalize", err)
	}
	if err := f.Close(); err != nil {
		b.discardPartial(output)
		return nil, &ArchiveWriteError{Op: "close", OutputPath: output, Err: err}
	}

	return &ArchiveResult{
		OutputPath: output,
		SizeBytes:  cw.n,
		Entries:    written,
		HumanSize:  FormatSize(cw.n),
	}, nil
}

// addEntry copies one source file into the archive. Sources that cannot be
// opened, or are not regular files, are skipped (false, nil). Errors after
// the entry header has been written are returned.
func (b *ArchiveBuilder) addEntry(ctx context.Context, zw *zip.Writer, e ArchiveEntry) (bool, error) {
	l := sub("archive")
	src, err := b.fs.Open(e.SourcePath)
	if err != nil {
		l.Warn("skipping unreadable source", "path", e.SourcePath, "err", err)
		return false, nil
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		l.Warn("skipping source without stat", "path", e.SourcePath, "err", err)
		return false, nil
	}
	if !info.Mode().IsRegular() {
		l.Debug("skipping non-regular source", "path", e.SourcePath, "mode", info.Mode())
		return false, nil
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return false, fmt.Errorf("build header: %w", err)
	}
	hdr.Name = e.NameInArchive
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return false, fmt.Errorf("write header: %w", err)
	}
	if err := copyChunks(ctx, w, src); err != nil {
		return false, err
	}
	l.Debug("added", "name", e.NameInArchive, "size", info.Size())
	return true, nil
}

// copyChunks copies src into dst, checking ctx between chunks.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, copyChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read source: %w", readErr)
		}
	}
}

func (b *ArchiveBuilder) discardPartial(output string) {
	if !b.opts.RemovePartial {
		return
	}
	if err := b.fs.Remove(output); err != nil && !os.IsNotExist(err) {
		sub("archive").Warn("could not remove partial archive", "output", output, "err", err)
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
