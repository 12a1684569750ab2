// Package extract unpacks downloaded archives and checks which of them did
// not make it.
package extract

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sinsfetch/sinsfetch/pkg/logger"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds parallel extraction when Options.Workers is unset.
const DefaultWorkers = 4

var ErrUnsafePath = errors.New("archive entry escapes the output directory")

// Options configures Run.
type Options struct {
	// Target is walked recursively for *.zip files.
	Target string
	// OutDir receives the contents of every archive.
	OutDir  string
	Workers int
	Log     logger.Logger
}

// Result lists archives by outcome. All paths are sorted.
type Result struct {
	All       []string
	Extracted []string
	Failed    []string
	// Err aggregates the per-archive errors, nil when none failed.
	Err error
}

// ArchiveError is one archive that could not be extracted.
type ArchiveError struct {
	Archive string
	Err     error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("cannot unzip %s: %v", e.Archive, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Find returns every *.zip file below dir, sorted.
func Find(fs afero.Fs, dir string) ([]string, error) {
	var zips []string
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && strings.HasSuffix(info.Name(), ".zip") {
			zips = append(zips, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(zips)
	return zips, nil
}

// Run extracts every archive under opts.Target into opts.OutDir. A broken
// archive is recorded in the Result and does not stop the others; the
// returned error is for walking failures and cancellation only.
func Run(ctx context.Context, fs afero.Fs, opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = logger.NewNopLogger()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	all, err := Find(fs, opts.Target)
	if err != nil {
		return Result{}, fmt.Errorf("error: cannot scan %s: %w", opts.Target, err)
	}
	if err := fs.MkdirAll(opts.OutDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("error: cannot create %s: %w", opts.OutDir, err)
	}

	var (
		mu        sync.Mutex
		extracted []string
		merr      *multierror.Error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, archive := range all {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := Archive(gctx, fs, archive, opts.OutDir)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Error("Cannot unzip: %s: %v", archive, err)
				merr = multierror.Append(merr, &ArchiveError{Archive: archive, Err: err})
				return nil
			}
			log.Debug("extracted %s", archive)
			extracted = append(extracted, archive)
			return nil
		})
	}
	werr := g.Wait()

	sort.Strings(extracted)
	res := Result{
		All:       all,
		Extracted: extracted,
		Failed:    Verify(all, extracted),
		Err:       merr.ErrorOrNil(),
	}
	return res, werr
}

// Verify returns the archives in all that are missing from extracted,
// sorted.
func Verify(all, extracted []string) []string {
	done := make(map[string]struct{}, len(extracted))
	for _, e := range extracted {
		done[e] = struct{}{}
	}
	seen := make(map[string]struct{}, len(all))
	var missing []string
	for _, a := range all {
		if _, ok := done[a]; ok {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		missing = append(missing, a)
	}
	sort.Strings(missing)
	return missing
}

// Archive extracts one zip file into outDir.
func Archive(ctx context.Context, fs afero.Fs, archive, outDir string) error {
	f, err := fs.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return err
	}

	base := filepath.Clean(outDir)
	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest, err := safeJoin(base, entry.Name)
		if err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			if err := fs.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := writeEntry(fs, entry, dest); err != nil {
			return fmt.Errorf("%s: %w", entry.Name, err)
		}
	}
	return nil
}

func writeEntry(fs afero.Fs, entry *zip.File, dest string) error {
	if err := fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := entry.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// safeJoin resolves name under base and rejects entries that would land
// outside of it.
func safeJoin(base, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	dest := filepath.Join(base, name)
	if dest != base && !strings.HasPrefix(dest, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return dest, nil
}
