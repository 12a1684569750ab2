// Package monitor reports how much of the dataset is on disk, independent
// of any running download.
package monitor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// Snapshot is the result of one scan.
type Snapshot struct {
	Files int
	Bytes int64
}

// Scan counts the Node*/*.zip regular files under root. Entries that cannot
// be read are skipped.
func Scan(fs afero.Fs, root string) Snapshot {
	var s Snapshot
	dirs, err := afero.Glob(fs, filepath.Join(root, "Node*"))
	if err != nil {
		return s
	}
	for _, dir := range dirs {
		info, err := fs.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		zips, err := afero.Glob(fs, filepath.Join(dir, "*.zip"))
		if err != nil {
			continue
		}
		for _, z := range zips {
			zi, err := fs.Stat(z)
			if err != nil || !zi.Mode().IsRegular() {
				continue
			}
			s.Files++
			s.Bytes += zi.Size()
		}
	}
	return s
}

// Line formats a status line; rate is bytes per second.
func Line(s Snapshot, rate float64) string {
	if rate < 0 {
		rate = 0
	}
	return fmt.Sprintf("Files: %d | Size: %s | +%s/s",
		s.Files, humanize.Bytes(uint64(s.Bytes)), humanize.Bytes(uint64(rate)))
}

// Run rescans root every interval and rewrites a status line on w until ctx
// is done.
func Run(ctx context.Context, fs afero.Fs, root string, interval time.Duration, w io.Writer) error {
	if interval <= 0 {
		return fmt.Errorf("monitor: interval must be positive, got %s", interval)
	}
	fmt.Fprintf(w, "Monitoring download progress under: %s\n", root)
	fmt.Fprintln(w, "Press Ctrl+C to stop.")
	fmt.Fprintln(w)

	prev := Scan(fs, root)
	last := time.Now()
	fmt.Fprintf(w, "\r%s", Line(prev, 0))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w, "\nStopped.")
			return nil
		case now := <-ticker.C:
			cur := Scan(fs, root)
			rate := float64(cur.Bytes-prev.Bytes) / now.Sub(last).Seconds()
			fmt.Fprintf(w, "\r%s", Line(cur, rate))
			prev, last = cur, now
		}
	}
}
