package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d %s", e.Code, http.StatusText(e.Code))
}

// ExitCode mirrors curl --fail, which exits 22 on HTTP errors.
func (e *StatusError) ExitCode() int {
	return 22
}

// HTTPTransfer fetches http and https URLs using ranged GET requests.
type HTTPTransfer struct {
	Client    *http.Client
	Fs        afero.Fs
	UserAgent string
	// SpaceCheck runs before any byte is written. Defaults to a statfs based
	// check on the destination directory.
	SpaceCheck func(dir string, need int64) error
}

// NewHTTPTransfer returns a transfer writing into fs with client (or
// http.DefaultClient when nil).
func NewHTTPTransfer(fs afero.Fs, client *http.Client) *HTTPTransfer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransfer{
		Client:     client,
		Fs:         fs,
		UserAgent:  DefaultUserAgent,
		SpaceCheck: checkDiskSpace,
	}
}

// DefaultUserAgent identifies sinsfetch to the archive.
const DefaultUserAgent = "sinsfetch/1"

func (h *HTTPTransfer) Fetch(ctx context.Context, rawURL, dest string, p Progress) error {
	if p == nil {
		p = NopProgress{}
	}
	offset, err := localSize(h.Fs, dest)
	if err != nil {
		return permanentErr("http", "stat", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return permanentErr("http", "request", err)
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return permanentErr("http", "request", ctx.Err())
		}
		return transientErr("http", "request", err)
	}
	defer resp.Body.Close()

	flags := os.O_WRONLY | os.O_CREATE
	switch {
	case resp.StatusCode == http.StatusPartialContent:
		start, total, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if !ok || start != offset {
			return permanentErr("http", "resume", fmt.Errorf("%w: want %d, got %q",
				ErrRangeMismatch, offset, resp.Header.Get("Content-Range")))
		}
		p.Started(offset, total)
	case resp.StatusCode == http.StatusOK:
		// The server ignored the range; start over.
		offset = 0
		flags |= os.O_TRUNC
		p.Started(0, resp.ContentLength)
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		// Local file already covers the whole resource.
		if _, total, ok := parseContentRange(resp.Header.Get("Content-Range")); ok && total >= 0 && total != offset {
			return permanentErr("http", "resume", fmt.Errorf("%w: local %d bytes, remote %d",
				ErrRangeMismatch, offset, total))
		}
		p.Started(offset, offset)
		return nil
	default:
		serr := &StatusError{Code: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return transientErr("http", "response", serr)
		}
		return permanentErr("http", "response", serr)
	}

	if h.SpaceCheck != nil {
		if err := h.SpaceCheck(filepath.Dir(dest), resp.ContentLength); err != nil {
			return permanentErr("http", "preflight", err)
		}
	}

	f, err := h.Fs.OpenFile(dest, flags, DefaultFileMode)
	if err != nil {
		return permanentErr("http", "open", err)
	}
	defer f.Close()
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return permanentErr("http", "seek", err)
		}
	}

	n, err := copyCtx(ctx, f, resp.Body, p)
	if err != nil {
		if ctx.Err() != nil {
			return permanentErr("http", "copy", ctx.Err())
		}
		return transientErr("http", "copy", err)
	}
	if resp.ContentLength >= 0 && n < resp.ContentLength {
		return transientErr("http", "copy", io.ErrUnexpectedEOF)
	}
	return nil
}

// parseContentRange parses "bytes start-end/total" and "bytes */total".
// total is -1 when the server sent "*".
func parseContentRange(v string) (start, total int64, ok bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "bytes ") {
		return 0, 0, false
	}
	v = strings.TrimPrefix(v, "bytes ")
	rng, tot, found := strings.Cut(v, "/")
	if !found {
		return 0, 0, false
	}
	total = -1
	if tot != "*" {
		t, err := strconv.ParseInt(tot, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		total = t
	}
	if rng == "*" {
		return -1, total, true
	}
	s, _, found := strings.Cut(rng, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return start, total, true
}
