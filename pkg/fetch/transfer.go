package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// DefaultFileMode is used for newly created destination files.
const DefaultFileMode = 0o644

// Transfer downloads rawURL into dest, resuming from the current length of
// dest. Implementations must honour ctx cancellation and leave the partial
// file in place when they stop early.
type Transfer interface {
	Fetch(ctx context.Context, rawURL, dest string, p Progress) error
}

// Progress observes a running transfer. Implementations must be safe for
// use from the transfer goroutine.
type Progress interface {
	// Started is called once the remote side accepted the request. total is
	// the full file size, or -1 when unknown.
	Started(offset, total int64)
	// Wrote is called after each chunk written to dest.
	Wrote(n int)
}

// NopProgress ignores all progress.
type NopProgress struct{}

func (NopProgress) Started(offset, total int64) {}
func (NopProgress) Wrote(n int)                 {}

var (
	ErrInsufficientDiskSpace = errors.New("insufficient disk space")
	ErrUnsupportedScheme     = errors.New("unsupported scheme")
	ErrRangeMismatch         = errors.New("server resumed at a different offset")
)

// TransferError is a structured failure from a transfer.
type TransferError struct {
	// Protocol is "http", "ftp", "sftp" or "curl".
	Protocol string
	// Op is the failing step, e.g. "connect" or "copy".
	Op        string
	Cause     error
	transient bool
}

func (e *TransferError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s", e.Protocol, e.Op, e.Cause.Error())
	}
	return fmt.Sprintf("%s %s", e.Protocol, e.Op)
}

func (e *TransferError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether retrying may succeed.
func (e *TransferError) IsTransient() bool {
	return e.transient
}

func transientErr(protocol, op string, cause error) *TransferError {
	return &TransferError{Protocol: protocol, Op: op, Cause: cause, transient: true}
}

func permanentErr(protocol, op string, cause error) *TransferError {
	return &TransferError{Protocol: protocol, Op: op, Cause: cause}
}

// ExitCode maps err to a process-style exit status: 0 for nil, the
// subprocess status when err carries one, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		if code := ec.ExitCode(); code > 0 {
			return code
		}
	}
	return 1
}

// openResume opens dest for writing positioned at its current end and
// returns that offset.
func openResume(fs afero.Fs, dest string) (afero.File, int64, error) {
	f, err := fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE, DefaultFileMode)
	if err != nil {
		return nil, 0, err
	}
	off, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, off, nil
}

// localSize returns the length of dest, 0 when it does not exist.
func localSize(fs afero.Fs, dest string) (int64, error) {
	info, err := fs.Stat(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// progressWriter forwards byte counts to a Progress.
type progressWriter struct {
	p Progress
}

func (pw progressWriter) Write(b []byte) (int, error) {
	pw.p.Wrote(len(b))
	return len(b), nil
}

// copyCtx copies src into dst until EOF or ctx is done.
func copyCtx(ctx context.Context, dst io.Writer, src io.Reader, p Progress) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	out := io.MultiWriter(dst, progressWriter{p: p})
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := out.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
