package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/spf13/afero"
)

// FTPTransfer fetches ftp and ftps URLs. Resume uses REST via RetrFrom.
// Credentials come from the URL userinfo, anonymous otherwise.
type FTPTransfer struct {
	Fs          afero.Fs
	DialTimeout time.Duration
}

func NewFTPTransfer(fs afero.Fs) *FTPTransfer {
	return &FTPTransfer{Fs: fs, DialTimeout: 30 * time.Second}
}

type ftpTarget struct {
	host     string
	path     string
	user     string
	password string
	tls      bool
}

func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "ftp" && scheme != "ftps" {
		return ftpTarget{}, ErrUnsupportedScheme
	}
	if u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return ftpTarget{}, errors.New("ftp url has no file path")
	}
	t := ftpTarget{
		host:     u.Host,
		path:     u.Path,
		user:     "anonymous",
		password: "anonymous",
		tls:      scheme == "ftps",
	}
	if u.Port() == "" {
		t.host = net.JoinHostPort(u.Hostname(), "21")
	}
	if u.User != nil {
		t.user = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			t.password = pw
		}
	}
	return t, nil
}

func (f *FTPTransfer) connect(ctx context.Context, t ftpTarget) (*ftp.ServerConn, error) {
	opts := []ftp.DialOption{
		ftp.DialWithTimeout(f.DialTimeout),
		ftp.DialWithContext(ctx),
	}
	if t.tls {
		hostname := t.host
		if h, _, err := net.SplitHostPort(t.host); err == nil {
			hostname = h
		}
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName: hostname,
			MinVersion: tls.VersionTLS12,
		}))
	}
	conn, err := ftp.Dial(t.host, opts...)
	if err != nil {
		return nil, err
	}
	if err := conn.Login(t.user, t.password); err != nil {
		conn.Quit()
		return nil, err
	}
	return conn, nil
}

func (f *FTPTransfer) Fetch(ctx context.Context, rawURL, dest string, p Progress) error {
	if p == nil {
		p = NopProgress{}
	}
	t, err := parseFTPURL(rawURL)
	if err != nil {
		return permanentErr("ftp", "parse", err)
	}
	conn, err := f.connect(ctx, t)
	if err != nil {
		return classifyFTPError("connect", err)
	}
	defer conn.Quit()

	size, err := conn.FileSize(t.path)
	if err != nil {
		// SIZE is optional on some servers.
		size = -1
	}

	out, offset, err := openResume(f.Fs, dest)
	if err != nil {
		return permanentErr("ftp", "open", err)
	}
	defer out.Close()

	if size >= 0 && offset >= size {
		p.Started(offset, size)
		return nil
	}

	resp, err := conn.RetrFrom(t.path, uint64(offset))
	if err != nil {
		return classifyFTPError("retr", err)
	}
	defer resp.Close()

	p.Started(offset, size)
	if _, err := copyCtx(ctx, out, resp, p); err != nil {
		if ctx.Err() != nil {
			return permanentErr("ftp", "copy", ctx.Err())
		}
		return transientErr("ftp", "copy", err)
	}
	return nil
}

// classifyFTPError treats 4xx replies and network errors as transient and
// 5xx replies as permanent (RFC 959).
func classifyFTPError(op string, err error) *TransferError {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		if tpErr.Code >= 400 && tpErr.Code < 500 {
			return transientErr("ftp", op, err)
		}
		return permanentErr("ftp", op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return transientErr("ftp", op, err)
	}
	return permanentErr("ftp", op, err)
}
