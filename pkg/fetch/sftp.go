package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
)

// SFTPTransfer fetches sftp URLs over SSH. A password in the URL wins over
// key authentication; KeyPath (or ~/.ssh/id_ed25519, ~/.ssh/id_rsa) is
// used otherwise.
type SFTPTransfer struct {
	Fs      afero.Fs
	KeyPath string
	// HostKeys verifies server keys. Defaults to trust-on-first-use against
	// KnownHostsPath.
	HostKeys       ssh.HostKeyCallback
	KnownHostsPath string
}

func NewSFTPTransfer(fs afero.Fs, knownHostsPath string) *SFTPTransfer {
	return &SFTPTransfer{Fs: fs, KnownHostsPath: knownHostsPath}
}

func (s *SFTPTransfer) dial(ctx context.Context, u *url.URL) (*ssh.Client, *sftp.Client, error) {
	password, _ := u.User.Password()
	auth, err := buildAuthMethods(password, s.KeyPath)
	if err != nil {
		return nil, nil, err
	}
	hostKeys := s.HostKeys
	if hostKeys == nil {
		hostKeys = newTOFUHostKeyCallback(s.KnownHostsPath)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "22")
	}

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, nil, err
	}
	conn, chans, reqs, err := ssh.NewClientConn(raw, host, &ssh.ClientConfig{
		User:            u.User.Username(),
		Auth:            auth,
		HostKeyCallback: hostKeys,
	})
	if err != nil {
		raw.Close()
		return nil, nil, err
	}
	client := ssh.NewClient(conn, chans, reqs)
	sc, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, sc, nil
}

func (s *SFTPTransfer) Fetch(ctx context.Context, rawURL, dest string, p Progress) error {
	if p == nil {
		p = NopProgress{}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return permanentErr("sftp", "parse", err)
	}
	if !strings.EqualFold(u.Scheme, "sftp") {
		return permanentErr("sftp", "parse", ErrUnsupportedScheme)
	}
	if u.User == nil {
		return permanentErr("sftp", "parse", errors.New("sftp url needs a user"))
	}
	if u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return permanentErr("sftp", "parse", errors.New("sftp url has no file path"))
	}

	client, sc, err := s.dial(ctx, u)
	if err != nil {
		return classifySFTPError("connect", err)
	}
	defer client.Close()
	defer sc.Close()

	remote, err := sc.Open(u.Path)
	if err != nil {
		return classifySFTPError("open", err)
	}
	defer remote.Close()
	info, err := remote.Stat()
	if err != nil {
		return classifySFTPError("stat", err)
	}

	out, offset, err := openResume(s.Fs, dest)
	if err != nil {
		return permanentErr("sftp", "localopen", err)
	}
	defer out.Close()

	size := info.Size()
	if offset >= size {
		p.Started(offset, size)
		return nil
	}
	if offset > 0 {
		if _, err := remote.Seek(offset, io.SeekStart); err != nil {
			return permanentErr("sftp", "seek", err)
		}
	}
	p.Started(offset, size)
	if _, err := copyCtx(ctx, out, remote, p); err != nil {
		if ctx.Err() != nil {
			return permanentErr("sftp", "copy", ctx.Err())
		}
		return classifySFTPError("copy", err)
	}
	return nil
}

// buildAuthMethods prefers password auth, then the first readable key.
func buildAuthMethods(password, keyPath string) ([]ssh.AuthMethod, error) {
	if password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}
	paths := resolveSSHKeyPaths(keyPath)
	for _, kp := range paths {
		pem, err := os.ReadFile(kp)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			var ppErr *ssh.PassphraseMissingError
			if errors.As(err, &ppErr) {
				return nil, fmt.Errorf("sftp: key %q is passphrase-protected", kp)
			}
			continue
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, fmt.Errorf("sftp: no authentication method, tried %s", strings.Join(paths, ", "))
}

func resolveSSHKeyPaths(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
}

// classifySFTPError: missing files and SSH exit statuses are permanent,
// network errors transient.
func classifySFTPError(op string, err error) *TransferError {
	if errors.Is(err, os.ErrNotExist) {
		return permanentErr("sftp", op, err)
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return permanentErr("sftp", op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return transientErr("sftp", op, err)
	}
	return permanentErr("sftp", op, err)
}
