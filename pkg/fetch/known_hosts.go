package fetch

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// serializes appends; parallel transfers may meet new hosts at once
var knownHostsMu sync.Mutex

// newTOFUHostKeyCallback accepts and records unknown hosts, accepts known
// hosts with matching keys and rejects changed keys.
func newTOFUHostKeyCallback(path string) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if path == "" {
			return errors.New("sftp: no known_hosts file configured")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("sftp: create known_hosts dir: %w", err)
		}
		if _, err := os.Stat(path); err == nil {
			cb, err := knownhosts.New(path)
			if err != nil {
				return fmt.Errorf("sftp: load known_hosts: %w", err)
			}
			err = cb(hostname, remote, key)
			if err == nil {
				return nil
			}
			var keyErr *knownhosts.KeyError
			if !errors.As(err, &keyErr) {
				return err
			}
			if len(keyErr.Want) > 0 {
				return fmt.Errorf("sftp: host key changed for %s (got %s); remove the entry from %s if expected",
					hostname, ssh.FingerprintSHA256(key), path)
			}
		}
		return appendKnownHost(path, hostname, key)
	}
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("sftp: write known_hosts: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key))
	return err
}
