package fetch

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
)

func testHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestTOFUHostKeyCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssh", "known_hosts")
	cb := newTOFUHostKeyCallback(path)
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2222}
	key := testHostKey(t)

	if err := cb("127.0.0.1:2222", addr, key); err != nil {
		t.Fatalf("first contact: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "[127.0.0.1]:2222") {
		t.Fatalf("host not recorded: %q", data)
	}
	if err := cb("127.0.0.1:2222", addr, key); err != nil {
		t.Fatalf("known host rejected: %v", err)
	}
	err := cb("127.0.0.1:2222", addr, testHostKey(t))
	if err == nil || !strings.Contains(err.Error(), "host key changed") {
		t.Fatalf("changed key accepted: %v", err)
	}
}

func TestTOFUNoPath(t *testing.T) {
	if err := newTOFUHostKeyCallback("")("h:22", &net.TCPAddr{}, testHostKey(t)); err == nil {
		t.Fatal("expected error without known_hosts path")
	}
}

func TestBuildAuthMethods(t *testing.T) {
	methods, err := buildAuthMethods("pw", "")
	if err != nil || len(methods) != 1 {
		t.Fatalf("password auth: %v, %d methods", err, len(methods))
	}
	if _, err := buildAuthMethods("", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("missing key accepted")
	}
}

func TestClassifySFTPError(t *testing.T) {
	if classifySFTPError("stat", os.ErrNotExist).IsTransient() {
		t.Error("missing file should be permanent")
	}
	if !classifySFTPError("dial", &net.OpError{Op: "dial", Err: errors.New("refused")}).IsTransient() {
		t.Error("network error should be transient")
	}
}

// sftpServer is an in-process SSH server exposing root over the sftp
// subsystem with password auth for sins/pw.
type sftpServer struct {
	addr    string
	root    string
	hostKey ssh.PublicKey
}

func (s *sftpServer) url(name string) string {
	return fmt.Sprintf("sftp://sins:pw@%s%s", s.addr, filepath.ToSlash(filepath.Join(s.root, name)))
}

func startSFTPServer(t *testing.T, files map[string]string) *sftpServer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			if c.User() == "sins" && string(pw) == "pw" {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	cfg.AddHostKey(signer)

	root := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSH(conn, cfg)
		}
	}()
	return &sftpServer{addr: ln.Addr().String(), root: root, hostKey: signer.PublicKey()}
}

func serveSSH(conn net.Conn, cfg *ssh.ServerConfig) {
	defer conn.Close()
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)
	for nc := range chans {
		if nc.ChannelType() != "session" {
			nc.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, requests, err := nc.Accept()
		if err != nil {
			continue
		}
		go func() {
			for req := range requests {
				ok := req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp"
				req.Reply(ok, nil)
				if !ok {
					continue
				}
				srv, err := sftp.NewServer(ch)
				if err != nil {
					ch.Close()
					return
				}
				srv.Serve()
				srv.Close()
				return
			}
		}()
	}
}

func newTestSFTP(srv *sftpServer) (*SFTPTransfer, afero.Fs) {
	fs := afero.NewMemMapFs()
	s := NewSFTPTransfer(fs, "")
	s.HostKeys = ssh.FixedHostKey(srv.hostKey)
	return s, fs
}

const sftpBody = "0123456789abcdefghij"

func TestSFTPFetchFresh(t *testing.T) {
	srv := startSFTPServer(t, map[string]string{"a.zip": sftpBody})
	s, fs := newTestSFTP(srv)
	p := &countingProgress{}

	if err := s.Fetch(context.Background(), srv.url("a.zip"), "/dl/a.zip", p); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, _ := afero.ReadFile(fs, "/dl/a.zip")
	if string(got) != sftpBody {
		t.Fatalf("got %q", got)
	}
	if p.offset != 0 || p.total != int64(len(sftpBody)) || p.written.Load() != int64(len(sftpBody)) {
		t.Fatalf("progress offset=%d total=%d written=%d", p.offset, p.total, p.written.Load())
	}
}

func TestSFTPFetchResumes(t *testing.T) {
	srv := startSFTPServer(t, map[string]string{"a.zip": sftpBody})
	s, fs := newTestSFTP(srv)
	if err := afero.WriteFile(fs, "/dl/a.zip", []byte(sftpBody[:7]), 0o644); err != nil {
		t.Fatal(err)
	}
	p := &countingProgress{}

	if err := s.Fetch(context.Background(), srv.url("a.zip"), "/dl/a.zip", p); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, _ := afero.ReadFile(fs, "/dl/a.zip")
	if string(got) != sftpBody {
		t.Fatalf("resumed file = %q", got)
	}
	if p.offset != 7 || p.written.Load() != int64(len(sftpBody)-7) {
		t.Fatalf("progress offset=%d written=%d", p.offset, p.written.Load())
	}
}

func TestSFTPFetchAlreadyComplete(t *testing.T) {
	srv := startSFTPServer(t, map[string]string{"a.zip": sftpBody})
	s, fs := newTestSFTP(srv)
	if err := afero.WriteFile(fs, "/dl/a.zip", []byte(sftpBody), 0o644); err != nil {
		t.Fatal(err)
	}
	p := &countingProgress{}

	if err := s.Fetch(context.Background(), srv.url("a.zip"), "/dl/a.zip", p); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, _ := afero.ReadFile(fs, "/dl/a.zip")
	if string(got) != sftpBody {
		t.Fatalf("complete file changed: %q", got)
	}
	if p.written.Load() != 0 || p.started.Load() != 1 {
		t.Fatalf("written=%d started=%d", p.written.Load(), p.started.Load())
	}
}

func TestSFTPFetchMissingFile(t *testing.T) {
	srv := startSFTPServer(t, nil)
	s, _ := newTestSFTP(srv)
	err := s.Fetch(context.Background(), srv.url("gone.zip"), "/dl/gone.zip", nil)
	var terr *TransferError
	if !errors.As(err, &terr) || terr.IsTransient() {
		t.Fatalf("want permanent error, got %v", err)
	}
}

func TestSFTPFetchBadPassword(t *testing.T) {
	srv := startSFTPServer(t, map[string]string{"a.zip": sftpBody})
	s, _ := newTestSFTP(srv)
	bad := strings.Replace(srv.url("a.zip"), "sins:pw@", "sins:nope@", 1)
	if err := s.Fetch(context.Background(), bad, "/dl/a.zip", nil); err == nil {
		t.Fatal("wrong password accepted")
	}
}
