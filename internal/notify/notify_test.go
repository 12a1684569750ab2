package notify

import (
	"bufio"
	"bytes"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sinsfetch/sinsfetch/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

var fixedNow = time.Date(2026, 5, 4, 12, 30, 0, 0, time.UTC)

func validConfig() Config {
	return Config{
		From:     "lab@example.org",
		To:       "alice@example.org, bob@example.org",
		SMTPHost: "smtp.example.org",
		SMTPPort: 587,
		Password: "secret",
	}
}

func TestComposeFailureNamesArchive(t *testing.T) {
	res := extract.Result{
		All:       []string{"/s/Node1/a.zip", "/s/Node1/b.zip", "/s/Node1/c.zip", "/s/Node1/d.zip", "/s/Node1/e.zip"},
		Extracted: []string{"/s/Node1/a.zip", "/s/Node1/b.zip", "/s/Node1/d.zip", "/s/Node1/e.zip"},
		Failed:    []string{"/s/Node1/c.zip"},
	}
	msg := Compose(res, fixedNow)

	assert.Equal(t, SubjectFailed, msg.Subject)
	assert.Contains(t, msg.Body, "The following 1 zip files failed to unzip")
	assert.Contains(t, msg.Body, "/s/Node1/c.zip")
	assert.NotContains(t, msg.Body, "/s/Node1/a.zip")
}

func TestComposeSuccess(t *testing.T) {
	msg := Compose(extract.Result{Extracted: []string{"a", "b", "c"}}, fixedNow)
	assert.Equal(t, SubjectComplete, msg.Subject)
	assert.Contains(t, msg.Body, "All 3 zip files were successfully unzipped")
}

func TestDryRunMessage(t *testing.T) {
	msg := DryRun(fixedNow)
	assert.Equal(t, "[Dry Run] Email test succeeded", msg.Subject)
	assert.Contains(t, msg.Body, "2026-05-04 12:30:00")
	assert.Contains(t, msg.Body, "No unzipping was performed")
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.From = "not-an-address"
	cfg.SMTPPort = 70000
	cfg.SMTPHost = ""
	err := cfg.Validate()

	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	fields := map[string]string{}
	for _, f := range cerr.Fields {
		fields[f.Field] = f.Reason
	}
	assert.Contains(t, fields, "from")
	assert.Contains(t, fields, "smtp_host")
	assert.Contains(t, fields, "smtp_port")
	assert.NotContains(t, fields, "to")
	assert.Contains(t, err.Error(), "email.smtp_port")
}

func TestValidateRecipientList(t *testing.T) {
	cfg := validConfig()
	cfg.To = "alice@example.org, nope"
	var cerr *ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &cerr)
	assert.Equal(t, "to", cerr.Fields[0].Field)
}

func TestRecipients(t *testing.T) {
	assert.Equal(t, []string{"alice@example.org", "bob@example.org"}, validConfig().Recipients())
}

func TestPasswordFromKeyring(t *testing.T) {
	keyring.MockInit()
	cfg := validConfig()
	cfg.Password = ""

	_, err := NewSMTPMailer(cfg)
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr, "missing password without keyring entry")
	assert.Equal(t, "password", cerr.Fields[0].Field)

	require.NoError(t, StorePassword(cfg.From, "from-keyring"))
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", m.cfg.Password)
}

func TestNewSMTPMailerRejectsInvalid(t *testing.T) {
	cfg := validConfig()
	cfg.To = ""
	_, err := NewSMTPMailer(cfg)
	var cerr *ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestMessage(t *testing.T) {
	m, err := NewSMTPMailer(validConfig())
	require.NoError(t, err)
	m.now = func() time.Time { return fixedNow }

	mm, err := m.message(Message{Subject: SubjectFailed, Body: "line1\nline2\n"})
	require.NoError(t, err)
	var b bytes.Buffer
	_, err = mm.WriteTo(&b)
	require.NoError(t, err)
	raw := b.String()

	assert.Contains(t, raw, "lab@example.org")
	assert.Contains(t, raw, "alice@example.org")
	assert.Contains(t, raw, "bob@example.org")
	assert.Contains(t, raw, "Subject: [Task Failed] Some zip files failed\r\n")
	assert.Contains(t, raw, "04 May 2026 12:30:00")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "line1")
	assert.Contains(t, raw, "line2")
}

// plainSMTPServer accepts one session and never offers STARTTLS.
func plainSMTPServer(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		conn.Write([]byte("220 test ESMTP\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"):
				conn.Write([]byte("250-test\r\n250 AUTH PLAIN\r\n"))
			case strings.HasPrefix(cmd, "QUIT"):
				conn.Write([]byte("221 bye\r\n"))
				return
			default:
				conn.Write([]byte("502 unsupported\r\n"))
			}
		}
	}()

	h, p, _ := net.SplitHostPort(ln.Addr().String())
	port, _ = strconv.Atoi(p)
	return h, port
}

func TestSendRequiresStartTLS(t *testing.T) {
	host, port := plainSMTPServer(t)
	cfg := validConfig()
	cfg.SMTPHost, cfg.SMTPPort = host, port
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	err = m.Send(DryRun(fixedNow))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARTTLS")
}

func TestSendUnreachable(t *testing.T) {
	cfg := validConfig()
	cfg.SMTPHost, cfg.SMTPPort = "127.0.0.1", 1
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)
	m.Timeout = time.Second

	err = m.Send(DryRun(fixedNow))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
