package fetch

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// CommandTransfer runs an external resumable downloader, curl by default:
//
//	curl -L -C - -sS --fail -o DEST URL [-x PROXY]
//
// It works on OS paths only. Progress is sampled by watching the size of
// dest since the subprocess reports nothing back.
type CommandTransfer struct {
	Binary string
	// Proxy is passed to -x when set; curl takes http, https and socks5 URLs.
	Proxy string
	// SampleEvery is the progress sampling period.
	SampleEvery time.Duration
}

func NewCommandTransfer(proxy string) *CommandTransfer {
	return &CommandTransfer{Binary: "curl", Proxy: proxy, SampleEvery: time.Second}
}

// Args returns the downloader arguments for one transfer.
func (c *CommandTransfer) Args(rawURL, dest string) []string {
	args := []string{"-L", "-C", "-", "-sS", "--fail", "-o", dest, rawURL}
	if c.Proxy != "" {
		args = append(args, "-x", c.Proxy)
	}
	return args
}

func (c *CommandTransfer) Fetch(ctx context.Context, rawURL, dest string, p Progress) error {
	if p == nil {
		p = NopProgress{}
	}
	start := fileSize(dest)
	p.Started(start, -1)

	cmd := exec.CommandContext(ctx, c.Binary, c.Args(rawURL, dest)...)
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return permanentErr("curl", "start", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	every := c.SampleEvery
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	last := start
	for {
		select {
		case err := <-done:
			if cur := fileSize(dest); cur > last {
				p.Wrote(int(cur - last))
			}
			if err != nil {
				if ctx.Err() != nil {
					return permanentErr("curl", "run", ctx.Err())
				}
				return classifyCurlError(err)
			}
			return nil
		case <-ticker.C:
			if cur := fileSize(dest); cur > last {
				p.Wrote(int(cur - last))
				last = cur
			}
		}
	}
}

// curl exit statuses worth another attempt: resolve/connect failures,
// partial file, timeout, empty reply, send/recv errors.
var transientCurlCodes = map[int]bool{6: true, 7: true, 18: true, 28: true, 52: true, 55: true, 56: true}

func classifyCurlError(err error) *TransferError {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && transientCurlCodes[exitErr.ExitCode()] {
		return transientErr("curl", "run", err)
	}
	return permanentErr("curl", "run", err)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
