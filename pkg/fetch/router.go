package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Router dispatches to a Transfer by URL scheme.
type Router struct {
	routes map[string]Transfer
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Client         *http.Client
	SSHKeyPath     string
	KnownHostsPath string
}

// NewRouter registers http, https, ftp, ftps and sftp transfers writing
// into fs.
func NewRouter(fs afero.Fs, opts RouterOptions) *Router {
	r := &Router{routes: make(map[string]Transfer)}
	h := NewHTTPTransfer(fs, opts.Client)
	r.Register("http", h)
	r.Register("https", h)
	f := NewFTPTransfer(fs)
	r.Register("ftp", f)
	r.Register("ftps", f)
	s := NewSFTPTransfer(fs, opts.KnownHostsPath)
	s.KeyPath = opts.SSHKeyPath
	r.Register("sftp", s)
	return r
}

// Register adds or replaces the transfer for scheme.
func (r *Router) Register(scheme string, t Transfer) {
	r.routes[strings.ToLower(scheme)] = t
}

// Schemes lists registered schemes, sorted.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.routes))
	for s := range r.routes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (r *Router) Fetch(ctx context.Context, rawURL, dest string, p Progress) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return permanentErr("route", "parse", err)
	}
	scheme := strings.ToLower(u.Scheme)
	t, ok := r.routes[scheme]
	if !ok {
		return permanentErr("route", "scheme", fmt.Errorf("%w %q (supported: %s)",
			ErrUnsupportedScheme, scheme, strings.Join(r.Schemes(), ", ")))
	}
	return t.Fetch(ctx, rawURL, dest, p)
}
