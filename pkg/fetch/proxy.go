package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

var (
	ErrInvalidProxyURL      = errors.New("invalid proxy URL")
	ErrUnsupportedProxyType = errors.New("unsupported proxy scheme")
)

// DefaultMaxRedirects matches curl's default redirect limit.
const DefaultMaxRedirects = 50

// NewHTTPClient builds the client used by HTTP transfers. proxyURL may be
// empty (environment proxies apply), http(s)://host:port or
// socks5://[user:pass@]host:port.
func NewHTTPClient(proxyURL string, connectTimeout time.Duration) (*http.Client, error) {
	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: 2 * time.Minute,
		MaxIdleConnsPerHost:   16,
	}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyURL, proxyURL)
		}
		switch u.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		case "socks5":
			var auth *proxy.Auth
			if u.User != nil {
				pw, _ := u.User.Password()
				auth = &proxy.Auth{User: u.User.Username(), Password: pw}
			}
			sd, err := proxy.SOCKS5("tcp", u.Host, auth, dialer)
			if err != nil {
				return nil, err
			}
			transport.Proxy = nil
			if cd, ok := sd.(proxy.ContextDialer); ok {
				transport.DialContext = cd.DialContext
			} else {
				transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
					return sd.Dial(network, addr)
				}
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedProxyType, u.Scheme)
		}
	}

	return &http.Client{
		Transport:     transport,
		CheckRedirect: redirectPolicy(DefaultMaxRedirects),
	}, nil
}

func redirectPolicy(max int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}
