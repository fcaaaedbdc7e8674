package web

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

// DefaultUserAgent mimics a desktop browser; many origins refuse obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type FetcherOptions struct {
	Timeout      time.Duration
	DialTimeout  time.Duration
	MaxBodyBytes int64
	UserAgent    string
	MaxRedirects int
	// BlockPrivate refuses connections to loopback, private and link-local addresses.
	// The check runs on the resolved address of every dial, redirects included.
	BlockPrivate bool
}

// ErrRestrictedAddress is returned when BlockPrivate stops a connection.
var ErrRestrictedAddress = errors.New("destination address is not allowed")

// Fetcher retrieves a resource over HTTP, following redirects.
type Fetcher struct {
	client    *http.Client
	sizeCap   int64
	userAgent string
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}

	dialer := &net.Dialer{
		Timeout:   opts.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	proxy := http.ProxyFromEnvironment
	if opts.BlockPrivate {
		dialer.Control = guardDial
		// a proxy would hide the real destination from the guard
		proxy = nil
	}
	transport := &http.Transport{
		Proxy:               proxy,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
	}
	maxRedirects := opts.MaxRedirects
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		sizeCap:   opts.MaxBodyBytes,
		userAgent: opts.UserAgent,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (classification.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return classification.Document{}, &classification.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return classification.Document{}, &classification.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classification.Document{}, &classification.FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return classification.Document{}, &classification.FetchError{URL: rawURL, Err: err}
		}
		defer gz.Close()
		body = gz
	}

	// enforce a size cap
	data, err := io.ReadAll(io.LimitReader(body, f.sizeCap))
	if err != nil {
		return classification.Document{}, &classification.FetchError{URL: rawURL, Err: err}
	}

	return classification.Document{
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// guardDial runs after name resolution with the literal ip:port being dialled.
func guardDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || Restricted(ip) {
		return fmt.Errorf("%w: %s", ErrRestrictedAddress, host)
	}
	return nil
}

// Restricted reports addresses a public fetcher must never reach.
func Restricted(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsUnspecified() || ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast()
}
