// Package device collects the fingerprint of the installation the session core runs on.
package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strings"
	"sync"

	"repairdesk/backend/internal/device/domain"
)

// ErrCollect is returned when the device fingerprint cannot be collected.
var ErrCollect = errors.New("device: fingerprint collection failed")

// Provider supplies the installation's device fingerprint.
type Provider interface {
	// Current returns the fingerprint cached for this installation, collecting it on first use.
	Current(ctx context.Context) (domain.Fingerprint, error)
	// Collect gathers a fresh fingerprint and replaces the cached one.
	Collect(ctx context.Context) (domain.Fingerprint, error)
}

// AddrFunc lists the host's interface addresses. net.InterfaceAddrs in production.
type AddrFunc func() ([]net.Addr, error)

// SystemProvider collects fingerprints from the running host.
type SystemProvider struct {
	platform  string
	userAgent string
	addrs     AddrFunc

	mu     sync.Mutex
	cached *domain.Fingerprint
}

// Option configures a SystemProvider.
type Option func(*SystemProvider)

// WithPlatform overrides the platform reported (e.g. "android" when embedded in a mobile shell).
func WithPlatform(platform string) Option {
	return func(p *SystemProvider) {
		if s := strings.TrimSpace(platform); s != "" {
			p.platform = strings.ToLower(s)
		}
	}
}

// WithAddrFunc replaces interface enumeration.
func WithAddrFunc(fn AddrFunc) Option {
	return func(p *SystemProvider) {
		if fn != nil {
			p.addrs = fn
		}
	}
}

// NewSystemProvider returns a provider for the current host. version is embedded in the user agent.
func NewSystemProvider(version string, opts ...Option) *SystemProvider {
	if version == "" {
		version = "dev"
	}
	p := &SystemProvider{
		platform:  runtime.GOOS,
		userAgent: fmt.Sprintf("repairdesk/%s (%s; %s)", version, runtime.GOOS, runtime.GOARCH),
		addrs:     net.InterfaceAddrs,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Current returns the cached fingerprint. A failed collection is not cached.
func (p *SystemProvider) Current(ctx context.Context) (domain.Fingerprint, error) {
	p.mu.Lock()
	if p.cached != nil {
		fp := *p.cached
		p.mu.Unlock()
		return fp, nil
	}
	p.mu.Unlock()
	return p.Collect(ctx)
}

// Collect gathers a fresh fingerprint and caches it.
func (p *SystemProvider) Collect(ctx context.Context) (domain.Fingerprint, error) {
	if err := ctx.Err(); err != nil {
		return domain.Fingerprint{}, fmt.Errorf("%w: %v", ErrCollect, err)
	}
	addr, err := p.primaryAddress()
	if err != nil {
		return domain.Fingerprint{}, fmt.Errorf("%w: %v", ErrCollect, err)
	}
	fp := domain.Fingerprint{Platform: p.platform, UserAgent: p.userAgent, Address: addr}
	p.mu.Lock()
	p.cached = &fp
	p.mu.Unlock()
	return fp, nil
}

// primaryAddress returns the first non-loopback unicast address, preferring IPv4.
func (p *SystemProvider) primaryAddress() (string, error) {
	addrs, err := p.addrs()
	if err != nil {
		return "", err
	}
	var v6 string
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsMulticast() {
			continue
		}
		if ip.To4() != nil {
			return ip.String(), nil
		}
		if v6 == "" {
			v6 = ip.String()
		}
	}
	if v6 != "" {
		return v6, nil
	}
	return domain.UnknownAddress, nil
}

// Fixed is a Provider that always returns the configured fingerprint. Used in tests and
// when the embedding shell supplies the fingerprint itself.
type Fixed struct {
	mu  sync.Mutex
	fp  domain.Fingerprint
	err error
}

// NewFixed returns a Fixed provider for fp.
func NewFixed(fp domain.Fingerprint) *Fixed {
	return &Fixed{fp: fp}
}

// Set replaces the fingerprint returned by subsequent calls.
func (f *Fixed) Set(fp domain.Fingerprint) {
	f.mu.Lock()
	f.fp = fp
	f.mu.Unlock()
}

// Fail makes subsequent calls return err (nil restores normal behaviour).
func (f *Fixed) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Current returns the configured fingerprint.
func (f *Fixed) Current(ctx context.Context) (domain.Fingerprint, error) {
	return f.Collect(ctx)
}

// Collect returns the configured fingerprint.
func (f *Fixed) Collect(context.Context) (domain.Fingerprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Fingerprint{}, fmt.Errorf("%w: %v", ErrCollect, f.err)
	}
	return f.fp, nil
}
