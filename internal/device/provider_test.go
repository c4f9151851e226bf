package device

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/device/domain"
)

func ipNet(s string) net.Addr {
	return &net.IPNet{IP: net.ParseIP(s), Mask: net.CIDRMask(24, 32)}
}

func TestSystemProvider_PrefersNonLoopbackIPv4(t *testing.T) {
	p := NewSystemProvider("1.2.3", WithPlatform("Android"), WithAddrFunc(func() ([]net.Addr, error) {
		return []net.Addr{ipNet("127.0.0.1"), ipNet("fe80::1"), ipNet("2001:db8::5"), ipNet("192.168.1.20")}, nil
	}))

	fp, err := p.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "android", fp.Platform)
	assert.Equal(t, "192.168.1.20", fp.Address)
	assert.True(t, strings.HasPrefix(fp.UserAgent, "repairdesk/1.2.3 ("))
}

func TestSystemProvider_FallsBackToIPv6ThenUnknown(t *testing.T) {
	p := NewSystemProvider("", WithAddrFunc(func() ([]net.Addr, error) {
		return []net.Addr{ipNet("::1"), ipNet("2001:db8::5")}, nil
	}))
	fp, err := p.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::5", fp.Address)

	p = NewSystemProvider("", WithAddrFunc(func() ([]net.Addr, error) {
		return []net.Addr{ipNet("127.0.0.1")}, nil
	}))
	fp, err = p.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownAddress, fp.Address)
}

func TestSystemProvider_CurrentCachesAndCollectRefreshes(t *testing.T) {
	addr := "10.0.0.1"
	calls := 0
	p := NewSystemProvider("v", WithAddrFunc(func() ([]net.Addr, error) {
		calls++
		return []net.Addr{ipNet(addr)}, nil
	}))
	ctx := context.Background()

	first, err := p.Current(ctx)
	require.NoError(t, err)
	addr = "10.0.0.2"
	second, err := p.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	fresh, err := p.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", fresh.Address)
	cached, err := p.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh, cached)
}

func TestSystemProvider_FailureIsNotCached(t *testing.T) {
	fail := true
	p := NewSystemProvider("v", WithAddrFunc(func() ([]net.Addr, error) {
		if fail {
			return nil, errors.New("no interfaces")
		}
		return []net.Addr{ipNet("10.1.1.1")}, nil
	}))
	_, err := p.Current(context.Background())
	require.ErrorIs(t, err, ErrCollect)

	fail = false
	fp, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", fp.Address)
}

func TestFixed(t *testing.T) {
	f := NewFixed(domain.Fingerprint{Platform: "web", Address: "1.1.1.1"})
	fp, err := f.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "web", fp.Platform)

	f.Set(domain.Fingerprint{Platform: "android"})
	fp, err = f.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "android", fp.Platform)

	f.Fail(errors.New("boom"))
	_, err = f.Current(context.Background())
	assert.ErrorIs(t, err, ErrCollect)
}
