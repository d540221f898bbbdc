package geoip

import (
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	code   string
	err    error
	calls  int
	closed bool
}

func (f *fakeReader) Country(ip net.IP) (*geoip2.Country, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rec := &geoip2.Country{}
	rec.Country.IsoCode = f.code
	return rec, nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestOpenEmptyPath(t *testing.T) {
	r, err := Open("  ")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Nil(t, r.Lookup())
	assert.NoError(t, r.Close())

	_, err = r.CountryCode("8.8.8.8")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Error(t, err)
}

func TestCountryCode(t *testing.T) {
	reader := &fakeReader{code: "tw"}
	r := &Resolver{reader: reader}

	code, err := r.CountryCode("203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, "TW", code)

	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.4", "::1", "0.0.0.0"} {
		code, err := r.CountryCode(ip)
		require.NoError(t, err)
		assert.Empty(t, code, ip)
	}
	assert.Equal(t, 1, reader.calls)

	_, err = r.CountryCode("not-an-ip")
	assert.Error(t, err)

	lookup := r.Lookup()
	require.NotNil(t, lookup)
	code, err = lookup("198.51.100.7")
	require.NoError(t, err)
	assert.Equal(t, "TW", code)

	require.NoError(t, r.Close())
	assert.True(t, reader.closed)
}

func TestCountryCodeLookupError(t *testing.T) {
	r := &Resolver{reader: &fakeReader{err: errors.New("corrupt")}}
	_, err := r.CountryCode("198.51.100.7")
	assert.Error(t, err)
}
