package dnsbl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeForQueryIPv4(t *testing.T) {
	got, err := EncodeForQuery("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "4.3.2.1", got)

	got, err = EncodeForQuery(" 127.0.0.2 ")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0.127", got)
}

func TestEncodeForQueryIPv6Compressed(t *testing.T) {
	got, err := EncodeForQuery("2001:db8::1")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2", got)
	assert.Len(t, strings.Split(got, "."), 32)
}

func TestEncodeForQueryIPv6Full(t *testing.T) {
	got, err := EncodeForQuery("2001:0DB8:85a3:0000:0000:8a2e:0370:7334")
	require.NoError(t, err)
	assert.Equal(t, "4.3.3.7.0.7.3.0.e.2.a.8.0.0.0.0.0.0.0.0.3.a.5.8.8.b.d.0.1.0.0.2", got)
}

func TestEncodeForQueryIPv6LeadingCompression(t *testing.T) {
	got, err := EncodeForQuery("::1")
	require.NoError(t, err)
	assert.Equal(t, "1"+strings.Repeat(".0", 31), got)
}

func TestEncodeForQueryMappedLiteralUsesNibbles(t *testing.T) {
	got, err := EncodeForQuery("::ffff:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "4.0.3.0.2.0.1.0.f.f.f.f"+strings.Repeat(".0", 20), got)
}

func TestEncodeForQueryRejectsMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"not-an-ip",
		"1.2.3",
		"1.2.3.4.5",
		"256.1.1.1",
		"2001:db8::g",
		"1:2:3:4:5:6:7:8:9",
		"2001:db8::1::2",
		"fe80::1%eth0",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := EncodeForQuery(input)
			require.ErrorIs(t, err, ErrInvalidAddressFormat)
		})
	}
}
