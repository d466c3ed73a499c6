package cerberus

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveClientIP(t *testing.T) {
	cases := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"forwarded list takes first", map[string]string{"X-Forwarded-For": " 203.0.113.1 , 10.0.0.1"}, "203.0.113.1"},
		{"real ip fallback", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "192.0.2.1", "X-Real-IP": "192.0.2.2"}, "192.0.2.1"},
		{"empty forwarded entry falls through", map[string]string{"X-Forwarded-For": " , 1.1.1.1", "X-Real-IP": "192.0.2.3"}, "192.0.2.3"},
		{"nothing", map[string]string{}, UnknownIP},
		{"ipv6 canonical", map[string]string{"X-Forwarded-For": "2001:DB8:0:0:0:0:0:1"}, "2001:db8::1"},
		{"garbage kept verbatim", map[string]string{"X-Forwarded-For": "not-an-ip"}, "not-an-ip"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tc.header {
				h.Set(k, v)
			}
			assert.Equal(t, tc.want, ResolveClientIP(h))
		})
	}
}

func TestMatchList(t *testing.T) {
	list := buildMatchList([]string{"10.0.0.0/8", "192.168.1.1", "2001:db8::/32", "bogus"})
	assert.Equal(t, 3, list.size)

	assert.True(t, list.contains("10.20.30.40"))
	assert.True(t, list.contains("192.168.1.1"))
	assert.True(t, list.contains("2001:db8:1::5"))
	assert.False(t, list.contains("192.168.1.2"))
	assert.False(t, list.contains(UnknownIP))
	assert.False(t, list.contains(""))

	empty := buildMatchList(nil)
	assert.False(t, empty.contains("10.0.0.1"))
}

func TestNormalizeIP(t *testing.T) {
	ip, ok := NormalizeIP(" 192.0.2.10 ")
	assert.True(t, ok)
	assert.Equal(t, "192.0.2.10", ip)

	ip, ok = NormalizeIP("2001:DB8::0:1")
	assert.True(t, ok)
	assert.Equal(t, "2001:db8::1", ip)

	for _, bad := range []string{"", "10.0.0.0/8", "example.com", "unknown", "10.0.0.*"} {
		_, ok := NormalizeIP(bad)
		assert.False(t, ok, bad)
	}
}
