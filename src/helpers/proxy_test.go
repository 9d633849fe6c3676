package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProxy(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://10.0.0.1:3128", "http://10.0.0.1:3128"},
		{"10.0.0.1:3128", "http://10.0.0.1:3128"},
		{"socks5://proxy.local:1080", "socks5://proxy.local:1080"},
		{"ftp://proxy.local:21", ""},
		{"", ""},
	}
	for _, tt := range tests {
		u, err := ParseProxy(tt.in)
		if tt.want == "" {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, u.String())
	}
}

func TestProxyPoolRoundRobin(t *testing.T) {
	p := NewProxyPool([]string{"10.0.0.1:1", "bad://", "10.0.0.2:2"}, "", 0)
	require.Equal(t, 2, p.Len())

	assert.Equal(t, "10.0.0.1:1", p.Proxy().Host)
	assert.Equal(t, "10.0.0.2:2", p.Proxy().Host)
	assert.Equal(t, "10.0.0.1:1", p.Proxy().Host)
}

func TestProxyPoolBenchesBlocked(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	p := NewProxyPool([]string{"10.0.0.1:1", "10.0.0.2:2"}, "", time.Minute)
	p.now = func() time.Time { return now }

	first := p.Proxy()
	p.Block(first)
	assert.Equal(t, "10.0.0.2:2", p.Proxy().Host)
	assert.Equal(t, "10.0.0.2:2", p.Proxy().Host)

	// Everything benched: the soonest release wins
	now = now.Add(10 * time.Second)
	p.Block(p.Proxy())
	assert.Equal(t, "10.0.0.1:1", p.Proxy().Host)

	now = now.Add(time.Minute)
	hosts := map[string]bool{p.Proxy().Host: true, p.Proxy().Host: true}
	assert.Len(t, hosts, 2)
}

func TestProxyPoolWithoutProxies(t *testing.T) {
	p := NewProxyPool(nil, "stock-chatbot/1.0", 0)
	assert.Nil(t, p.Proxy())
	p.Block(nil)
	assert.Equal(t, "stock-chatbot/1.0", p.UserAgent())
	assert.NotEmpty(t, NewProxyPool(nil, "", 0).UserAgent())
}
