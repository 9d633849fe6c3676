package helpers

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"stock-chatbot/src/logger"
)

// DefaultProxyCooldown is how long a refused proxy sits out
const DefaultProxyCooldown = 2 * time.Minute

var browserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
}

// -----------------------------------------------------------------------------

// ProxyPool hands out outbound proxies round robin. A proxy the quote
// endpoints refused is benched for the cooldown; when every proxy is benched
// the one released soonest is used anyway.
type ProxyPool struct {
	mu       sync.Mutex
	proxies  []*url.URL
	benched  map[string]time.Time
	next     int
	cooldown time.Duration
	agent    string
	now      func() time.Time
	logger   *logger.Logger
}

// -----------------------------------------------------------------------------

// NewProxyPool keeps the proxies that parse. An empty userAgent picks a
// browser agent per request.
func NewProxyPool(proxies []string, userAgent string, cooldown time.Duration) *ProxyPool {
	if cooldown <= 0 {
		cooldown = DefaultProxyCooldown
	}
	p := &ProxyPool{
		benched:  make(map[string]time.Time),
		cooldown: cooldown,
		agent:    strings.TrimSpace(userAgent),
		now:      time.Now,
		logger:   logger.NewLogger(nil, "ProxyPool"),
	}
	for _, raw := range proxies {
		u, err := ParseProxy(raw)
		if err != nil {
			p.logger.Warning("Skipping proxy: %v", err)
			continue
		}
		p.proxies = append(p.proxies, u)
	}
	return p
}

// -----------------------------------------------------------------------------

// Proxy returns the proxy for the next request, nil for a direct connection
func (p *ProxyPool) Proxy() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return nil
	}

	now := p.now()
	var fallback *url.URL
	var fallbackUntil time.Time
	for i := range p.proxies {
		u := p.proxies[(p.next+i)%len(p.proxies)]
		until, benched := p.benched[u.Host]
		if !benched || !now.Before(until) {
			delete(p.benched, u.Host)
			p.next = (p.next + i + 1) % len(p.proxies)
			return u
		}
		if fallback == nil || until.Before(fallbackUntil) {
			fallback, fallbackUntil = u, until
		}
	}
	return fallback
}

// -----------------------------------------------------------------------------

// Block benches u for the cooldown
func (p *ProxyPool) Block(u *url.URL) {
	if u == nil {
		return
	}
	p.mu.Lock()
	p.benched[u.Host] = p.now().Add(p.cooldown)
	p.mu.Unlock()
	p.logger.Info("Proxy %s benched for %s", u.Host, p.cooldown)
}

// -----------------------------------------------------------------------------

func (p *ProxyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// UserAgent returns the configured agent, or a random browser agent
func (p *ProxyPool) UserAgent() string {
	if p.agent != "" {
		return p.agent
	}
	return browserAgents[rand.IntN(len(browserAgents))]
}

// -----------------------------------------------------------------------------

// ParseProxy accepts "host:port" or a full http, https or socks5 URL
func ParseProxy(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty proxy")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy '%s': %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme '%s'", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy '%s' has no host", raw)
	}
	return u, nil
}
