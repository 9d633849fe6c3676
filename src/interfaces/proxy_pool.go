package interfaces

import "net/url"

// -----------------------------------------------------------------------------
// IProxyPool picks outbound proxies and user agents for quote requests.
// -----------------------------------------------------------------------------

type IProxyPool interface {

	// Proxy returns the proxy for the next request, nil for a direct connection.
	Proxy() *url.URL

	// Block benches a proxy the upstream refused.
	Block(u *url.URL)

	// UserAgent returns the User-Agent header for the next request.
	UserAgent() string
}
