package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
)

// maxBodyBytes caps how much of a response we read
const maxBodyBytes = 4 << 20

type proxyKey struct{}

// AsyncNetworkManager is the shared HTTP client of the quote sources. The
// proxy is chosen per request and travels in the request context, so a
// refused proxy can be benched without rebuilding the client.
type AsyncNetworkManager struct {
	Config  *models.MConfig
	Proxies interfaces.IProxyPool
	Logger  *logger.Logger
	client  *http.Client
	backoff time.Duration
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:  cfg,
		Proxies: helpers.NewProxyPool(proxies, cfg.Network.UserAgent, helpers.DefaultProxyCooldown),
		Logger:  log,
		backoff: 500 * time.Millisecond,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		u, _ := req.Context().Value(proxyKey{}).(*url.URL)
		return u, nil
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(nm.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation. The context
// bounds the whole call including backoff waits.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, helpers.NewValidationError(fmt.Sprintf("invalid url '%s'", urlStr))
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	attempts := nm.Config.Network.MaxRetries + 1
	body, err := helpers.RetryWithBackoff(ctx, nm.Logger, "GET "+reqURL.Host+reqURL.Path, attempts, nm.backoff,
		func(ctx context.Context) ([]byte, error) {
			return nm.doGet(ctx, finalURL)
		})
	if err != nil {
		return nil, helpers.NewNetworkError(fmt.Sprintf("GET %s%s failed", reqURL.Host, reqURL.Path), err)
	}
	return body, nil
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) doGet(ctx context.Context, finalURL string) ([]byte, error) {
	proxy := nm.Proxies.Proxy()
	if proxy != nil {
		ctx = context.WithValue(ctx, proxyKey{}, proxy)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", nm.Proxies.UserAgent())
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := nm.client.Do(req)
	if err != nil {
		nm.Logger.Debug("Request failed: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		nm.Logger.Info("Request blocked (%d)", resp.StatusCode)
		nm.Proxies.Block(proxy)
		return nil, fmt.Errorf("blocked (status %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		// Not retried: the resource does not exist
		return nil, helpers.NewValidationError("not found (status 404)")
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}
