package util

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// NewProxyFunc creates a proxy function from the HTTP config.
// If no proxy URLs are configured, falls back to environment variables.
// An HTTP proxy alone also serves https requests; no_proxy is honoured.
func NewProxyFunc(cfg model.HTTPConfig) func(*http.Request) (*url.URL, error) {
	if cfg.HTTPProxy == "" && cfg.HTTPSProxy == "" {
		return http.ProxyFromEnvironment
	}

	httpsProxy := cfg.HTTPSProxy
	if httpsProxy == "" {
		httpsProxy = cfg.HTTPProxy
	}
	proxy := (&httpproxy.Config{
		HTTPProxy:  cfg.HTTPProxy,
		HTTPSProxy: httpsProxy,
		NoProxy:    cfg.NoProxy,
	}).ProxyFunc()

	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}
