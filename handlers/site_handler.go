package handlers

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/google/uuid"
	"github.com/upb/cfaccess/middleware"
	"github.com/upb/cfaccess/utils"
	"go.uber.org/zap"
)

// Identity headers set on proxied requests. Client-supplied values are always dropped.
const (
	HeaderAuthEmail     = "X-Auth-Email"
	HeaderAuthAccountID = "X-Auth-Account-ID"
	HeaderAuthUsername  = "X-Auth-Username"
)

// SiteHandler serves protected site content, either by proxying to an
// upstream application or by answering with the caller's identity.
type SiteHandler struct {
	upstream *url.URL
	proxy    *httputil.ReverseProxy
	logger   *zap.Logger
}

// NewSiteHandler creates a SiteHandler. An empty upstreamURL disables proxying.
func NewSiteHandler(upstreamURL string, logger *zap.Logger) (*SiteHandler, error) {
	h := &SiteHandler{logger: logger}
	if upstreamURL == "" {
		return h, nil
	}

	target, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q: scheme and host are required", upstreamURL)
	}

	h.upstream = target
	h.proxy = httputil.NewSingleHostReverseProxy(target)
	base := h.proxy.Director
	h.proxy.Director = func(req *http.Request) {
		base(req)
		setIdentityHeaders(req)
	}
	h.proxy.ErrorHandler = h.handleProxyError
	return h, nil
}

// ServeHTTP implements http.Handler
func (h *SiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.proxy == nil {
		h.serveIdentity(w, r)
		return
	}
	h.proxy.ServeHTTP(w, r)
}

func (h *SiteHandler) serveIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := map[string]interface{}{
		"path":  r.URL.Path,
		"email": middleware.GetEmailFromContext(ctx),
	}
	if id := middleware.GetAccountIDFromContext(ctx); id != uuid.Nil {
		data["account_id"] = id.String()
	}
	_ = utils.WriteOK(w, data)
}

func (h *SiteHandler) handleProxyError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("upstream request failed",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("upstream", h.upstream.Host),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	_ = utils.WriteError(w, http.StatusBadGateway, "Upstream unavailable")
}

// setIdentityHeaders replaces any identity headers with the verified values
func setIdentityHeaders(req *http.Request) {
	req.Header.Del(HeaderAuthEmail)
	req.Header.Del(HeaderAuthAccountID)
	req.Header.Del(HeaderAuthUsername)

	ctx := req.Context()
	if email := middleware.GetEmailFromContext(ctx); email != "" {
		req.Header.Set(HeaderAuthEmail, email)
	}
	if id := middleware.GetAccountIDFromContext(ctx); id != uuid.Nil {
		req.Header.Set(HeaderAuthAccountID, id.String())
	}
	if account := middleware.GetAccountFromContext(ctx); account != nil {
		req.Header.Set(HeaderAuthUsername, account.Username)
	}
}
