package gateway

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	HeaderCorrelationID = "x-correlation-id"
	HeaderInitiator     = "VR-Initiator"
	HeaderAPIVersion    = "vr-api-version"
	HeaderSequence      = "vr-sequence"
)

// excludedHeaders are never forwarded upstream: identity-layer headers, hop-by-hop headers,
// the caller's credentials and browser context.
var excludedHeaders = func() map[string]struct{} {
	m := map[string]struct{}{}
	for _, h := range []string{
		"mu-session-id", "mu-call-id", "mu-auth-allowed-groups", "mu-auth-used-groups",
		"mu-call-scope-id", "mu-auth-sudo",
		"authorization", "host", "connection", "keep-alive", "proxy-connection",
		"proxy-authorization", "te", "trailer", "transfer-encoding", "upgrade",
		"content-length", "accept-encoding", "x-powered-by",
		"cookie", "set-cookie", "referer", "origin",
	} {
		m[http.CanonicalHeaderKey(h)] = struct{}{}
	}
	return m
}()

// relayedHeaders are copied from the upstream response when present.
var relayedHeaders = []string{"ETag", HeaderSequence, "Location"}

// Excluded reports whether an inbound header is dropped before forwarding.
func Excluded(name string) bool {
	_, ok := excludedHeaders[http.CanonicalHeaderKey(strings.TrimSpace(name))]
	return ok
}

// OutboundHeaders copies the forwardable inbound headers and sets the proxy's own,
// which take precedence over anything the caller sent.
func OutboundHeaders(in http.Header, token, tenantCode, apiVersion string) http.Header {
	out := make(http.Header, len(in)+4)
	for k, vs := range in {
		if Excluded(k) {
			continue
		}
		out[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	// Headers named in Connection are hop-by-hop as well.
	for _, v := range in.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}
	out.Set("Authorization", "Bearer "+token)
	out.Set(HeaderCorrelationID, uuid.NewString())
	if tenantCode != "" {
		out.Set(HeaderInitiator, tenantCode)
	} else {
		out.Del(HeaderInitiator)
	}
	if apiVersion != "" {
		out.Set(HeaderAPIVersion, apiVersion)
	}
	return out
}
