package gateway

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutboundHeaders_Exclusion(t *testing.T) {
	t.Parallel()
	in := http.Header{}
	in.Set("Cookie", "a=b")
	in.Set("Host", "proxy.local")
	in.Set("mu-session-id", "http://mu.semte.ch/sessions/1")
	in.Set("mu-call-id", "42")
	in.Set("mu-auth-allowed-groups", "[]")
	in.Set("Referer", "https://loket.example")
	in.Set("Origin", "https://loket.example")
	in.Set("Content-Length", "12")
	in.Set("Accept-Encoding", "gzip")
	in.Set("Connection", "keep-alive, X-Hop")
	in.Set("X-Hop", "1")
	in.Set("Authorization", "Bearer caller")
	in.Set("Accept", "application/json")
	in.Set("If-Match", `W/"3"`)
	in.Set("VR-Initiator", "OVO999999")

	out := OutboundHeaders(in, "upstream-token", "OVO002949", "")

	for _, h := range []string{"Cookie", "Host", "mu-session-id", "mu-call-id", "mu-auth-allowed-groups",
		"Referer", "Origin", "Content-Length", "Accept-Encoding", "Connection", "X-Hop"} {
		assert.Empty(t, out.Values(h), h)
	}
	assert.Equal(t, "application/json", out.Get("Accept"))
	assert.Equal(t, `W/"3"`, out.Get("If-Match"))
	assert.Equal(t, "Bearer upstream-token", out.Get("Authorization"))
	assert.Equal(t, []string{"OVO002949"}, out.Values("VR-Initiator"), "proxy headers win over inbound ones")
	assert.Empty(t, out.Get("vr-api-version"))
	assert.Len(t, out.Get("x-correlation-id"), 36)
}

func TestOutboundHeaders_FreshCorrelationID(t *testing.T) {
	t.Parallel()
	in := http.Header{}
	in.Set("x-correlation-id", "caller-chosen")
	a := OutboundHeaders(in, "t", "OVO1", "2")
	b := OutboundHeaders(in, "t", "OVO1", "2")

	assert.NotEqual(t, "caller-chosen", a.Get("x-correlation-id"))
	assert.NotEqual(t, a.Get("x-correlation-id"), b.Get("x-correlation-id"))
	assert.Equal(t, "2", a.Get("vr-api-version"))
}

func TestExcluded_CaseInsensitive(t *testing.T) {
	t.Parallel()
	assert.True(t, Excluded("COOKIE"))
	assert.True(t, Excluded("Mu-Session-Id"))
	assert.True(t, Excluded("transfer-encoding"))
	assert.False(t, Excluded("If-None-Match"))
}
