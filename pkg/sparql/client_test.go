package sparql

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRows = `{
  "head": {"vars": ["identifier"]},
  "results": {"bindings": [
    {"identifier": {"type": "literal", "value": "OVO000001"}},
    {"other": {"type": "literal", "value": "x"}},
    {"identifier": {"type": "literal", "value": "OVO000002"}}
  ]}
}`

func TestClient_Execute(t *testing.T) {
	t.Parallel()
	var gotQuery, gotSudo, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		gotQuery = form.Get("query")
		gotSudo = r.Header.Get("mu-auth-sudo")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/sparql-results+json")
		_, _ = w.Write([]byte(twoRows))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	res, err := c.Execute(context.Background(), "SELECT * WHERE { ?s ?p ?o }")
	require.NoError(t, err)

	assert.Equal(t, "SELECT * WHERE { ?s ?p ?o }", gotQuery)
	assert.Equal(t, "true", gotSudo)
	assert.Equal(t, "application/sparql-results+json", gotAccept)
	assert.Len(t, res.Bindings(), 3)

	vals, err := res.Values("identifier")
	require.NoError(t, err)
	assert.Equal(t, []string{"OVO000001", "OVO000002"}, vals)
}

func TestClient_Execute_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom"},
		{name: "invalid json", status: http.StatusOK, body: "{not json"},
		{name: "missing bindings", status: http.StatusOK, body: `{"head":{"vars":[]}}`},
		{name: "null bindings", status: http.StatusOK, body: `{"results":{"bindings":null}}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, WithHTTPClient(srv.Client())).Execute(context.Background(), "ASK {}")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrQuery))
			var qe *QueryError
			require.True(t, errors.As(err, &qe))
		})
	}
}

func TestClient_Execute_TransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewClient(srv.URL).Execute(context.Background(), "ASK {}")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuery)
}

func TestParse_AskResult(t *testing.T) {
	t.Parallel()
	res, err := Parse([]byte(`{"head":{},"boolean":true}`))
	require.NoError(t, err)
	require.NotNil(t, res.Boolean)
	assert.True(t, *res.Boolean)
	assert.Nil(t, res.Bindings())
}

func TestEscape(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `<http://mu.semte.ch/sessions/abc>`, EscapeURI("http://mu.semte.ch/sessions/abc"))
	assert.Equal(t, `<http://x/\>\<\"\\>`, EscapeURI(`http://x/><"\`))
	assert.Equal(t, `"""OVO\"1\\"""`, EscapeString(`OVO"1\`))
}
