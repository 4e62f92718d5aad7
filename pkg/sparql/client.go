// Package sparql executes queries against the triple store on behalf of the proxy.
package sparql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jmes "github.com/jmespath/go-jmespath"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrQuery is matched by every QueryError.
var ErrQuery = errors.New("query failed")

// QueryError reports a transport, status or decoding failure of the query executor.
type QueryError struct {
	Status int
	Msg    string
	Err    error
}

func (e *QueryError) Error() string {
	var b strings.Builder
	b.WriteString("sparql query failed")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// Executor runs a query and returns its variable bindings.
type Executor interface {
	Execute(ctx context.Context, query string) (*Result, error)
}

// Term is one bound value in a result row.
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Result is the application/sparql-results+json document.
type Result struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results *struct {
		Bindings []map[string]Term `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean,omitempty"`

	raw any
}

// Bindings returns the result rows (nil for ASK results).
func (r *Result) Bindings() []map[string]Term {
	if r == nil || r.Results == nil {
		return nil
	}
	return r.Results.Bindings
}

// Values projects the value of variable over all rows. Rows where the variable is unbound are skipped.
func (r *Result) Values(variable string) ([]string, error) {
	if r == nil || r.raw == nil {
		return nil, nil
	}
	v, err := jmes.Search(fmt.Sprintf("results.bindings[].%q.value", variable), r.raw)
	if err != nil {
		return nil, &QueryError{Msg: "project " + variable, Err: err}
	}
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Parse decodes and validates a SELECT or ASK result document.
func Parse(body []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &QueryError{Msg: "decode result", Err: err}
	}
	if res.Results == nil && res.Boolean == nil {
		return nil, &QueryError{Msg: "invalid result structure: missing results.bindings"}
	}
	if res.Results != nil && res.Results.Bindings == nil {
		return nil, &QueryError{Msg: "invalid result structure: missing results.bindings"}
	}
	if err := json.Unmarshal(body, &res.raw); err != nil {
		return nil, &QueryError{Msg: "decode result", Err: err}
	}
	return &res, nil
}

// Client talks to a SPARQL endpoint over HTTP. Queries run with sudo rights
// because the proxy resolves sessions it does not own.
type Client struct {
	endpoint string
	http     *http.Client
	sudo     bool
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithSudo(sudo bool) ClientOption { return func(c *Client) { c.sudo = sudo } }

func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		sudo:     true,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Execute(ctx context.Context, query string) (*Result, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &QueryError{Msg: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	if c.sudo {
		req.Header.Set("mu-auth-sudo", "true")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &QueryError{Status: resp.StatusCode, Msg: "read body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &QueryError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(body))}
	}
	return Parse(body)
}
