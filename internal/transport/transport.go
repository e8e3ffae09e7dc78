// Package transport issues the HTTP verbs WebDAV/CalDAV/CardDAV require
// (PROPFIND, REPORT, MKCOL, MKCALENDAR, PUT, DELETE) against the caller's
// HTTP collaborator and normalizes every response into davxml's
// multistatus shape, per spec §4.2 (C2 DAV transport).
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/nwidger/davclient/internal/davxml"
)

// HTTPDoer is the external HTTP collaborator the core consumes (spec §6).
// *http.Client satisfies it directly.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Logger is the debug-channel contract of spec §6: the core emits trace
// lines but never depends on them for correctness.
type Logger interface {
	Debug(event string, fields map[string]any)
}

// NopLogger discards every event.
type NopLogger struct{}

func (NopLogger) Debug(string, map[string]any) {}

// RequestInit describes one outgoing DAV request before it is encoded, per
// the davRequest({url, init, ...}) shape of §4.2.
type RequestInit struct {
	Method    string
	Headers   map[string]string
	Namespace string
	Body      *davxml.Element
	// RawBody is used instead of Body when ConvertIncoming is false.
	RawBody []byte
	// NoRedirect routes this request through NoRedirectClient instead of
	// Client, surfacing a 3xx response instead of following it.
	NoRedirect bool
}

// Options toggles the codec behavior around a single request, mirroring the
// davRequest named options of §4.2.
type Options struct {
	// ConvertIncoming encodes Body via davxml.Encode when true (default).
	// When false, RawBody is sent verbatim.
	ConvertIncoming bool
	// ParseOutgoing parses the response as a multistatus document when
	// true (default). When false, a single synthetic Response is returned
	// regardless of content type.
	ParseOutgoing bool
}

// DefaultOptions matches davRequest's defaults: encode the body, parse the
// response.
func DefaultOptions() Options {
	return Options{ConvertIncoming: true, ParseOutgoing: true}
}

// Response is the outcome of one DAV request: the raw transport-level
// status/headers plus the normalized per-resource entries.
type Response struct {
	URL        string
	Status     int
	StatusText string
	OK         bool
	Entries    []*davxml.Response
	SyncToken  string
	Location   string
	Headers    http.Header
}

// Transport executes DAV requests against an HTTPDoer, applying an optional
// proxy URL prefix (spec §6 "Proxy") and merging caller headers over a
// Content-Type default.
type Transport struct {
	Client   HTTPDoer
	ProxyURL string
	Logger   Logger

	// NoRedirectClient, when set, is used instead of Client for requests
	// with RequestInit.NoRedirect set, surfacing a 3xx response instead of
	// following it. New derives this automatically when Client is a
	// *http.Client; callers supplying a custom HTTPDoer that also needs
	// manual redirect control should set it explicitly.
	NoRedirectClient HTTPDoer
}

// New builds a Transport with a no-op logger. When client is a *http.Client,
// a redirect-disabled sibling is derived automatically for discovery's
// ".well-known" probe (spec §4.4), which must observe a 3xx response rather
// than follow it.
func New(client HTTPDoer) *Transport {
	t := &Transport{Client: client, Logger: NopLogger{}}
	if hc, ok := client.(*http.Client); ok {
		noRedirect := *hc
		noRedirect.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
		t.NoRedirectClient = &noRedirect
	}
	return t
}

// Do issues init.Method against targetURL (prefixed by ProxyURL, per §6:
// "every outbound request URL is prefixed by proxyUrl — string
// concatenation, not rewriting"), with Content-Type:text/xml;charset=UTF-8
// merged under caller headers. The response is always returned as a
// Response (never an HTTP error on non-2xx); non-XML responses yield the
// synthetic single envelope §4.1 describes.
func (t *Transport) Do(ctx context.Context, targetURL string, init RequestInit, opts Options) (*Response, error) {
	if t.Client == nil {
		return nil, fmt.Errorf("davclient: transport has no HTTP client configured")
	}

	reqID := uuid.NewString()
	fullURL := t.ProxyURL + targetURL

	var bodyBytes []byte
	var err error
	if init.Body != nil && opts.ConvertIncoming {
		bodyBytes, err = davxml.Encode(init.Body, davxml.EncodeOptions{
			DefaultNamespace: init.Namespace,
			Namespaces:       davxml.DefaultNamespaces(),
		})
		if err != nil {
			return nil, fmt.Errorf("davclient: encoding request body: %w", err)
		}
	} else if !opts.ConvertIncoming {
		bodyBytes = init.RawBody
	}

	httpReq, err := http.NewRequestWithContext(ctx, init.Method, fullURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("davclient: building %s request: %w", init.Method, err)
	}

	headers := mergeHeaders(map[string]string{
		"Content-Type": "text/xml;charset=UTF-8",
	}, init.Headers)
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	t.logDebug("dav_request", map[string]any{
		"request_id": reqID,
		"method":     init.Method,
		"url":        fullURL,
	})

	doer := t.Client
	if init.NoRedirect && t.NoRedirectClient != nil {
		doer = t.NoRedirectClient
	}

	httpResp, err := doer.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("davclient: %s %s: %w", init.Method, fullURL, err)
	}
	defer httpResp.Body.Close()

	bodyData, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("davclient: reading response body: %w", err)
	}

	t.logDebug("dav_response", map[string]any{
		"request_id": reqID,
		"status":     httpResp.StatusCode,
	})

	resp := &Response{
		URL:        httpResp.Request.URL.String(),
		Status:     httpResp.StatusCode,
		StatusText: http.StatusText(httpResp.StatusCode),
		OK:         httpResp.StatusCode >= 200 && httpResp.StatusCode < 300,
		Location:   httpResp.Header.Get("Location"),
		Headers:    httpResp.Header,
	}

	if !opts.ParseOutgoing || !isXML(httpResp.Header.Get("Content-Type")) {
		resp.Entries = davxml.SyntheticResponse(resp.URL, resp.Status, resp.StatusText, resp.OK, string(bodyData))
		return resp, nil
	}

	root, err := davxml.Decode(bodyData)
	if err != nil {
		resp.Entries = davxml.SyntheticResponse(resp.URL, resp.Status, resp.StatusText, resp.OK, string(bodyData))
		return resp, nil
	}

	entries, syncToken := davxml.ParseMultistatus(root, resp.Status, resp.StatusText)
	if entries == nil {
		resp.Entries = davxml.SyntheticResponse(resp.URL, resp.Status, resp.StatusText, resp.OK, string(bodyData))
		return resp, nil
	}
	resp.Entries = entries
	resp.SyncToken = syncToken
	return resp, nil
}

func (t *Transport) logDebug(event string, fields map[string]any) {
	if t.Logger == nil {
		return
	}
	t.Logger.Debug(event, fields)
}

func isXML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	return strings.Contains(mediaType, "xml")
}

// mergeHeaders merges override maps onto base, dropping any key whose value
// is empty, per §9's "header-map merging" design note: the caller may rely
// on an empty string to clear a default.
func mergeHeaders(base map[string]string, overrides ...map[string]string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		if v != "" {
			out[k] = v
		}
	}
	for _, override := range overrides {
		for k, v := range override {
			if v == "" {
				delete(out, k)
				continue
			}
			out[k] = v
		}
	}
	return out
}

// ResolveAgainst resolves ref against base, matching net/url semantics, and
// is used throughout discovery (§4.4) to turn a Location/href into an
// absolute URL.
func ResolveAgainst(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("davclient: parsing base URL %q: %w", base, err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("davclient: parsing reference URL %q: %w", ref, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
