package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nwidger/davclient/internal/davxml"
)

func TestMergeHeadersDropsFalsyValues(t *testing.T) {
	base := map[string]string{"Content-Type": "text/xml;charset=UTF-8", "Depth": "1"}
	got := mergeHeaders(base, map[string]string{"Depth": "", "Authorization": "Basic xyz"})

	if _, ok := got["Depth"]; ok {
		t.Errorf("expected Depth to be dropped, got %v", got)
	}
	if got["Authorization"] != "Basic xyz" {
		t.Errorf("Authorization = %q", got["Authorization"])
	}
	if got["Content-Type"] != "text/xml;charset=UTF-8" {
		t.Errorf("Content-Type = %q", got["Content-Type"])
	}
}

func TestDoParsesMultistatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PROPFIND" {
			t.Fatalf("expected PROPFIND, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/cal/</d:href>
    <d:propstat>
      <d:prop><d:getctag>abc123</d:getctag></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
	}))
	defer ts.Close()

	tr := New(ts.Client())
	resp, err := tr.Do(context.Background(), ts.URL+"/cal/", RequestInit{
		Method:  "PROPFIND",
		Headers: map[string]string{"Depth": "0"},
	}, DefaultOptions())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(resp.Entries))
	}
	if got := resp.Entries[0].Props["getctag"].TextContent(); got != "abc123" {
		t.Errorf("getctag = %q", got)
	}
}

func TestDoSyntheticOnNonXML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "BEGIN:VCALENDAR\nEND:VCALENDAR")
	}))
	defer ts.Close()

	tr := New(ts.Client())
	resp, err := tr.Do(context.Background(), ts.URL+"/cal/1.ics", RequestInit{Method: "GET"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("expected synthetic single entry, got %d", len(resp.Entries))
	}
	if !resp.Entries[0].OK {
		t.Errorf("expected ok synthetic entry")
	}
	if resp.Entries[0].Raw.TextContent() == "" {
		t.Errorf("expected raw body text preserved")
	}
}

func TestDoEncodesRequestBody(t *testing.T) {
	var sawTag bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "calendar-query") {
			sawTag = true
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<?xml version="1.0"?><d:multistatus xmlns:d="DAV:"></d:multistatus>`)
	}))
	defer ts.Close()

	root := davxml.NewElement("calendar-query", davxml.NewElement("prop"))
	tr := New(ts.Client())
	_, err := tr.Do(context.Background(), ts.URL+"/cal/", RequestInit{
		Method:    "REPORT",
		Namespace: "c",
		Body:      root,
	}, DefaultOptions())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !sawTag {
		t.Errorf("expected encoded body to contain calendar-query element")
	}
}
