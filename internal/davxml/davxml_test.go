package davxml

import (
	"strings"
	"testing"
)

func TestCamelCase(t *testing.T) {
	tcs := []struct{ in, want string }{
		{"getctag", "getctag"},
		{"current-user-principal", "currentUserPrincipal"},
		{"D:resourcetype", "resourcetype"},
		{"calendar-home-set", "calendarHomeSet"},
		{"Supported_Report_Set", "supportedReportSet"},
	}
	for _, tc := range tcs {
		if got := camelCase(tc.in); got != tc.want {
			t.Errorf("camelCase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEncodeAppliesDefaultNamespace(t *testing.T) {
	root := NewElement("propfind",
		NewElement("prop",
			NewElement("resourcetype"),
			NewElement("d:displayname"),
		),
	)

	out, err := Encode(root, EncodeOptions{
		DefaultNamespace: "d",
		Namespaces:       NamespaceSet{NSDAV: "d"},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	body := string(out)
	if !strings.Contains(body, `<?xml version="1.0" encoding="utf-8"?>`) {
		t.Errorf("missing xml declaration: %s", body)
	}
	if !strings.Contains(body, "d:propfind") {
		t.Errorf("expected default namespace applied to propfind: %s", body)
	}
	if !strings.Contains(body, "d:resourcetype") {
		t.Errorf("expected default namespace applied to resourcetype: %s", body)
	}
	if !strings.Contains(body, `xmlns:d="DAV:"`) {
		t.Errorf("expected xmlns:d declaration: %s", body)
	}
}

func TestEncodePreservesNestedElementAttributes(t *testing.T) {
	root := NewElement("c:calendar-query",
		NewElement("c:filter",
			NewElement("c:comp-filter",
				NewElement("c:time-range").WithAttr("start", "20240101T000000Z").WithAttr("end", "20240201T000000Z"),
			).WithAttr("name", "VEVENT"),
		),
	)

	out, err := Encode(root, EncodeOptions{DefaultNamespace: "d"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	body := string(out)
	if !strings.Contains(body, `name="VEVENT"`) {
		t.Errorf("expected nested comp-filter name attribute preserved: %s", body)
	}
	if !strings.Contains(body, `start="20240101T000000Z"`) || !strings.Contains(body, `end="20240201T000000Z"`) {
		t.Errorf("expected nested time-range attributes preserved: %s", body)
	}
}

func TestQualifiedNamePreservesExplicitPrefix(t *testing.T) {
	tcs := []struct{ name, defaultNS, want string }{
		{"displayname", "d", "d:displayname"},
		{"c:calendar-data", "d", "c:calendar-data"},
		{"displayname", "", "displayname"},
	}
	for _, tc := range tcs {
		if got := qualifiedName(tc.name, tc.defaultNS); got != tc.want {
			t.Errorf("qualifiedName(%q,%q) = %q, want %q", tc.name, tc.defaultNS, got, tc.want)
		}
	}
}

func TestDecodeLowercasesAndStripsPrefix(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/cal/1.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"abc"</d:getetag>
        <d:resourcetype><d:collection/></d:resourcetype>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)

	root, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if root.Name != "multistatus" {
		t.Fatalf("root.Name = %q, want multistatus", root.Name)
	}

	responses, _ := ParseMultistatus(root, 200, "OK")
	if len(responses) != 1 {
		t.Fatalf("len(responses) = %d, want 1", len(responses))
	}
	r := responses[0]
	if r.Href != "/cal/1.ics" {
		t.Errorf("href = %q", r.Href)
	}
	if !r.OK {
		t.Errorf("expected OK response")
	}
	if r.Status != 200 || r.StatusText != "OK" {
		t.Errorf("status = %d %q", r.Status, r.StatusText)
	}
	if _, ok := r.Props["getetag"]; !ok {
		t.Errorf("expected getetag in flattened props, got %v", r.Props)
	}
}

func TestParseMultistatusPropstatMergeLaterWins(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/cal/</d:href>
    <d:propstat>
      <d:prop><d:displayname>first</d:displayname></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
    <d:propstat>
      <d:prop><d:displayname>second</d:displayname></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)

	root, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	responses, _ := ParseMultistatus(root, 200, "OK")
	got := responses[0].Props["displayname"].TextContent()
	if got != "second" {
		t.Errorf("expected later propstat to win, got %q", got)
	}
}

func TestParseMultistatusMissingStatusFallsBack(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/cal/1.ics</d:href>
  </d:response>
</d:multistatus>`)

	root, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	responses, _ := ParseMultistatus(root, 207, "Multi-Status")
	if responses[0].Status != 207 || responses[0].StatusText != "Multi-Status" {
		t.Errorf("expected fallback status, got %d %q", responses[0].Status, responses[0].StatusText)
	}
}

func TestParseMultistatusSyncToken(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:sync-token>opaque-token-1</d:sync-token>
</d:multistatus>`)

	root, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	_, token := ParseMultistatus(root, 207, "Multi-Status")
	if token != "opaque-token-1" {
		t.Errorf("token = %q", token)
	}
}
