package davclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nwidger/davclient/auth"
)

func TestCreateAccountRunsDiscoverySequentially(t *testing.T) {
	var sawHomeBeforePrincipal bool
	var sawPrincipal bool

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/.well-known/caldav":
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/":
			sawPrincipal = true
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusMultiStatus)
			io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/</d:href>
    <d:propstat>
      <d:prop><d:current-user-principal><d:href>/principals/alice/</d:href></d:current-user-principal></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
		case r.URL.Path == "/principals/alice/":
			if !sawPrincipal {
				sawHomeBeforePrincipal = true
			}
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusMultiStatus)
			io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/principals/alice/</d:href>
    <d:propstat>
      <d:prop><c:calendar-home-set><d:href>/cal/home/</d:href></c:calendar-home-set></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
		default:
			t.Fatalf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), auth.NewBasicProvider("alice", "s3cret"))
	account, err := c.CreateAccount(context.Background(), CreateAccountOptions{
		AccountType: AccountTypeCalDAV,
		ServerURL:   ts.URL,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if account.HomeURL != ts.URL+"/cal/home/" {
		t.Errorf("HomeURL = %q", account.HomeURL)
	}
	if account.PrincipalURL != ts.URL+"/principals/alice/" {
		t.Errorf("PrincipalURL = %q", account.PrincipalURL)
	}
	if sawHomeBeforePrincipal {
		t.Error("home-set lookup ran before principal lookup resolved")
	}
}

func TestCreateAccountPropagatesInvalidCredentials(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), auth.NewBasicProvider("alice", "wrong"))
	_, err := c.CreateAccount(context.Background(), CreateAccountOptions{AccountType: AccountTypeCalDAV, ServerURL: ts.URL})
	davErr, ok := err.(*Error)
	if !ok || davErr.Kind != KindInvalidCredentials {
		t.Fatalf("expected InvalidCredentials, got %v", err)
	}
}

func TestWithProxyURLPrefixesRequests(t *testing.T) {
	var sawPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawPath = r.URL.Path
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), auth.NewBasicProvider("a", "b"), WithProxyURL(ts.URL))
	_, _ = c.CreateAccount(context.Background(), CreateAccountOptions{AccountType: AccountTypeCalDAV, ServerURL: "/upstream"})
	if sawPath == "" {
		t.Fatal("expected at least one request through the proxy prefix")
	}
}
