package davclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchAddressBooksFiltersByResourceType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PROPFIND" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusMultiStatus)
			io.WriteString(w, `<?xml version="1.0"?><d:multistatus xmlns:d="DAV:"></d:multistatus>`)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:cs="http://calendarserver.org/ns/">
  <d:response>
    <d:href>/contacts/home/book/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><d:addressbook/></d:resourcetype>
        <d:displayname>Contacts</d:displayname>
        <cs:getctag>ctag-1</cs:getctag>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/contacts/home/</d:href>
    <d:propstat>
      <d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	books, err := c.FetchAddressBooks(context.Background(), Account{HomeURL: ts.URL + "/contacts/home/", RootURL: ts.URL})
	if err != nil {
		t.Fatalf("FetchAddressBooks: %v", err)
	}
	if len(books) != 1 || books[0].DisplayName != "Contacts" {
		t.Fatalf("books = %+v", books)
	}
}

func TestFetchVCardsDefaultsToFNFilterAndVcfExtension(t *testing.T) {
	var sawQueryFilter string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 && sawQueryFilter == "" {
			sawQueryFilter = string(body)
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		if string(body) != "" && strings.Contains(string(body), "addressbook-query") {
			io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response><d:href>/book/contact1.vcf</d:href></d:response>
</d:multistatus>`)
			return
		}
		io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:card="urn:ietf:params:xml:ns:carddav">
  <d:response>
    <d:href>/book/contact1.vcf</d:href>
    <d:propstat>
      <d:prop><d:getetag>"v1"</d:getetag><card:address-data>BEGIN:VCARD\nEND:VCARD</card:address-data></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	cards, err := c.FetchVCards(context.Background(), AddressBook{Collection: Collection{URL: ts.URL + "/book/"}}, VCardQuery{})
	if err != nil {
		t.Fatalf("FetchVCards: %v", err)
	}
	if len(cards) != 1 || cards[0].ETag != `"v1"` {
		t.Fatalf("cards = %+v", cards)
	}
	if !strings.Contains(sawQueryFilter, "prop-filter") || !strings.Contains(sawQueryFilter, `name="FN"`) {
		t.Errorf("query body = %s", sawQueryFilter)
	}
}
