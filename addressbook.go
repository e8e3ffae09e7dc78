package davclient

import (
	"context"
	"strings"

	"github.com/nwidger/davclient/internal/davxml"
	"github.com/nwidger/davclient/internal/transport"
)

// addressBookPropfindProps is the default PROPFIND property set for
// address-book collections, per spec §6.
func addressBookPropfindProps() []davxml.Node {
	return []davxml.Node{
		davxml.NewElement("displayname"),
		davxml.NewElement("cs:getctag"),
		davxml.NewElement("resourcetype"),
		davxml.NewElement("sync-token"),
	}
}

// FetchAddressBooks PROPFINDs account.HomeURL at depth 1, filters by
// resourcetype ⊇ {addressbook}, and attaches each survivor's
// supported-report-set in parallel, per spec §4.7.
func (c *Client) FetchAddressBooks(ctx context.Context, account Account) ([]AddressBook, error) {
	if missing := missingAccountFields(account); len(missing) > 0 {
		return nil, errMissingFields("fetchAddressBooks", missing...)
	}

	propfind := davxml.NewElement("propfind", davxml.NewElement("prop", addressBookPropfindProps()...))
	resp, err := c.do(ctx, account.HomeURL, transport.RequestInit{
		Method:    "PROPFIND",
		Namespace: "d",
		Headers:   map[string]string{"Depth": "1"},
		Body:      propfind,
	}, transport.DefaultOptions())
	if err != nil {
		return nil, wrapError(KindTransportError, "fetchAddressBooks PROPFIND failed", err)
	}

	var candidates []AddressBook
	for _, entry := range resp.Entries {
		book, ok := addressBookFromResponse(entry, account.RootURL)
		if !ok || !book.IsResourceType("addressbook") {
			continue
		}
		candidates = append(candidates, book)
	}

	if err := attachAddressBookReportSets(ctx, c, candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

func attachAddressBookReportSets(ctx context.Context, c *Client, books []AddressBook) error {
	type result struct {
		index   int
		reports []string
		err     error
	}
	results := make(chan result, len(books))
	for i := range books {
		go func(i int) {
			reports, err := c.SupportedReportSet(ctx, books[i].URL)
			results <- result{index: i, reports: reports, err: err}
		}(i)
	}
	for range books {
		r := <-results
		if r.err != nil {
			return r.err
		}
		books[r.index].Reports = r.reports
	}
	return nil
}

func addressBookFromResponse(entry *davxml.Response, rootURL string) (AddressBook, bool) {
	href, err := transport.ResolveAgainst(rootURL, entry.Href)
	if err != nil {
		href = entry.Href
	}
	book := AddressBook{Collection: Collection{URL: href}}
	if rt := entry.Props["resourcetype"]; rt != nil {
		for _, child := range rt.Children {
			if el, ok := child.(*davxml.Element); ok {
				book.ResourceType = append(book.ResourceType, el.Name)
			}
		}
	}
	if dn := entry.Props["displayname"]; dn != nil {
		book.DisplayName = dn.TextContent()
	}
	if ct := entry.Props["getctag"]; ct != nil {
		book.CTag = ct.TextContent()
	}
	if st := entry.Props["syncToken"]; st != nil {
		book.SyncToken = st.TextContent()
	}
	return book, true
}

// VCardQuery parameterizes FetchVCards, per spec §4.7.
type VCardQuery struct {
	ObjectURLs []string
	// FilterName defaults to "FN" when empty.
	FilterName string
	// URLFilter defaults to "contains('.vcf')" when nil.
	URLFilter func(href string) bool
}

// FetchVCards is the CardDAV symmetric path of FetchCalendarObjects: an
// addressbook-query (unless ObjectURLs is given) followed by an
// addressbook-multiget, per spec §4.7.
func (c *Client) FetchVCards(ctx context.Context, book AddressBook, query VCardQuery) ([]VCard, error) {
	urlFilter := query.URLFilter
	if urlFilter == nil {
		urlFilter = func(href string) bool { return strings.Contains(href, ".vcf") }
	}
	filterName := query.FilterName
	if filterName == "" {
		filterName = "FN"
	}

	hrefs := query.ObjectURLs
	if len(hrefs) == 0 {
		var err error
		hrefs, err = c.addressBookQueryHrefs(ctx, book, filterName, urlFilter)
		if err != nil {
			return nil, err
		}
	}
	if len(hrefs) == 0 {
		return nil, nil
	}

	return c.addressBookMultiget(ctx, book.URL, hrefs)
}

func (c *Client) addressBookQueryHrefs(ctx context.Context, book AddressBook, filterName string, urlFilter func(string) bool) ([]string, error) {
	propFilter := davxml.NewElement("card:prop-filter").WithAttr("name", filterName)
	body := davxml.NewElement("card:addressbook-query",
		davxml.NewElement("prop", davxml.NewElement("getetag")),
		davxml.NewElement("card:filter", propFilter),
	)

	entries, _, err := c.CollectionQuery(ctx, book.URL, body, 1, "d")
	if err != nil {
		return nil, err
	}

	var hrefs []string
	for _, entry := range entries {
		if entry.Href == "" || !urlFilter(entry.Href) {
			continue
		}
		full, err := transport.ResolveAgainst(book.URL, entry.Href)
		if err != nil {
			full = entry.Href
		}
		hrefs = append(hrefs, full)
	}
	return hrefs, nil
}

func (c *Client) addressBookMultiget(ctx context.Context, collectionURL string, hrefs []string) ([]VCard, error) {
	children := []davxml.Node{
		davxml.NewElement("prop", davxml.NewElement("getetag"), davxml.NewElement("card:address-data")),
	}
	for _, href := range hrefs {
		children = append(children, davxml.NewElement("href", davxml.Text(href)))
	}
	body := davxml.NewElement("card:addressbook-multiget", children...)

	entries, _, err := c.CollectionQuery(ctx, collectionURL, body, 1, "d")
	if err != nil {
		return nil, err
	}

	cards := make([]VCard, 0, len(entries))
	for _, entry := range entries {
		href, err := transport.ResolveAgainst(collectionURL, entry.Href)
		if err != nil {
			href = entry.Href
		}
		var etag string
		if el := entry.Props["getetag"]; el != nil {
			etag = el.TextContent()
		}
		var data string
		if el := entry.Props["addressData"]; el != nil {
			data = el.TextContent()
		}
		cards = append(cards, VCard{URL: href, ETag: etag, Data: []byte(data)})
	}
	return cards, nil
}
