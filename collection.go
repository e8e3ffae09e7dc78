package davclient

import (
	"context"
	"strconv"

	"github.com/nwidger/davclient/internal/davxml"
	"github.com/nwidger/davclient/internal/transport"
)

// CollectionQuery issues a REPORT against url with the given depth and
// request body, per spec §4.5. If the sole response has no raw subtree or is
// the synthetic envelope of a non-multistatus reply (see
// davxml.SyntheticResponse), it returns an empty list rather than a
// fabricated entry.
func (c *Client) CollectionQuery(ctx context.Context, url string, body *davxml.Element, depth int, defaultNamespace string) ([]*davxml.Response, string, error) {
	resp, err := c.do(ctx, url, transport.RequestInit{
		Method:    "REPORT",
		Namespace: defaultNamespace,
		Body:      body,
		Headers:   map[string]string{"Depth": strconv.Itoa(depth)},
	}, transport.DefaultOptions())
	if err != nil {
		return nil, "", wrapError(KindTransportError, "REPORT "+url+" failed", err)
	}

	if len(resp.Entries) == 1 && (resp.Entries[0].Raw == nil || resp.Entries[0].Raw.Name == "raw") {
		return nil, resp.SyncToken, nil
	}
	return resp.Entries, resp.SyncToken, nil
}

// MakeCollection issues MKCOL against url. When props is non-empty, the
// request body is <mkcol><set><prop>...</prop></set></mkcol>, per spec §4.5.
func (c *Client) MakeCollection(ctx context.Context, url string, props []*davxml.Element) error {
	var body *davxml.Element
	if len(props) > 0 {
		body = davxml.NewElement("mkcol", davxml.NewElement("set", davxml.NewElement("prop", toNodes(props)...)))
	}
	resp, err := c.do(ctx, url, transport.RequestInit{
		Method:    "MKCOL",
		Namespace: "d",
		Body:      body,
	}, transport.DefaultOptions())
	if err != nil {
		return wrapError(KindTransportError, "MKCOL "+url+" failed", err)
	}
	if !resp.OK {
		return newError(KindTransportError, "MKCOL "+url+" returned "+resp.StatusText)
	}
	return nil
}

// MakeCalendar issues MKCALENDAR against url with the CalDAV body shape
// (mkcalendar/set/prop), per spec §4.5.
func (c *Client) MakeCalendar(ctx context.Context, url string, props []*davxml.Element) error {
	body := davxml.NewElement("c:mkcalendar", davxml.NewElement("set", davxml.NewElement("prop", toNodes(props)...)))
	resp, err := c.do(ctx, url, transport.RequestInit{
		Method:    "MKCALENDAR",
		Namespace: "d",
		Body:      body,
	}, transport.DefaultOptions())
	if err != nil {
		return wrapError(KindTransportError, "MKCALENDAR "+url+" failed", err)
	}
	if !resp.OK {
		return newError(KindTransportError, "MKCALENDAR "+url+" returned "+resp.StatusText)
	}
	return nil
}

// SupportedReportSet issues a depth-0 PROPFIND for d:supported-report-set
// and returns the camelCased names of every advertised report, per spec
// §4.5.
func (c *Client) SupportedReportSet(ctx context.Context, collectionURL string) ([]string, error) {
	propfind := davxml.NewElement("propfind", davxml.NewElement("prop", davxml.NewElement("supported-report-set")))
	resp, err := c.do(ctx, collectionURL, transport.RequestInit{
		Method:    "PROPFIND",
		Namespace: "d",
		Headers:   map[string]string{"Depth": "0"},
		Body:      propfind,
	}, transport.DefaultOptions())
	if err != nil {
		return nil, wrapError(KindTransportError, "supported-report-set PROPFIND failed", err)
	}
	if len(resp.Entries) == 0 {
		return nil, nil
	}

	srs := resp.Entries[0].Props["supportedReportSet"]
	if srs == nil {
		return nil, nil
	}

	var reports []string
	for _, sr := range srs.ChildrenNamed("supportedReport") {
		report := sr.Child("report")
		if report == nil {
			continue
		}
		for _, child := range report.Children {
			if el, ok := child.(*davxml.Element); ok {
				reports = append(reports, el.Name)
				break
			}
		}
	}
	return reports, nil
}

// DirtyCheck is the result of IsCollectionDirty.
type DirtyCheck struct {
	IsDirty bool
	NewCTag string
}

// IsCollectionDirty PROPFINDs cs:getctag at depth 0 and compares
// it against collection.CTag, per spec §4.5. No matching response is
// KindCollectionNotFound.
func (c *Client) IsCollectionDirty(ctx context.Context, collection Collection) (*DirtyCheck, error) {
	propfind := davxml.NewElement("propfind", davxml.NewElement("prop", davxml.NewElement("cs:getctag")))
	resp, err := c.do(ctx, collection.URL, transport.RequestInit{
		Method:    "PROPFIND",
		Namespace: "d",
		Headers:   map[string]string{"Depth": "0"},
		Body:      propfind,
	}, transport.DefaultOptions())
	if err != nil {
		return nil, wrapError(KindTransportError, "getctag PROPFIND failed", err)
	}

	var match *davxml.Response
	for _, entry := range resp.Entries {
		if urlContains(collection.URL, entry.Href) {
			match = entry
			break
		}
	}
	if match == nil {
		return nil, newError(KindCollectionNotFound, "no response matched collection URL "+collection.URL)
	}

	ctagEl := match.Props["getctag"]
	var newCTag string
	if ctagEl != nil {
		newCTag = ctagEl.TextContent()
	}

	return &DirtyCheck{IsDirty: collection.CTag != newCTag, NewCTag: newCTag}, nil
}

// SyncCollectionResult is the decoded response of a sync-collection REPORT.
type SyncCollectionResult struct {
	SyncToken string
	Responses []*davxml.Response
}

// SyncCollection issues the sync-collection REPORT of RFC 6578, carrying the
// prior syncToken (omitted on a first run), per spec §4.5.
func (c *Client) SyncCollection(ctx context.Context, url string, props []*davxml.Element, syncLevel int, syncToken string) (*SyncCollectionResult, error) {
	children := []davxml.Node{}
	if syncToken != "" {
		children = append(children, davxml.NewElement("sync-token", davxml.Text(syncToken)))
	} else {
		children = append(children, davxml.NewElement("sync-token"))
	}
	children = append(children, davxml.NewElement("sync-level", davxml.Text(strconv.Itoa(syncLevel))))
	children = append(children, davxml.NewElement("prop", toNodes(props)...))

	body := davxml.NewElement("sync-collection", children...)

	resp, err := c.do(ctx, url, transport.RequestInit{
		Method:    "REPORT",
		Namespace: "d",
		Body:      body,
		Headers:   map[string]string{"Depth": "1"},
	}, transport.DefaultOptions())
	if err != nil {
		return nil, wrapError(KindTransportError, "sync-collection REPORT failed", err)
	}

	return &SyncCollectionResult{SyncToken: resp.SyncToken, Responses: resp.Entries}, nil
}

// UpdateCalendarProps lists the display-name, description, color and/or
// timezone values that UpdateCalendarProperties sets on a calendar
// collection with a PROPPATCH (supplemented feature, see SPEC_FULL.md §10).
// Nil fields are left out of the request.
type UpdateCalendarProps struct {
	DisplayName *string
	Description *string
	Color       *string
	Timezone    *string
}

func (c *Client) UpdateCalendarProperties(ctx context.Context, url string, props UpdateCalendarProps) error {
	var set []davxml.Node
	if props.DisplayName != nil {
		set = append(set, davxml.NewElement("d:displayname", davxml.Text(*props.DisplayName)))
	}
	if props.Description != nil {
		set = append(set, davxml.NewElement("c:calendar-description", davxml.Text(*props.Description)))
	}
	if props.Color != nil {
		set = append(set, davxml.NewElement("ca:calendar-color", davxml.Text(*props.Color)))
	}
	if props.Timezone != nil {
		set = append(set, davxml.NewElement("c:calendar-timezone", davxml.Text(*props.Timezone)))
	}
	if len(set) == 0 {
		return newError(KindMissingField, "UpdateCalendarProperties requires at least one property to set")
	}

	body := davxml.NewElement("propertyupdate", davxml.NewElement("set", davxml.NewElement("prop", set...)))
	resp, err := c.do(ctx, url, transport.RequestInit{
		Method:    "PROPPATCH",
		Namespace: "d",
		Body:      body,
	}, transport.DefaultOptions())
	if err != nil {
		return wrapError(KindTransportError, "PROPPATCH "+url+" failed", err)
	}
	if !resp.OK {
		return newError(KindTransportError, "PROPPATCH "+url+" returned "+resp.StatusText)
	}
	return nil
}

func toNodes(elems []*davxml.Element) []davxml.Node {
	nodes := make([]davxml.Node, len(elems))
	for i, e := range elems {
		nodes[i] = e
	}
	return nodes
}
