package davclient

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nwidger/davclient/internal/davxml"
	"github.com/nwidger/davclient/internal/transport"
)

// calendarPropfindProps is the default PROPFIND property set for calendar
// collections, per spec §6.
func calendarPropfindProps() []davxml.Node {
	return []davxml.Node{
		davxml.NewElement("c:calendar-description"),
		davxml.NewElement("c:calendar-timezone"),
		davxml.NewElement("displayname"),
		davxml.NewElement("ca:calendar-color"),
		davxml.NewElement("cs:getctag"),
		davxml.NewElement("resourcetype"),
		davxml.NewElement("c:supported-calendar-component-set"),
		davxml.NewElement("sync-token"),
	}
}

// FetchCalendars PROPFINDs account.HomeURL at depth 1, filters by
// resourcetype ⊇ {calendar}, drops non-iCal-format calendars, and attaches
// each survivor's supported-report-set in parallel, per spec §4.7.
func (c *Client) FetchCalendars(ctx context.Context, account Account) ([]Calendar, error) {
	if missing := missingAccountFields(account); len(missing) > 0 {
		return nil, errMissingFields("fetchCalendars", missing...)
	}

	propfind := davxml.NewElement("propfind", davxml.NewElement("prop", calendarPropfindProps()...))
	resp, err := c.do(ctx, account.HomeURL, transport.RequestInit{
		Method:    "PROPFIND",
		Namespace: "d",
		Headers:   map[string]string{"Depth": "1"},
		Body:      propfind,
	}, transport.DefaultOptions())
	if err != nil {
		return nil, wrapError(KindTransportError, "fetchCalendars PROPFIND failed", err)
	}

	var candidates []Calendar
	for _, entry := range resp.Entries {
		cal, ok := calendarFromResponse(entry, account.RootURL)
		if !ok || !cal.IsResourceType("calendar") || !cal.IsICalFormat() {
			continue
		}
		candidates = append(candidates, cal)
	}

	if err := attachReportSets(ctx, c, candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// attachReportSets calls SupportedReportSet for each calendar in parallel,
// per spec §5's fan-out requirement.
func attachReportSets(ctx context.Context, c *Client, calendars []Calendar) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(calendars))
	for i := range calendars {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports, err := c.SupportedReportSet(ctx, calendars[i].URL)
			if err != nil {
				errCh <- err
				return
			}
			calendars[i].Reports = reports
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

func calendarFromResponse(entry *davxml.Response, rootURL string) (Calendar, bool) {
	href, err := transport.ResolveAgainst(rootURL, entry.Href)
	if err != nil {
		href = entry.Href
	}

	cal := Calendar{Collection: Collection{URL: href}}
	if rt := entry.Props["resourcetype"]; rt != nil {
		for _, child := range rt.Children {
			if el, ok := child.(*davxml.Element); ok {
				cal.ResourceType = append(cal.ResourceType, el.Name)
			}
		}
	}
	if dn := entry.Props["displayname"]; dn != nil {
		cal.DisplayName = dn.TextContent()
	}
	if ct := entry.Props["getctag"]; ct != nil {
		cal.CTag = ct.TextContent()
	}
	if st := entry.Props["syncToken"]; st != nil {
		cal.SyncToken = st.TextContent()
	}
	if desc := entry.Props["calendarDescription"]; desc != nil {
		cal.Description = desc.TextContent()
	}
	if tz := entry.Props["calendarTimezone"]; tz != nil {
		cal.Timezone = tz.TextContent()
	}
	if color := entry.Props["calendarColor"]; color != nil {
		cal.Color = color.TextContent()
	}
	if comps := entry.Props["supportedCalendarComponentSet"]; comps != nil {
		for _, child := range comps.ChildrenNamed("comp") {
			if name, ok := child.Attributes["name"]; ok {
				cal.Components = append(cal.Components, name)
			}
		}
	}
	return cal, true
}

func missingAccountFields(account Account) []string {
	var missing []string
	if account.HomeURL == "" {
		missing = append(missing, "homeUrl")
	}
	if account.RootURL == "" {
		missing = append(missing, "rootUrl")
	}
	return missing
}

// WireTimeRange is a pair of raw ISO-8601 endpoints, validated and converted
// to the compressed wire format before use in a time-range filter.
type WireTimeRange struct {
	Start, End string
}

// CalendarObjectQuery parameterizes FetchCalendarObjects, per spec §4.7.
type CalendarObjectQuery struct {
	ObjectURLs []string
	TimeRange  *WireTimeRange
	Expand     bool
	// URLFilter defaults to "contains('.ics')" when nil.
	URLFilter func(href string) bool
}

// FetchCalendarObjects performs a calendar-query (unless ObjectURLs is
// given) followed by a calendar-multiget, per spec §4.7.
func (c *Client) FetchCalendarObjects(ctx context.Context, calendar Calendar, query CalendarObjectQuery) ([]DAVObject, error) {
	urlFilter := query.URLFilter
	if urlFilter == nil {
		urlFilter = func(href string) bool { return strings.Contains(href, ".ics") }
	}

	var startWire, endWire string
	if query.TimeRange != nil {
		var err error
		startWire, endWire, err = validateTimeRange(query.TimeRange.Start, query.TimeRange.End)
		if err != nil {
			return nil, err
		}
	}

	hrefs := query.ObjectURLs
	if len(hrefs) == 0 {
		var err error
		hrefs, err = c.calendarQueryHrefs(ctx, calendar, startWire, endWire, urlFilter)
		if err != nil {
			return nil, err
		}
	}
	if len(hrefs) == 0 {
		return nil, nil
	}

	return c.calendarMultiget(ctx, calendar.URL, hrefs, query.Expand && query.TimeRange != nil, startWire, endWire)
}

func (c *Client) calendarQueryHrefs(ctx context.Context, calendar Calendar, startWire, endWire string, urlFilter func(string) bool) ([]string, error) {
	eventFilter := davxml.NewElement("c:comp-filter").WithAttr("name", "VEVENT")
	if startWire != "" || endWire != "" {
		tr := davxml.NewElement("c:time-range")
		if startWire != "" {
			tr.WithAttr("start", startWire)
		}
		if endWire != "" {
			tr.WithAttr("end", endWire)
		}
		eventFilter.Children = append(eventFilter.Children, tr)
	}
	compFilter := davxml.NewElement("c:comp-filter", eventFilter).WithAttr("name", "VCALENDAR")

	body := davxml.NewElement("c:calendar-query",
		davxml.NewElement("prop", davxml.NewElement("getetag")),
		davxml.NewElement("c:filter", compFilter),
	)

	entries, _, err := c.CollectionQuery(ctx, calendar.URL, body, 1, "d")
	if err != nil {
		return nil, err
	}

	var hrefs []string
	for _, entry := range entries {
		if entry.Href == "" || !urlFilter(entry.Href) {
			continue
		}
		full, err := transport.ResolveAgainst(calendar.URL, entry.Href)
		if err != nil {
			full = entry.Href
		}
		hrefs = append(hrefs, full)
	}
	return hrefs, nil
}

func (c *Client) calendarMultiget(ctx context.Context, collectionURL string, hrefs []string, expand bool, startWire, endWire string) ([]DAVObject, error) {
	propChildren := []davxml.Node{davxml.NewElement("getetag")}
	calendarData := davxml.NewElement("c:calendar-data")
	if expand {
		calendarData.Children = append(calendarData.Children, davxml.NewElement("c:expand").WithAttr("start", startWire).WithAttr("end", endWire))
	}
	propChildren = append(propChildren, calendarData)

	children := []davxml.Node{davxml.NewElement("prop", propChildren...)}
	for _, href := range hrefs {
		children = append(children, davxml.NewElement("href", davxml.Text(href)))
	}
	body := davxml.NewElement("c:calendar-multiget", children...)

	entries, _, err := c.CollectionQuery(ctx, collectionURL, body, 1, "d")
	if err != nil {
		return nil, err
	}

	objs := make([]DAVObject, 0, len(entries))
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
		if el := entry.Props["calendarData"]; el != nil {
			data = el.TextContent()
		}
		objs = append(objs, DAVObject{URL: href, ETag: etag, Data: []byte(data)})
	}
	return objs, nil
}

const (
	defaultCalendarRangeWindow = 90 * 24 * time.Hour
	minCalendarRangeWindow     = 24 * time.Hour
)

// FetchCalendarObjectsWindowed fetches calendar objects across [start, end)
// in bounded windows, recursively halving a window that a server rejects
// with 507 Insufficient Storage (a real-world accommodation for servers
// with max-results limits, e.g. Apple iCloud), per SPEC_FULL.md §10.
func (c *Client) FetchCalendarObjectsWindowed(ctx context.Context, calendar Calendar, start, end time.Time) ([]DAVObject, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return nil, newError(KindInvalidTimeRange, "windowed fetch requires a non-zero start strictly before end")
	}

	var (
		results []DAVObject
		index   = make(map[string]int)
		cursor  = start.UTC()
		endUTC  = end.UTC()
	)

	for cursor.Before(endUTC) {
		windowEnd := cursor.Add(defaultCalendarRangeWindow)
		if windowEnd.After(endUTC) {
			windowEnd = endUTC
		}

		chunk, err := c.calendarRangeRecursive(ctx, calendar, cursor, windowEnd)
		if err != nil {
			return nil, err
		}
		for _, obj := range chunk {
			if idx, ok := index[obj.URL]; ok {
				results[idx] = obj
			} else {
				index[obj.URL] = len(results)
				results = append(results, obj)
			}
		}

		if !windowEnd.After(cursor) {
			break
		}
		cursor = windowEnd
	}

	return results, nil
}

func (c *Client) calendarRangeRecursive(ctx context.Context, calendar Calendar, start, end time.Time) ([]DAVObject, error) {
	objs, status, err := c.calendarRangeOnce(ctx, calendar, start, end)
	if err == nil {
		return objs, nil
	}
	if status != 507 || end.Sub(start) <= minCalendarRangeWindow {
		return nil, err
	}

	mid := start.Add(end.Sub(start) / 2)
	if !mid.After(start) {
		return nil, err
	}

	left, err := c.calendarRangeRecursive(ctx, calendar, start, mid)
	if err != nil {
		return nil, err
	}
	right, err := c.calendarRangeRecursive(ctx, calendar, mid, end)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// calendarRangeOnce runs a single calendar-query/multiget pair over one
// window and also returns the raw REPORT status, so the caller can detect a
// 507 and split the window without CollectionQuery's status-blind contract.
func (c *Client) calendarRangeOnce(ctx context.Context, calendar Calendar, start, end time.Time) ([]DAVObject, int, error) {
	startWire, endWire := basicFormat(start), basicFormat(end)

	eventFilter := davxml.NewElement("c:comp-filter").WithAttr("name", "VEVENT")
	eventFilter.Children = append(eventFilter.Children, davxml.NewElement("c:time-range").WithAttr("start", startWire).WithAttr("end", endWire))
	compFilter := davxml.NewElement("c:comp-filter", eventFilter).WithAttr("name", "VCALENDAR")
	body := davxml.NewElement("c:calendar-query",
		davxml.NewElement("prop", davxml.NewElement("getetag")),
		davxml.NewElement("c:filter", compFilter),
	)

	resp, err := c.do(ctx, calendar.URL, transport.RequestInit{
		Method:    "REPORT",
		Namespace: "d",
		Body:      body,
		Headers:   map[string]string{"Depth": "1"},
	}, transport.DefaultOptions())
	if err != nil {
		return nil, 0, wrapError(KindTransportError, "windowed calendar-query REPORT failed", err)
	}
	if !resp.OK {
		return nil, resp.Status, newError(KindTransportError, "windowed calendar-query REPORT returned "+resp.StatusText)
	}

	var hrefs []string
	for _, entry := range resp.Entries {
		if entry.Href == "" || !strings.Contains(entry.Href, ".ics") {
			continue
		}
		full, err := transport.ResolveAgainst(calendar.URL, entry.Href)
		if err != nil {
			full = entry.Href
		}
		hrefs = append(hrefs, full)
	}
	if len(hrefs) == 0 {
		return nil, resp.Status, nil
	}

	objs, err := c.calendarMultiget(ctx, calendar.URL, hrefs, true, startWire, endWire)
	if err != nil {
		return nil, 0, err
	}
	return objs, resp.Status, nil
}

// FreeBusyQuery issues a free-busy-query REPORT over url and returns the
// first response, per spec §4.7.
func (c *Client) FreeBusyQuery(ctx context.Context, url string, timeRange TimeRange) (*davxml.Response, error) {
	body := davxml.NewElement("c:free-busy-query",
		davxml.NewElement("c:time-range").
			WithAttr("start", basicFormat(timeRange.Start)).
			WithAttr("end", basicFormat(timeRange.End)),
	)
	entries, _, err := c.CollectionQuery(ctx, url, body, 0, "d")
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}
