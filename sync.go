package davclient

import (
	"context"
	"strings"
	"sync"

	"github.com/nwidger/davclient/internal/davxml"
)

// SyncStrategy selects how SmartCollectionSync reconciles a collection, per
// spec §4.8.
type SyncStrategy string

const (
	SyncStrategyWebDAV SyncStrategy = "webdav"
	SyncStrategyBasic  SyncStrategy = "basic"
)

// ObjectFetcher resolves the cyclic collection/method hook spec §9's design
// note calls out: the webdav strategy needs only the changed hrefs fetched,
// the basic strategy needs every object fetched unconditionally.
type ObjectFetcher interface {
	FetchChanged(ctx context.Context, hrefs []string) ([]DAVObject, error)
	FetchAll(ctx context.Context) ([]DAVObject, error)
}

// SyncDiff is the created/updated/deleted/unchanged partition spec §4.8
// describes.
type SyncDiff struct {
	Created   []DAVObject
	Updated   []DAVObject
	Deleted   []DAVObject
	Unchanged []DAVObject
}

// SyncResult is SmartCollectionSync's return shape: the refreshed collection
// plus (when requested) the detailed diff, per spec §4.8 "Return shape".
type SyncResult struct {
	Collection Collection
	Diff       SyncDiff
}

// SmartCollectionSync reconciles collection against the server using either
// the webdav sync-collection strategy or the basic ctag-comparison strategy,
// per spec §4.8. account must carry AccountType and HomeURL.
func (c *Client) SmartCollectionSync(ctx context.Context, collection Collection, account Account, fetcher ObjectFetcher, method SyncStrategy, detailedResult bool) (*SyncResult, error) {
	if account.HomeURL == "" {
		return nil, errMissingFields("smartCollectionSync", "homeUrl")
	}

	strategy := method
	if strategy == "" {
		if collection.HasReport("syncCollection") {
			strategy = SyncStrategyWebDAV
		} else {
			strategy = SyncStrategyBasic
		}
	}

	if strategy == SyncStrategyWebDAV {
		return c.webdavSync(ctx, collection, account, fetcher, detailedResult)
	}
	return c.basicSync(ctx, collection, account, fetcher, detailedResult)
}

func (c *Client) webdavSync(ctx context.Context, collection Collection, account Account, fetcher ObjectFetcher, detailedResult bool) (*SyncResult, error) {
	dataProp := "c:calendar-data"
	suffix := ".ics"
	if account.AccountType == AccountTypeCardDAV {
		dataProp, suffix = "card:address-data", ".vcf"
	}

	props := []*davxml.Element{
		davxml.NewElement("getetag"),
		davxml.NewElement(dataProp),
		davxml.NewElement("displayname"),
	}

	result, err := c.SyncCollection(ctx, collection.URL, props, 1, collection.SyncToken)
	if err != nil {
		return nil, err
	}

	var changedHrefs, deletedHrefs []string
	for _, entry := range result.Responses {
		if !strings.Contains(entry.Href, suffix) {
			continue
		}
		if entry.Status == 404 {
			deletedHrefs = append(deletedHrefs, entry.Href)
		} else {
			changedHrefs = append(changedHrefs, entry.Href)
		}
	}

	var changed []DAVObject
	if len(changedHrefs) > 0 {
		changed, err = fetcher.FetchChanged(ctx, changedHrefs)
		if err != nil {
			return nil, err
		}
	}

	diff := diffPartialUpdate(collection.Objects, changed, deletedHrefs)

	newToken := result.SyncToken
	if newToken == "" {
		newToken = collection.SyncToken
	}

	next := collection
	next.SyncToken = newToken
	next.Objects = mergedObjects(diff, detailedResult)

	out := &SyncResult{Collection: next}
	if detailedResult {
		out.Diff = diff
	}
	return out, nil
}

func (c *Client) basicSync(ctx context.Context, collection Collection, account Account, fetcher ObjectFetcher, detailedResult bool) (*SyncResult, error) {
	dirty, err := c.IsCollectionDirty(ctx, collection)
	if err != nil {
		return nil, err
	}

	remote, err := fetcher.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	diff := diffObjects(collection.Objects, remote)

	if !dirty.IsDirty {
		out := &SyncResult{Collection: collection}
		if detailedResult {
			out.Diff = SyncDiff{}
		}
		return out, nil
	}

	next := collection
	next.CTag = dirty.NewCTag
	next.Objects = mergedObjects(diff, detailedResult)

	out := &SyncResult{Collection: next}
	if detailedResult {
		out.Diff = diff
	}
	return out, nil
}

// diffObjects computes created/updated/deleted/unchanged for the basic
// strategy, per spec §4.8: remote is a full listing, so any local object
// absent from it is deleted.
func diffObjects(local, remote []DAVObject) SyncDiff {
	var diff SyncDiff

	matchedLocal := make([]bool, len(local))
	for _, r := range remote {
		matchedRemote := false
		for i, l := range local {
			if !urlContains(l.URL, r.URL) {
				continue
			}
			matchedRemote = true
			matchedLocal[i] = true
			if r.ETag != "" && r.ETag != l.ETag {
				diff.Updated = append(diff.Updated, r)
			} else {
				diff.Unchanged = append(diff.Unchanged, l)
			}
			break
		}
		if !matchedRemote {
			diff.Created = append(diff.Created, r)
		}
	}

	for i, l := range local {
		if matchedLocal[i] {
			continue
		}
		diff.Deleted = append(diff.Deleted, DAVObject{URL: l.URL})
	}

	return diff
}

// diffPartialUpdate computes created/updated/deleted/unchanged for the
// webdav strategy, per spec §4.8: changed/deletedHrefs only cover the
// objects the sync-collection REPORT actually reported, so every other
// local object carries forward unchanged.
func diffPartialUpdate(local, changed []DAVObject, deletedHrefs []string) SyncDiff {
	var diff SyncDiff

	matchedLocal := make([]bool, len(local))
	for _, r := range changed {
		matchedRemote := false
		for i, l := range local {
			if !urlContains(l.URL, r.URL) {
				continue
			}
			matchedRemote = true
			matchedLocal[i] = true
			if r.ETag != "" && r.ETag != l.ETag {
				diff.Updated = append(diff.Updated, r)
			} else {
				diff.Unchanged = append(diff.Unchanged, l)
			}
			break
		}
		if !matchedRemote {
			diff.Created = append(diff.Created, r)
		}
	}

	for i, l := range local {
		if matchedLocal[i] {
			continue
		}
		isDeleted := false
		for _, href := range deletedHrefs {
			if urlContains(l.URL, href) {
				isDeleted = true
				break
			}
		}
		if isDeleted {
			diff.Deleted = append(diff.Deleted, DAVObject{URL: l.URL})
		} else {
			diff.Unchanged = append(diff.Unchanged, l)
		}
	}

	return diff
}

func mergedObjects(diff SyncDiff, detailedResult bool) []DAVObject {
	if detailedResult {
		out := make([]DAVObject, 0, len(diff.Created)+len(diff.Updated)+len(diff.Deleted))
		out = append(out, diff.Created...)
		out = append(out, diff.Updated...)
		out = append(out, diff.Deleted...)
		return out
	}
	out := make([]DAVObject, 0, len(diff.Unchanged)+len(diff.Created)+len(diff.Updated))
	out = append(out, diff.Unchanged...)
	out = append(out, diff.Created...)
	out = append(out, diff.Updated...)
	return out
}

// SyncCalendarsResult is SyncCalendars' return shape, per spec §4.8.
type SyncCalendarsResult struct {
	Unchanged []Calendar
	Created   []Calendar
	Updated   []Calendar
}

// Calendars returns the flattened unchanged ∪ created ∪ updated list, per
// spec §4.8's non-detailed return shape.
func (r SyncCalendarsResult) Calendars() []Calendar {
	out := make([]Calendar, 0, len(r.Unchanged)+len(r.Created)+len(r.Updated))
	out = append(out, r.Unchanged...)
	out = append(out, r.Created...)
	out = append(out, r.Updated...)
	return out
}

// CalendarObjectFetcher adapts FetchCalendarObjects/object-URL fetches into
// the ObjectFetcher contract SmartCollectionSync requires for a given
// calendar.
type CalendarObjectFetcher struct {
	Client   *Client
	Calendar Calendar
}

func (f CalendarObjectFetcher) FetchChanged(ctx context.Context, hrefs []string) ([]DAVObject, error) {
	return f.Client.FetchCalendarObjects(ctx, f.Calendar, CalendarObjectQuery{ObjectURLs: hrefs})
}

func (f CalendarObjectFetcher) FetchAll(ctx context.Context) ([]DAVObject, error) {
	return f.Client.FetchCalendarObjects(ctx, f.Calendar, CalendarObjectQuery{})
}

// SyncCalendars diffs account.Calendars (or oldCalendars, when given)
// against a fresh FetchCalendars and runs SmartCollectionSync(webdav) over
// each matched-but-changed calendar in parallel, per spec §4.8.
// "Changed" means same URL but a different syncToken or ctag.
func (c *Client) SyncCalendars(ctx context.Context, account Account, oldCalendars []Calendar, detailedResult bool) (*SyncCalendarsResult, error) {
	if oldCalendars == nil {
		oldCalendars = account.Calendars
	}

	fresh, err := c.FetchCalendars(ctx, account)
	if err != nil {
		return nil, err
	}

	var unchanged, created, changed []Calendar
	for _, f := range fresh {
		var old *Calendar
		for i := range oldCalendars {
			if urlContains(oldCalendars[i].URL, f.URL) {
				old = &oldCalendars[i]
				break
			}
		}
		if old == nil {
			created = append(created, f)
			continue
		}
		if old.SyncToken != f.SyncToken || old.CTag != f.CTag {
			merged := f
			merged.Objects = old.Objects
			changed = append(changed, merged)
		} else {
			unchanged = append(unchanged, *old)
		}
	}

	type outcome struct {
		index int
		cal   Calendar
		err   error
	}
	results := make(chan outcome, len(changed))
	var wg sync.WaitGroup
	for i := range changed {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fetcher := CalendarObjectFetcher{Client: c, Calendar: changed[i]}
			res, err := c.SmartCollectionSync(ctx, changed[i].Collection, account, fetcher, SyncStrategyWebDAV, detailedResult)
			if err != nil {
				results <- outcome{index: i, err: err}
				return
			}
			updated := changed[i]
			updated.Collection = res.Collection
			results <- outcome{index: i, cal: updated}
		}(i)
	}
	wg.Wait()
	close(results)

	out := &SyncCalendarsResult{Unchanged: unchanged, Created: created}
	collected := make([]Calendar, len(changed))
	for r := range results {
		if r.err != nil {
			return nil, r.err
		}
		collected[r.index] = r.cal
	}
	for i, original := range changed {
		cal := collected[i]
		isNew := true
		for j := range oldCalendars {
			if urlContains(oldCalendars[j].URL, original.URL) {
				isNew = false
				break
			}
		}
		if isNew {
			out.Created = append(out.Created, cal)
		} else {
			out.Updated = append(out.Updated, cal)
		}
	}
	return out, nil
}
