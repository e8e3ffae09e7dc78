// Package discovery implements account bootstrap: the ".well-known" probe,
// principal-URL lookup, and home-set lookup of spec §4.4 (C4 Discovery).
package discovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/nwidger/davclient/internal/davxml"
	"github.com/nwidger/davclient/internal/errs"
	"github.com/nwidger/davclient/internal/transport"
)

// AccountType selects which RFC the discovery probes target.
type AccountType string

const (
	CalDAV  AccountType = "caldav"
	CardDAV AccountType = "carddav"
)

// ServiceDiscovery performs the ".well-known/{accountType}" probe against
// serverURL with redirects disabled. On a 3xx response with a Location
// header, it resolves the redirect target against serverURL, preserving the
// original scheme and (when the redirect omits a port and the hostname
// matches) the original port, per spec §4.4 step 1. Any failure is
// recovered locally: rootURL falls back to serverURL, never an error.
func ServiceDiscovery(ctx context.Context, tr *transport.Transport, serverURL string, accountType AccountType) string {
	probeURL := strings.TrimRight(serverURL, "/") + "/.well-known/" + string(accountType)

	resp, err := tr.Do(ctx, probeURL, transport.RequestInit{
		Method:     "PROPFIND",
		NoRedirect: true,
	}, transport.Options{ConvertIncoming: true, ParseOutgoing: false})
	if err != nil {
		return serverURL
	}

	if resp.Status < 300 || resp.Status >= 400 || resp.Location == "" {
		return serverURL
	}

	resolved, err := resolvePreservingAuthority(serverURL, resp.Location)
	if err != nil {
		return serverURL
	}
	return resolved
}

// resolvePreservingAuthority resolves ref against base the way spec §4.4
// describes: the original scheme is always kept, and the original port is
// kept when ref's host matches base's host and ref omits a port.
func resolvePreservingAuthority(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	resolved := baseURL.ResolveReference(refURL)

	resolved.Scheme = baseURL.Scheme
	if resolved.Hostname() == baseURL.Hostname() && resolved.Port() == "" && baseURL.Port() != "" {
		resolved.Host = resolved.Hostname() + ":" + baseURL.Port()
	}
	return resolved.String(), nil
}

// CurrentUserPrincipal runs the PROPFIND for d:current-user-principal
// against rootURL at depth 0, per spec §4.4 step 2. HTTP 401 surfaces as
// KindInvalidCredentials; the returned href is resolved against rootURL.
func CurrentUserPrincipal(ctx context.Context, tr *transport.Transport, rootURL string) (string, error) {
	propfind := davxml.NewElement("propfind",
		davxml.NewElement("prop", davxml.NewElement("d:current-user-principal")),
	)

	resp, err := tr.Do(ctx, rootURL, transport.RequestInit{
		Method:    "PROPFIND",
		Namespace: "d",
		Headers:   map[string]string{"Depth": "0"},
		Body:      propfind,
	}, transport.DefaultOptions())
	if err != nil {
		return "", errs.Wrap(errs.KindTransportError, "principal-url PROPFIND failed", err)
	}
	if resp.Status == 401 {
		return "", errs.New(errs.KindInvalidCredentials, "server rejected credentials during principal-url lookup")
	}
	if len(resp.Entries) == 0 {
		return "", errs.New(errs.KindInvalidCredentials, "no response to principal-url PROPFIND")
	}

	principal := resp.Entries[0]
	el := principal.Props["currentUserPrincipal"]
	if el == nil {
		return "", errs.New(errs.KindInvalidCredentials, "server did not return current-user-principal")
	}
	href := el.Child("href")
	if href == nil {
		return "", errs.New(errs.KindInvalidCredentials, "current-user-principal missing href")
	}

	return resolveAgainst(rootURL, href.TextContent())
}

// HomeURL runs the PROPFIND for calendar-home-set or addressbook-home-set
// against principalURL at depth 0, per spec §4.4 step 3. The response is
// matched to principalURL via urlContains; no match is HomeUrlNotFound.
func HomeURL(ctx context.Context, tr *transport.Transport, rootURL, principalURL string, accountType AccountType) (string, error) {
	var homeSetProp string
	var ns string
	switch accountType {
	case CalDAV:
		homeSetProp, ns = "calendar-home-set", "c"
	default:
		homeSetProp, ns = "addressbook-home-set", "card"
	}

	propfind := davxml.NewElement("propfind",
		davxml.NewElement("prop", davxml.NewElement(ns+":"+homeSetProp)),
	)

	resp, err := tr.Do(ctx, principalURL, transport.RequestInit{
		Method:    "PROPFIND",
		Namespace: "d",
		Headers:   map[string]string{"Depth": "0"},
		Body:      propfind,
	}, transport.DefaultOptions())
	if err != nil {
		return "", errs.Wrap(errs.KindTransportError, "home-set PROPFIND failed", err)
	}

	var match *davxml.Response
	for _, entry := range resp.Entries {
		if urlContains(principalURL, entry.Href) {
			match = entry
			break
		}
	}
	if match == nil {
		return "", errs.New(errs.KindHomeURLNotFound, "no response matched principal URL "+principalURL)
	}

	camel := camelHomeSetKey(homeSetProp)
	el := match.Props[camel]
	if el == nil {
		return "", errs.New(errs.KindHomeURLNotFound, "home-set property missing from response")
	}
	href := el.Child("href")
	if href == nil {
		return "", errs.New(errs.KindHomeURLNotFound, "home-set property missing href")
	}

	return resolveAgainst(rootURL, href.TextContent())
}

func camelHomeSetKey(prop string) string {
	if prop == "calendar-home-set" {
		return "calendarHomeSet"
	}
	return "addressbookHomeSet"
}

func resolveAgainst(base, ref string) (string, error) {
	return transport.ResolveAgainst(base, ref)
}

func urlContains(a, b string) bool {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return na == nb
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

func normalize(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}
