package davclient

import (
	"context"

	"github.com/nwidger/davclient/auth"
	"github.com/nwidger/davclient/discovery"
	"github.com/nwidger/davclient/internal/transport"
)

// Logger is the optional debug-channel contract of SPEC_FULL.md §6: the
// client emits trace lines but never depends on them for correctness.
type Logger = transport.Logger

// Client is the bound-together DAV collaborator: an HTTP doer, an auth
// header provider, and an optional logger, matching the teacher's
// NewClient(c webdav.HTTPClient, endpoint string) shape generalized to
// multiple constructor options.
type Client struct {
	transport *transport.Transport
	auth      auth.Provider
	proxyURL  string
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithProxyURL sets a URL prefix prepended to every outbound request, per
// spec §6's "Proxy" note.
func WithProxyURL(proxyURL string) Option {
	return func(c *Client) { c.proxyURL = proxyURL }
}

// WithLogger installs a debug-channel logger; the default is silent.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.transport.Logger = logger
		}
	}
}

// NewClient builds a Client around doer (the external HTTP collaborator) and
// provider (the auth header source), per spec §6.
func NewClient(doer transport.HTTPDoer, provider auth.Provider, opts ...Option) *Client {
	c := &Client{transport: transport.New(doer), auth: provider}
	for _, opt := range opts {
		opt(c)
	}
	c.transport.ProxyURL = c.proxyURL
	return c
}

// do issues a DAV request, merging the auth provider's headers under any
// caller-supplied headers in init.
func (c *Client) do(ctx context.Context, url string, init transport.RequestInit, opts transport.Options) (*transport.Response, error) {
	authHeaders, err := c.auth.Headers(ctx)
	if err != nil {
		return nil, wrapError(KindOAuthFetchFailed, "auth provider failed to produce headers", err)
	}

	merged := make(map[string]string, len(authHeaders)+len(init.Headers))
	for k, v := range authHeaders {
		merged[k] = v
	}
	for k, v := range init.Headers {
		merged[k] = v
	}
	init.Headers = merged

	return c.transport.Do(ctx, url, init, opts)
}

// CreateAccountOptions controls how much of the account CreateAccount
// populates beyond the bare bootstrap URLs, per spec §4.4.
type CreateAccountOptions struct {
	AccountType AccountType
	ServerURL   string

	// LoadCollections, when true, also calls FetchCalendars/FetchAddressBooks
	// (matching AccountType) after discovery.
	LoadCollections bool
	// LoadObjects, when true (and LoadCollections is true), also fetches
	// every collection's objects in parallel after collections load.
	LoadObjects bool
}

// CreateAccount runs the sequential discovery steps of spec §4.4
// (.well-known probe, current-user-principal, home-set) and returns the
// bootstrapped Account. The discovery steps are strictly sequential: each
// depends on the prior step's result, per spec §5.
func (c *Client) CreateAccount(ctx context.Context, opts CreateAccountOptions) (*Account, error) {
	dtype := discovery.CalDAV
	if opts.AccountType == AccountTypeCardDAV {
		dtype = discovery.CardDAV
	}

	rootURL := discovery.ServiceDiscovery(ctx, c.transport, opts.ServerURL, dtype)

	principalURL, err := discovery.CurrentUserPrincipal(ctx, c.transport, rootURL)
	if err != nil {
		return nil, err
	}

	homeURL, err := discovery.HomeURL(ctx, c.transport, rootURL, principalURL, dtype)
	if err != nil {
		return nil, err
	}

	account := &Account{
		AccountType:  opts.AccountType,
		ServerURL:    opts.ServerURL,
		RootURL:      rootURL,
		PrincipalURL: principalURL,
		HomeURL:      homeURL,
		ProxyURL:     c.proxyURL,
	}

	if !opts.LoadCollections {
		return account, nil
	}

	switch opts.AccountType {
	case AccountTypeCardDAV:
		books, err := c.FetchAddressBooks(ctx, *account)
		if err != nil {
			return nil, err
		}
		account.AddressBooks = books
	default:
		cals, err := c.FetchCalendars(ctx, *account)
		if err != nil {
			return nil, err
		}
		account.Calendars = cals
	}

	if !opts.LoadObjects {
		return account, nil
	}

	if err := c.loadObjects(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// loadObjects fetches every collection's objects in parallel, per spec §5's
// "loadObjects fans calendar/address-book object fetches out concurrently."
func (c *Client) loadObjects(ctx context.Context, account *Account) error {
	type result struct {
		index int
		objs  []DAVObject
		err   error
	}

	fetchAll := func(n int, fetch func(int) ([]DAVObject, error)) ([]error, [][]DAVObject) {
		results := make(chan result, n)
		for i := 0; i < n; i++ {
			go func(i int) {
				objs, err := fetch(i)
				results <- result{index: i, objs: objs, err: err}
			}(i)
		}
		errsOut := make([]error, n)
		objsOut := make([][]DAVObject, n)
		for i := 0; i < n; i++ {
			r := <-results
			errsOut[r.index] = r.err
			objsOut[r.index] = r.objs
		}
		return errsOut, objsOut
	}

	if len(account.Calendars) > 0 {
		errsOut, objsOut := fetchAll(len(account.Calendars), func(i int) ([]DAVObject, error) {
			return c.FetchCalendarObjects(ctx, account.Calendars[i], CalendarObjectQuery{})
		})
		for i, err := range errsOut {
			if err != nil {
				return err
			}
			account.Calendars[i].Objects = objsOut[i]
		}
	}

	if len(account.AddressBooks) > 0 {
		errsOut, objsOut := fetchAll(len(account.AddressBooks), func(i int) ([]DAVObject, error) {
			return c.FetchVCards(ctx, account.AddressBooks[i], VCardQuery{})
		})
		for i, err := range errsOut {
			if err != nil {
				return err
			}
			account.AddressBooks[i].Objects = objsOut[i]
		}
	}

	return nil
}

