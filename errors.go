package davclient

import "github.com/nwidger/davclient/internal/errs"

// Kind identifies one of the error conditions spec §7 names. Discovery
// failures (ServiceDiscoveryFailed) are recovered locally and never surface
// as a Kind to the caller; every other Kind propagates.
type Kind = errs.Kind

const (
	// KindInvalidCredentials is raised by fetchPrincipalUrl on HTTP 401.
	KindInvalidCredentials = errs.KindInvalidCredentials
	// KindHomeURLNotFound is raised by fetchHomeUrl when no response matches.
	KindHomeURLNotFound = errs.KindHomeURLNotFound
	// KindCollectionNotFound is raised by isCollectionDirty when urlContains finds no response.
	KindCollectionNotFound = errs.KindCollectionNotFound
	// KindMissingField is raised by any adapter that requires specific account/collection fields.
	KindMissingField = errs.KindMissingField
	// KindInvalidTimeRange is raised by adapters receiving a non-ISO-8601 range.
	KindInvalidTimeRange = errs.KindInvalidTimeRange
	// KindOAuthConfigMissing is raised by OAuth token fetch/refresh preconditions.
	KindOAuthConfigMissing = errs.KindOAuthConfigMissing
	// KindOAuthFetchFailed is raised when the OAuth token endpoint returns non-2xx.
	KindOAuthFetchFailed = errs.KindOAuthFetchFailed
	// KindTransportError wraps a failure from the external HTTP collaborator.
	KindTransportError = errs.KindTransportError
)

// Error is the typed error the core returns for every Kind in spec §7,
// following the teacher's "davclient: <message>" wrapping convention.
type Error = errs.Error

func newError(kind Kind, message string) *Error {
	return errs.New(kind, message)
}

func wrapError(kind Kind, message string, err error) *Error {
	return errs.Wrap(kind, message, err)
}

// errMissingFields builds a KindMissingField error naming every absent
// field, matching MissingField(fields…) from spec §7.
func errMissingFields(context string, fields ...string) *Error {
	return errs.MissingFields(context, fields...)
}
