// Package davxml builds and parses the namespaced XML documents that WebDAV,
// CalDAV and CardDAV requests and multistatus responses are made of.
//
// The wire shape is a dynamically typed tree: elements carry an optional
// attribute map and either child elements or character data, never both.
// Element models that shape directly instead of generating fixed Go structs
// per request/response kind, mirroring the way servers and other DAV clients
// treat the body as data rather than as a typed schema.
package davxml

// Namespace prefixes used across DAV/CalDAV/CardDAV request and response
// bodies. These match the prefixes RFC 4791/6352 examples conventionally use.
const (
	PrefixDAV            = "d"
	PrefixCalDAV         = "c"
	PrefixCardDAV        = "card"
	PrefixCalendarServer = "cs"
	PrefixAppleICal      = "ca"
)

// NamespaceSet maps a namespace URI to the prefix it is bound under in a
// given request. The zero value has no entries; use DefaultNamespaces for the
// standard set.
type NamespaceSet map[string]string

// DefaultNamespaces is the standard namespace table §4.1 names, keyed by URI
// with the prefix as value.
func DefaultNamespaces() NamespaceSet {
	return NamespaceSet{
		NSDAV:            PrefixDAV,
		NSCalDAV:         PrefixCalDAV,
		NSCardDAV:        PrefixCardDAV,
		NSCalendarServer: PrefixCalendarServer,
		NSAppleICal:      PrefixAppleICal,
	}
}

// Well-known namespace URIs.
const (
	NSDAV            = "DAV:"
	NSCalDAV          = "urn:ietf:params:xml:ns:caldav"
	NSCardDAV         = "urn:ietf:params:xml:ns:carddav"
	NSCalendarServer = "http://calendarserver.org/ns/"
	NSAppleICal      = "http://apple.com/ns/ical/"
)

// Node is a child of an Element: either another Element, literal character
// data (Cdata), or plain Text. Exactly one of the three is used per leaf.
type Node interface {
	isNode()
}

// Element is an interior or leaf node of the request/response tree. Name may
// already carry a "prefix:local" form, in which case it is emitted verbatim;
// otherwise the document's default namespace applies.
type Element struct {
	Name       string
	Attributes map[string]string
	Children   []Node
}

func (*Element) isNode() {}

// Text is a plain text leaf. Decode keeps leaf text as Text; AsNumber and
// AsBool read it as a number or boolean on demand.
type Text string

func (Text) isNode() {}

// Cdata is literal character data preserved verbatim (no type coercion),
// used for opaque payloads such as calendar-data/address-data.
type Cdata string

func (Cdata) isNode() {}

// NewElement builds a leaf or interior element with the given children.
func NewElement(name string, children ...Node) *Element {
	return &Element{Name: name, Children: children}
}

// WithAttr sets an attribute and returns the element for chaining.
func (e *Element) WithAttr(key, value string) *Element {
	if e.Attributes == nil {
		e.Attributes = map[string]string{}
	}
	e.Attributes[key] = value
	return e
}

// Child returns the first child Element with the given local name (after
// camelCase normalization), or nil if none matches.
func (e *Element) Child(localName string) *Element {
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok && el.Name == localName {
			return el
		}
	}
	return nil
}

// ChildrenNamed returns every child Element with the given local name.
func (e *Element) ChildrenNamed(localName string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok && el.Name == localName {
			out = append(out, el)
		}
	}
	return out
}

// TextContent returns the content of the element's first Text or Cdata
// child, or "" for a purely structural element.
func (e *Element) TextContent() string {
	for _, c := range e.Children {
		switch v := c.(type) {
		case Text:
			return string(v)
		case Cdata:
			return string(v)
		}
	}
	return ""
}
