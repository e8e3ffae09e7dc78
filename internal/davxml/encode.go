package davxml

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

// EncodeOptions controls how Encode renders the outgoing document.
type EncodeOptions struct {
	// DefaultNamespace is applied to every element name that does not
	// already contain a "prefix:" component.
	DefaultNamespace string
	// Namespaces lists the xmlns declarations to emit on the root element.
	Namespaces NamespaceSet
	// RootAttributes become additional attributes on the root element,
	// alongside the xmlns declarations.
	RootAttributes map[string]string
}

// Encode renders root as a complete XML document: declaration, namespace
// declarations on the root element, and the element tree itself.
func Encode(root *Element, opts EncodeOptions) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("davxml: cannot encode a nil root element")
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	rootElem := appendElement(doc, root, opts.DefaultNamespace)

	for uri, prefix := range opts.Namespaces {
		rootElem.CreateAttr(davAttribute(prefix), uri)
	}
	for k, v := range opts.RootAttributes {
		rootElem.CreateAttr(k, v)
	}

	doc.Indent(0)
	return doc.WriteToBytes()
}

// davAttribute returns "xmlns:<prefix>" for a namespace prefix, used by
// getDAVAttribute-style declarations.
func davAttribute(prefix string) string {
	return "xmlns:" + prefix
}

func appendElement(parent interface {
	CreateElement(string) *etree.Element
}, e *Element, defaultNS string) *etree.Element {
	tag := qualifiedName(e.Name, defaultNS)
	el := parent.CreateElement(tag)

	for k, v := range e.Attributes {
		el.CreateAttr(k, v)
	}

	for _, child := range e.Children {
		switch v := child.(type) {
		case *Element:
			appendElement(el, v, defaultNS)
		case Text:
			el.SetText(coerceToString(string(v)))
		case Cdata:
			el.CreateCharData(string(v))
		}
	}
	return el
}

// qualifiedName returns name verbatim if it already has a "prefix:local"
// shape, otherwise prefixes it with defaultNS (per §4.1: "A configured
// default namespace applies to every element name that does not already
// contain a colon").
func qualifiedName(name, defaultNS string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			return name
		}
	}
	if defaultNS == "" {
		return name
	}
	return defaultNS + ":" + name
}

func coerceToString(s string) string {
	return s
}

// GetDAVAttribute produces the "xmlns:<prefix>" -> uri pairs for a namespace
// set as a map, matching getDAVAttribute(nsSet) from §4.1.
func GetDAVAttribute(ns NamespaceSet) map[string]string {
	out := make(map[string]string, len(ns))
	for uri, prefix := range ns {
		out[davAttribute(prefix)] = uri
	}
	return out
}

// Itoa is a small helper so callers building numeric Text leaves don't need
// to import strconv themselves.
func Itoa(n int) Text { return Text(strconv.Itoa(n)) }
