package davxml

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Decode parses raw into a Element tree. Local element names are lowercased,
// camelCased (hyphens/underscores removed) and stripped of their namespace
// prefix, per §4.1 "Decoding". Text content is kept as a Text leaf holding
// the literal string (read it via TextContent); AsNumber and AsBool apply the
// number/bool reading to it on demand.
func Decode(raw []byte) (*Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, errEmptyDocument
	}
	return decodeElement(root), nil
}

var errEmptyDocument = fmtError("davxml: empty XML document")

type docError string

func (e docError) Error() string { return string(e) }

func fmtError(s string) error { return docError(s) }

func decodeElement(src *etree.Element) *Element {
	el := &Element{Name: camelCase(src.Tag)}

	if len(src.Attr) > 0 {
		el.Attributes = make(map[string]string, len(src.Attr))
		for _, a := range src.Attr {
			key := a.Key
			if a.Space != "" {
				key = a.Space + ":" + a.Key
			}
			el.Attributes[key] = a.Value
		}
	}

	children := src.ChildElements()
	if len(children) == 0 {
		if text := strings.TrimSpace(src.Text()); text != "" {
			el.Children = append(el.Children, coerceText(text))
		}
		return el
	}

	for _, c := range children {
		el.Children = append(el.Children, decodeElement(c))
	}
	return el
}

// camelCase lowercases a local element name and removes hyphens/underscores,
// camelCasing the following letter, e.g. "Current-User-Principal" ->
// "currentUserPrincipal", "getctag" -> "getctag".
func camelCase(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ToLower(name)

	var b strings.Builder
	upperNext := false
	for _, r := range name {
		if r == '-' || r == '_' {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteString(strings.ToUpper(string(r)))
			upperNext = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// coerceText implements §4.1's leaf coercion rule: a decimal-parseable
// string becomes a number, "true"/"false" (case-insensitive) become a bool,
// otherwise it stays a string. The Go representation keeps all three as Text
// (string); AsNumber and AsBool below perform the typed reading on demand,
// since a single Text leaf may be read as a string in one context and a
// number in another.
func coerceText(s string) Text { return Text(s) }

// AsNumber reports whether s parses as a decimal number, returning the value.
func AsNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// AsBool reports whether s is "true"/"false" case-insensitively.
func AsBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
