package davxml

import (
	"regexp"
	"strconv"
	"strings"
)

// statusLineRE splits a DAV status line such as "HTTP/1.1 404 Not Found"
// into its numeric status and reason phrase, per §4.1.
var statusLineRE = regexp.MustCompile(`^\S+\s(\d+)\s(.+)$`)

// PropStat is one <propstat> block: the properties it carries and the
// status line they share.
type PropStat struct {
	Status     int
	StatusText string
	Props      map[string]*Element
}

// Response is the normalized, per-resource shape of one <response> element
// inside a <multistatus> body (spec §3's DAVResponse).
type Response struct {
	Href                string
	Status              int
	StatusText          string
	OK                   bool
	Error               *Element
	ResponseDescription string
	// Props is the flattened propstat.prop map: later propstat entries win
	// on key collision, per §4.1.
	Props map[string]*Element
	// RawPropStat preserves the per-propstat grouping the flattened Props
	// map loses, per the §9 design note.
	RawPropStat []PropStat
	// Raw is the decoded response subtree, for callers that need a
	// fallback beyond the normalized shape.
	Raw *Element
}

// ParseMultistatus decodes a <multistatus> document into its per-resource
// Response list and the sync-token (if any), per §4.1 "Decoding".
// fallbackStatus/fallbackStatusText are used for any <response> whose
// <status> line is absent or fails to parse.
func ParseMultistatus(root *Element, fallbackStatus int, fallbackStatusText string) ([]*Response, string) {
	if root == nil || root.Name != "multistatus" {
		return nil, ""
	}

	var syncToken string
	if tok := root.Child("syncToken"); tok != nil {
		syncToken = tok.TextContent()
	}

	responses := root.ChildrenNamed("response")
	out := make([]*Response, 0, len(responses))
	for _, r := range responses {
		out = append(out, parseResponse(r, fallbackStatus, fallbackStatusText))
	}
	return out, syncToken
}

func parseResponse(r *Element, fallbackStatus int, fallbackStatusText string) *Response {
	resp := &Response{Raw: r}

	if href := r.Child("href"); href != nil {
		resp.Href = href.TextContent()
	}
	if desc := r.Child("responsedescription"); desc != nil {
		resp.ResponseDescription = desc.TextContent()
	}

	status, statusText, ok := splitStatusLine(r.Child("status"))
	if !ok {
		status, statusText = fallbackStatus, fallbackStatusText
	}
	resp.Status = status
	resp.StatusText = statusText

	if errEl := r.Child("error"); errEl != nil {
		resp.Error = errEl
	}
	resp.OK = resp.Error == nil

	resp.Props = map[string]*Element{}
	for _, ps := range r.ChildrenNamed("propstat") {
		status, statusText, ok := splitStatusLine(ps.Child("status"))
		if !ok {
			status, statusText = fallbackStatus, fallbackStatusText
		}
		props := map[string]*Element{}
		if propEl := ps.Child("prop"); propEl != nil {
			for _, c := range propEl.Children {
				if el, ok := c.(*Element); ok {
					props[el.Name] = el
				}
			}
		}
		resp.RawPropStat = append(resp.RawPropStat, PropStat{
			Status:     status,
			StatusText: statusText,
			Props:      props,
		})
		for k, v := range props {
			resp.Props[k] = v
		}
	}

	return resp
}

func splitStatusLine(status *Element) (code int, text string, ok bool) {
	if status == nil {
		return 0, "", false
	}
	m := statusLineRE.FindStringSubmatch(strings.TrimSpace(status.TextContent()))
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return n, m[2], true
}

// SyntheticResponse builds the single-element response list §4.1's
// "Degenerate case" describes for a non-XML, non-2xx, or parseOutgoing=false
// body.
func SyntheticResponse(href string, status int, statusText string, ok bool, rawBody string) []*Response {
	return []*Response{{
		Href:       href,
		Status:     status,
		StatusText: statusText,
		OK:         ok,
		Raw:        &Element{Name: "raw", Children: []Node{Text(rawBody)}},
	}}
}
