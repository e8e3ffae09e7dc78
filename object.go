package davclient

import (
	"context"

	"github.com/nwidger/davclient/internal/transport"
)

// ContentTypeCalendar and ContentTypeVCard are the Content-Type values spec
// §4.6 names for calendar objects and vCards respectively.
const (
	ContentTypeCalendar = "text/calendar; charset=utf-8"
	ContentTypeVCard    = "text/vcard; charset=utf-8"
)

// CreateObject PUTs data to url with If-None-Match: * so the request fails
// if a resource already exists there, per spec §4.6. It returns the
// server-assigned etag from the response headers when present.
func (c *Client) CreateObject(ctx context.Context, url, contentType string, data []byte) (*DAVObject, error) {
	resp, err := c.do(ctx, url, transport.RequestInit{
		Method:    "PUT",
		Namespace: "d",
		RawBody:   data,
		Headers:   map[string]string{"If-None-Match": "*", "Content-Type": contentType},
	}, transport.Options{ConvertIncoming: false, ParseOutgoing: false})
	if err != nil {
		return nil, wrapError(KindTransportError, "PUT "+url+" failed", err)
	}
	if !resp.OK {
		return nil, newError(KindTransportError, "PUT "+url+" returned "+resp.StatusText)
	}
	return &DAVObject{URL: resp.URL, ETag: etagFromResponse(resp), Data: data}, nil
}

// UpdateObject PUTs data to url with If-Match: etag so the request fails on
// a concurrent modification, per spec §4.6.
func (c *Client) UpdateObject(ctx context.Context, url, etag, contentType string, data []byte) (*DAVObject, error) {
	headers := map[string]string{"Content-Type": contentType}
	if etag != "" {
		headers["If-Match"] = etag
	}
	resp, err := c.do(ctx, url, transport.RequestInit{
		Method:    "PUT",
		Namespace: "d",
		RawBody:   data,
		Headers:   headers,
	}, transport.Options{ConvertIncoming: false, ParseOutgoing: false})
	if err != nil {
		return nil, wrapError(KindTransportError, "PUT "+url+" failed", err)
	}
	if !resp.OK {
		return nil, newError(KindTransportError, "PUT "+url+" returned "+resp.StatusText)
	}
	newETag := etagFromResponse(resp)
	if newETag == "" {
		newETag = etag
	}
	return &DAVObject{URL: resp.URL, ETag: newETag, Data: data}, nil
}

// DeleteObject DELETEs url with If-Match: etag, per spec §4.6.
func (c *Client) DeleteObject(ctx context.Context, url, etag string) error {
	headers := map[string]string{}
	if etag != "" {
		headers["If-Match"] = etag
	}
	resp, err := c.do(ctx, url, transport.RequestInit{
		Method:    "DELETE",
		Namespace: "d",
		Headers:   headers,
	}, transport.Options{ConvertIncoming: false, ParseOutgoing: false})
	if err != nil {
		return wrapError(KindTransportError, "DELETE "+url+" failed", err)
	}
	if !resp.OK {
		return newError(KindTransportError, "DELETE "+url+" returned "+resp.StatusText)
	}
	return nil
}

func etagFromResponse(resp *transport.Response) string {
	if resp.Headers == nil {
		return ""
	}
	return resp.Headers.Get("ETag")
}
