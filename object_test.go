package davclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nwidger/davclient/auth"
)

func newTestClient(ts *httptest.Server) *Client {
	return NewClient(ts.Client(), auth.NewBasicProvider("u", "p"))
}

func TestCreateObjectSendsIfNoneMatchStar(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" {
			t.Fatalf("expected PUT, got %s", r.Method)
		}
		if r.Header.Get("If-None-Match") != "*" {
			t.Errorf("If-None-Match = %q", r.Header.Get("If-None-Match"))
		}
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	obj, err := c.CreateObject(context.Background(), ts.URL+"/cal/event1.ics", ContentTypeCalendar, []byte("BEGIN:VCALENDAR\nEND:VCALENDAR"))
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	if obj.ETag != `"abc123"` {
		t.Errorf("ETag = %q", obj.ETag)
	}
}

func TestUpdateObjectSendsIfMatch(t *testing.T) {
	var sawIfMatch string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawIfMatch = r.Header.Get("If-Match")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.UpdateObject(context.Background(), ts.URL+"/cal/event1.ics", `"etag1"`, ContentTypeCalendar, []byte("data"))
	if err != nil {
		t.Fatalf("UpdateObject: %v", err)
	}
	if sawIfMatch != `"etag1"` {
		t.Errorf("If-Match = %q", sawIfMatch)
	}
}

func TestDeleteObjectOmitsIfMatchWhenEtagEmpty(t *testing.T) {
	var sawIfMatch string
	var hadHeader bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawIfMatch, hadHeader = r.Header.Get("If-Match"), r.Header["If-Match"] != nil
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	if err := c.DeleteObject(context.Background(), ts.URL+"/cal/event1.ics", ""); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if hadHeader {
		t.Errorf("expected no If-Match header, got %q", sawIfMatch)
	}
}

func TestDeleteObjectFailsOnNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	if err := c.DeleteObject(context.Background(), ts.URL+"/cal/event1.ics", `"stale"`); err == nil {
		t.Fatal("expected error on 412")
	}
}
