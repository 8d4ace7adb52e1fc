package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const skywalkerFeedFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Skywalker Jobs</title>
    <item>
      <title>&#916;&#951;&#956;&#953;&#959;&#965;&#961;&#947;&#972;&#962; Copywriter</title>
      <link>https://www.skywalker.gr/aggelia/98765</link>
      <description>&lt;p&gt;Full-time &lt;b&gt;copywriter&lt;/b&gt; position&lt;/p&gt;</description>
      <pubDate>Mon, 24 Aug 2026 09:15:00 +0300</pubDate>
    </item>
    <item>
      <title>Graphic Designer</title>
      <link>https://www.skywalker.gr/thesi/designer</link>
      <description>Remote design work</description>
    </item>
  </channel>
</rss>`

func TestSkywalkerFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(skywalkerFeedFixture))
	}))
	defer srv.Close()

	a := NewSkywalkerAdapter(srv.URL, srv.Client())

	jobs, err := a.Fetch(context.Background(), []string{"ignored"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	j := jobs[0]
	if j.ExternalID != "sky-98765" {
		t.Errorf("ExternalID = %q, want sky-98765", j.ExternalID)
	}
	if j.Description != "Full-time copywriter position" {
		t.Errorf("Description = %q, want tags stripped", j.Description)
	}
	if j.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", j.Currency)
	}
	if j.PostedAt == nil {
		t.Fatal("PostedAt should be parsed from pubDate")
	}
	if j.PostedAt.Day() != 24 {
		t.Errorf("PostedAt = %v", j.PostedAt)
	}

	// Link without an /aggelia/ id falls back to the link itself.
	if jobs[1].ExternalID != "https://www.skywalker.gr/thesi/designer" {
		t.Errorf("ExternalID fallback = %q", jobs[1].ExternalID)
	}
	if jobs[1].PostedAt != nil {
		t.Error("missing pubDate should leave PostedAt nil")
	}
}

func TestSkywalkerFetch_BadXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not xml at all <"))
	}))
	defer srv.Close()

	a := NewSkywalkerAdapter(srv.URL, srv.Client())
	if _, err := a.Fetch(context.Background(), nil); err == nil {
		t.Fatal("expected error for malformed feed")
	}
}

func TestSkywalkerFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewSkywalkerAdapter(srv.URL, srv.Client())
	if _, err := a.Fetch(context.Background(), nil); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
