package adapter

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"gigalert/internal/model"
)

// rssFeed mirrors the subset of the RSS 2.0 document we read.
type rssFeed struct {
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

var skywalkerIDRegex = regexp.MustCompile(`/aggelia/(\d+)`)

// SkywalkerAdapter fetches the Skywalker.gr jobs RSS feed. The feed has
// no keyword query; filtering happens downstream per recipient.
type SkywalkerAdapter struct {
	feedURL string
	client  *http.Client
}

// NewSkywalkerAdapter creates an adapter for the given RSS feed URL.
func NewSkywalkerAdapter(feedURL string, client *http.Client) *SkywalkerAdapter {
	return &SkywalkerAdapter{
		feedURL: feedURL,
		client:  client,
	}
}

func (a *SkywalkerAdapter) Name() string { return "skywalker" }

// Fetch retrieves and parses the full feed. Keywords are ignored.
func (a *SkywalkerAdapter) Fetch(ctx context.Context, _ []string) ([]model.Job, error) {
	body, err := get(ctx, a.client, a.feedURL)
	if err != nil {
		return nil, fmt.Errorf("skywalker fetch: %w", err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("skywalker fetch: parsing feed: %w", err)
	}

	jobs := make([]model.Job, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		job := model.Job{
			Source:      "skywalker",
			ExternalID:  skywalkerID(it.Link),
			Title:       extractText(it.Title),
			Description: extractText(it.Description),
			URL:         it.Link,
			Currency:    "EUR",
		}

		if it.PubDate != "" {
			if t, err := time.Parse(time.RFC1123Z, it.PubDate); err == nil {
				job.PostedAt = &t
			} else if t, err := time.Parse(time.RFC1123, it.PubDate); err == nil {
				job.PostedAt = &t
			}
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

// skywalkerID derives a stable external id from the listing link,
// e.g. "https://www.skywalker.gr/aggelia/12345" → "sky-12345".
func skywalkerID(link string) string {
	if m := skywalkerIDRegex.FindStringSubmatch(link); m != nil {
		return "sky-" + m[1]
	}
	return link
}
