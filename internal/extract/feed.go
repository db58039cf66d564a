package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedEntry is one item of an RSS or Atom feed
type FeedEntry struct {
	Title     string
	Link      string
	Authors   []string
	Published time.Time
}

// IsFeed reports whether a response looks like an RSS or Atom feed
func IsFeed(contentType, body string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	if strings.Contains(head, "<html") {
		return false
	}
	return strings.Contains(head, "<rss") || strings.Contains(head, "<feed") || strings.Contains(head, "<rdf:rdf")
}

// ParseFeed parses an RSS or Atom body into entries with a link
func ParseFeed(body string) ([]FeedEntry, error) {
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		entry := FeedEntry{
			Title: strings.TrimSpace(item.Title),
			Link:  strings.TrimSpace(item.Link),
		}
		for _, person := range item.Authors {
			if person != nil && strings.TrimSpace(person.Name) != "" {
				entry.Authors = append(entry.Authors, strings.TrimSpace(person.Name))
			}
		}
		if len(entry.Authors) == 0 && item.DublinCoreExt != nil {
			for _, creator := range item.DublinCoreExt.Creator {
				if creator = strings.TrimSpace(creator); creator != "" {
					entry.Authors = append(entry.Authors, creator)
				}
			}
		}
		switch {
		case item.PublishedParsed != nil:
			entry.Published = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			entry.Published = item.UpdatedParsed.UTC()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
