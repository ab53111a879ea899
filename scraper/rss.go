package scraper

import (
	"fmt"

	"github.com/mmcdole/gofeed"
)

// rssFields are the item fields an rss recipe may select.
var rssFields = map[string]func(*gofeed.Item) []Value{
	"guid":  func(i *gofeed.Item) []Value { return textValues(i.GUID) },
	"link":  func(i *gofeed.Item) []Value { return textValues(i.Link) },
	"title": func(i *gofeed.Item) []Value { return textValues(i.Title) },
	"description": func(i *gofeed.Item) []Value {
		return textValues(i.Description)
	},
	"content": func(i *gofeed.Item) []Value { return textValues(i.Content) },
	"published": func(i *gofeed.Item) []Value {
		if i.PublishedParsed != nil {
			return []Value{TimeValue(*i.PublishedParsed)}
		}
		return textValues(i.Published)
	},
	"updated": func(i *gofeed.Item) []Value {
		if i.UpdatedParsed != nil {
			return []Value{TimeValue(*i.UpdatedParsed)}
		}
		return textValues(i.Updated)
	},
	"categories": func(i *gofeed.Item) []Value { return textValues(i.Categories...) },
	"authors": func(i *gofeed.Item) []Value {
		var names []string
		for _, a := range i.Authors {
			if a != nil {
				names = append(names, a.Name)
			}
		}
		return textValues(names...)
	},
}

type rssScope struct {
	item *gofeed.Item
}

// rssItems parses an RSS or Atom feed. Feeds have a single item list, so the
// items selector is not used.
func rssItems(body []byte) ([]scope, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	scopes := make([]scope, 0, len(feed.Items))
	for _, item := range feed.Items {
		scopes = append(scopes, rssScope{item: item})
	}
	return scopes, nil
}

func (r rssScope) selectField(f *FieldRecipe) (Value, error) {
	get, ok := rssFields[f.Selector]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownRSSField, f.Selector)
	}
	return ListValue(get(r.item)), nil
}

func textValues(ss ...string) []Value {
	var out []Value
	for _, s := range ss {
		if s != "" {
			out = append(out, TextValue(s))
		}
	}
	return out
}
