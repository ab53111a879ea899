package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// Kind identifies what a Value holds.
type Kind int

const (
	KindText Kind = iota + 1
	KindNode
	KindList
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNode:
		return "node"
	case KindList:
		return "list"
	case KindTime:
		return "time"
	default:
		return "invalid"
	}
}

// Value is the intermediate result flowing through a recipe's steps.
type Value struct {
	Kind Kind
	Text string
	Node *goquery.Selection
	List []Value
	Time time.Time
}

// TextValue wraps a string.
func TextValue(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// NodeValue wraps a document node.
func NodeValue(s *goquery.Selection) Value {
	return Value{Kind: KindNode, Node: s}
}

// ListValue wraps a list of values.
func ListValue(vs []Value) Value {
	return Value{Kind: KindList, List: vs}
}

// TimeValue wraps a timestamp.
func TimeValue(t time.Time) Value {
	return Value{Kind: KindTime, Time: t}
}

// String renders the value as text. Nodes render as their collapsed text and
// lists as their non-empty elements joined by newlines.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNode:
		return collapse(v.Node.Text())
	case KindTime:
		return v.Time.Format(time.RFC3339)
	case KindList:
		var parts []string
		for _, e := range v.List {
			if s := e.String(); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// Strings flattens the value into its non-empty text elements.
func (v Value) Strings() []string {
	if v.Kind != KindList {
		if s := v.String(); s != "" {
			return []string{s}
		}
		return nil
	}

	var out []string
	for _, e := range v.List {
		out = append(out, e.Strings()...)
	}
	return out
}

// AsTime converts the value to a timestamp. Text is parsed in any common
// layout; a list yields its first element.
func (v Value) AsTime() (time.Time, error) {
	switch v.Kind {
	case KindTime:
		return v.Time, nil
	case KindText, KindNode:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return time.Time{}, ErrNoValue
		}
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
		}
		return t, nil
	case KindList:
		if len(v.List) == 0 {
			return time.Time{}, ErrNoValue
		}
		return v.List[0].AsTime()
	default:
		return time.Time{}, ErrNoValue
	}
}

// collapse trims s and folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
