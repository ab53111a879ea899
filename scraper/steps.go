package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Step operations. Each Step carries one Op and only the parameters that op
// reads.
const (
	OpFirst    = "first"
	OpLast     = "last"
	OpTail     = "tail"
	OpJoin     = "join"
	OpSplit    = "split"
	OpRegex    = "regex"
	OpTrim     = "trim"
	OpSlug     = "slug"
	OpPrev     = "prev"
	OpAttr     = "attr"
	OpText     = "text"
	OpTime     = "time"
	OpUnix     = "unix"
	OpAbsolute = "absolute"
)

var (
	ErrUnknownStep = errors.New("unknown step op")
	ErrInvalidStep = errors.New("invalid step parameters")
	// ErrNoValue means a selector or step produced nothing.
	ErrNoValue = errors.New("no value")
)

// StepError is returned when a step receives a value of the wrong kind.
type StepError struct {
	Op   string
	Want Kind
	Got  Kind
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q expects %s input, got %s", e.Op, e.Want, e.Got)
}

// Step is one transformation in a field recipe.
type Step struct {
	Op       string `yaml:"op" json:"op"`
	Count    int    `yaml:"count,omitempty" json:"count,omitempty"`
	Sep      string `yaml:"sep,omitempty" json:"sep,omitempty"`
	Index    int    `yaml:"index,omitempty" json:"index,omitempty"`
	Pattern  string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Selector string `yaml:"selector,omitempty" json:"selector,omitempty"`
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Layout   string `yaml:"layout,omitempty" json:"layout,omitempty"`
}

// Validate checks the op and the parameters it needs.
func (s Step) Validate() error {
	switch s.Op {
	case OpFirst, OpLast, OpJoin, OpTrim, OpSlug, OpText, OpTime, OpUnix, OpAbsolute:
		return nil
	case OpTail:
		if s.Count <= 0 {
			return fmt.Errorf("%w: tail needs a positive count", ErrInvalidStep)
		}
	case OpSplit:
		if s.Sep == "" {
			return fmt.Errorf("%w: split needs a separator", ErrInvalidStep)
		}
	case OpRegex:
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStep, err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("%w: regex %q has no capture group", ErrInvalidStep, s.Pattern)
		}
	case OpPrev:
		if s.Selector == "" {
			return fmt.Errorf("%w: prev needs a selector", ErrInvalidStep)
		}
	case OpAttr:
		if s.Name == "" {
			return fmt.Errorf("%w: attr needs a name", ErrInvalidStep)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStep, s.Op)
	}
	return nil
}

// Apply runs the step on v. Steps that work on single values are applied to
// every element of a list.
func (s Step) Apply(v Value, base *url.URL) (Value, error) {
	switch s.Op {
	case OpFirst, OpLast, OpTail, OpJoin:
		return s.applyList(v)
	}

	if v.Kind == KindList {
		out := make([]Value, 0, len(v.List))
		for _, e := range v.List {
			r, err := s.Apply(e, base)
			if err != nil {
				return Value{}, err
			}
			out = append(out, r)
		}
		return ListValue(out), nil
	}

	switch s.Op {
	case OpPrev, OpAttr, OpText:
		return s.applyNode(v)
	default:
		return s.applyText(v, base)
	}
}

func (s Step) applyList(v Value) (Value, error) {
	if v.Kind != KindList {
		return Value{}, &StepError{Op: s.Op, Want: KindList, Got: v.Kind}
	}

	switch s.Op {
	case OpFirst:
		if len(v.List) == 0 {
			return Value{}, ErrNoValue
		}
		return v.List[0], nil
	case OpLast:
		if len(v.List) == 0 {
			return Value{}, ErrNoValue
		}
		return v.List[len(v.List)-1], nil
	case OpTail:
		n := min(s.Count, len(v.List))
		return ListValue(v.List[len(v.List)-n:]), nil
	default:
		return TextValue(strings.Join(v.Strings(), s.Sep)), nil
	}
}

func (s Step) applyNode(v Value) (Value, error) {
	if v.Kind != KindNode {
		return Value{}, &StepError{Op: s.Op, Want: KindNode, Got: v.Kind}
	}

	switch s.Op {
	case OpPrev:
		prev := v.Node.PrevAllFiltered(s.Selector).First()
		if prev.Length() == 0 {
			return Value{}, ErrNoValue
		}
		return NodeValue(prev), nil
	case OpAttr:
		val, ok := v.Node.Attr(s.Name)
		if !ok {
			return Value{}, ErrNoValue
		}
		return TextValue(val), nil
	default:
		return TextValue(collapse(v.Node.Text())), nil
	}
}

func (s Step) applyText(v Value, base *url.URL) (Value, error) {
	if v.Kind != KindText {
		return Value{}, &StepError{Op: s.Op, Want: KindText, Got: v.Kind}
	}
	text := v.Text

	switch s.Op {
	case OpTrim:
		return TextValue(collapse(text)), nil

	case OpSplit:
		parts := strings.Split(text, s.Sep)
		i := s.Index
		if i < 0 {
			i += len(parts)
		}
		if i < 0 || i >= len(parts) {
			return Value{}, ErrNoValue
		}
		return TextValue(parts[i]), nil

	case OpRegex:
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidStep, err)
		}
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			return Value{}, ErrNoValue
		}
		return TextValue(m[1]), nil

	case OpSlug:
		p := text
		if u, err := url.Parse(text); err == nil {
			p = u.Path
		}
		slug := path.Base(strings.TrimRight(p, "/"))
		if slug == "." || slug == "/" || slug == "" {
			return Value{}, ErrNoValue
		}
		return TextValue(slug), nil

	case OpTime:
		text = strings.TrimSpace(text)
		if s.Layout == "" {
			return TextValue(text).asTimeValue()
		}
		t, err := time.Parse(s.Layout, text)
		if err != nil {
			return Value{}, fmt.Errorf("failed to parse time %q: %w", text, err)
		}
		return TimeValue(t), nil

	case OpUnix:
		sec, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("failed to parse unix time %q: %w", text, err)
		}
		return TimeValue(time.Unix(sec, 0).UTC()), nil

	case OpAbsolute:
		ref, err := url.Parse(strings.TrimSpace(text))
		if err != nil {
			return Value{}, fmt.Errorf("failed to parse url %q: %w", text, err)
		}
		if base == nil {
			return TextValue(ref.String()), nil
		}
		return TextValue(base.ResolveReference(ref).String()), nil
	}

	return Value{}, fmt.Errorf("%w: %q", ErrUnknownStep, s.Op)
}

func (v Value) asTimeValue() (Value, error) {
	t, err := v.AsTime()
	if err != nil {
		return Value{}, err
	}
	return TimeValue(t), nil
}
