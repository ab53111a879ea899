package scraper

import (
	"errors"

	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("document is not valid JSON")

type jsonScope struct {
	r gjson.Result
}

func jsonItems(body []byte, items string) ([]scope, error) {
	if !gjson.ValidBytes(body) {
		return nil, errInvalidJSON
	}

	root := gjson.ParseBytes(body)
	if items != "" {
		root = root.Get(items)
	}

	var scopes []scope
	if root.IsArray() {
		for _, r := range root.Array() {
			scopes = append(scopes, jsonScope{r: r})
		}
	} else if root.Exists() {
		scopes = append(scopes, jsonScope{r: root})
	}
	return scopes, nil
}

func jsonRoot(body []byte) (scope, error) {
	if !gjson.ValidBytes(body) {
		return nil, errInvalidJSON
	}
	return jsonScope{r: gjson.ParseBytes(body)}, nil
}

// selectField resolves f.Selector as a gjson path. Arrays become lists and
// scalars single-element lists; the attribute is ignored.
func (j jsonScope) selectField(f *FieldRecipe) (Value, error) {
	r := j.r
	if f.Selector != "" {
		r = r.Get(f.Selector)
	}
	if !r.Exists() || r.Type == gjson.Null {
		return ListValue(nil), nil
	}

	if r.IsArray() {
		var out []Value
		for _, e := range r.Array() {
			out = append(out, TextValue(e.String()))
		}
		return ListValue(out), nil
	}
	return ListValue([]Value{TextValue(r.String())}), nil
}
