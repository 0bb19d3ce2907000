package tool

import (
	"encoding/json"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/habiliai/supportagent/errors"
)

// args is a decoded JSON object from an Action Input line.
type args map[string]any

func parseArgs(input string) (args, error) {
	var a args
	if err := json.Unmarshal([]byte(strings.TrimSpace(input)), &a); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedInput, "%v", err)
	}
	if a == nil {
		return nil, errors.Wrapf(errors.ErrMalformedInput, "expected a JSON object")
	}
	return a, nil
}

// parseArgsOrText accepts either a JSON object or bare text, which is
// stored under key.
func parseArgsOrText(input, key string) args {
	if a, err := parseArgs(input); err == nil {
		return a
	}
	var text string
	if err := json.Unmarshal([]byte(strings.TrimSpace(input)), &text); err == nil {
		return args{key: strings.TrimSpace(text)}
	}
	return args{key: strings.TrimSpace(input)}
}

func (a args) has(key string) bool {
	_, ok := a[key]
	return ok
}

// missing returns the first absent key.
func (a args) missing(keys ...string) (string, bool) {
	for _, k := range keys {
		if !a.has(k) {
			return k, true
		}
	}
	return "", false
}

func (a args) decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.Wrapf(decoder.Decode(map[string]any(a)), "failed to decode arguments")
}

func (a args) string(key string) string {
	var s string
	if v, ok := a[key]; ok && v != nil {
		_ = mapstructure.WeakDecode(v, &s)
	}
	return s
}

// int decodes key with weak typing, so "3" and 3 are both accepted.
func (a args) int(key string, def int) (int, bool) {
	v, ok := a[key]
	if !ok {
		return def, true
	}
	if v == nil {
		return 0, false
	}
	var i int
	if err := mapstructure.WeakDecode(v, &i); err != nil {
		return 0, false
	}
	return i, true
}

func (a args) float(key string, def float64) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return def, true
	}
	if v == nil {
		return 0, false
	}
	var f float64
	if err := mapstructure.WeakDecode(v, &f); err != nil {
		return 0, false
	}
	return f, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
