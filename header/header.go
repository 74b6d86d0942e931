// Package header provides a container for HTTP headers with a structured
// view over the Cache-Control header.
//
// Header names are case-insensitive and underscores are treated as dashes,
// so "Content_Type", "content-type" and "CONTENT-TYPE" address the same
// entry. Every header holds an ordered list of values.
//
// The Cache-Control header is additionally kept as a map of directives.
// Mutating the header re-parses the directives and mutating a directive
// re-serializes the header, so both views always agree.
//
// Usage:
//
//	h := header.New(nil)
//	h.Set("Content-Type", "text/html")
//	h.AddCacheControlDirective("max-age", 100)
//	h.AddCacheControlDirective("private", true)
//
//	h.Get("cache-control") // "max-age=100, private"
//	fmt.Print(h)
//	// Cache-Control: max-age=100, private
//	// Content-Type:  text/html
package header

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"
)

const cacheControl = "cache-control"

// ErrParse is wrapped by every ParseError.
var ErrParse = errors.New("header.parse_failed")

// ParseError is returned when a header value does not match the grammar
// expected by a typed accessor.
type ParseError struct {
	Name  string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("the %s HTTP header is not parseable (%s)", e.Name, e.Value)
}

// Unwrap returns ErrParse and the underlying parse error.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// Bag is an ordered, multi-valued collection of HTTP headers.
// A Bag is not safe for concurrent use.
type Bag struct {
	headers      map[string][]string
	keys         []string
	cacheControl map[string]any
}

// New creates a Bag holding the given headers.
func New(headers map[string][]string) *Bag {
	b := &Bag{
		headers:      make(map[string][]string),
		cacheControl: make(map[string]any),
	}
	b.Merge(headers)
	return b
}

// FromHTTP creates a Bag from an http.Header.
func FromHTTP(h http.Header) *Bag {
	b := New(nil)
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.Set(name, h[name]...)
	}
	return b
}

// Apply writes every header of the Bag into h, replacing existing values.
func (b *Bag) Apply(h http.Header) {
	for _, key := range b.keys {
		h[http.CanonicalHeaderKey(key)] = slices.Clone(b.headers[key])
	}
}

// String returns the headers sorted by name, one "Name: value" line per
// value, with values aligned on a common column.
func (b *Bag) String() string {
	if len(b.headers) == 0 {
		return ""
	}

	keys := slices.Clone(b.keys)
	sort.Strings(keys)

	width := 0
	for _, key := range keys {
		width = max(width, len(key))
	}
	width++

	var sb strings.Builder
	for _, key := range keys {
		name := titleCase(key) + ":"
		for _, value := range b.headers[key] {
			fmt.Fprintf(&sb, "%-*s %s\r\n", width, name, value)
		}
	}
	return sb.String()
}

// All returns a copy of every header.
func (b *Bag) All() map[string][]string {
	all := make(map[string][]string, len(b.headers))
	for key, values := range b.headers {
		all[key] = slices.Clone(values)
	}
	return all
}

// Keys returns the normalized header names in insertion order.
func (b *Bag) Keys() []string {
	return slices.Clone(b.keys)
}

// Len returns the number of headers.
func (b *Bag) Len() int {
	return len(b.headers)
}

// Replace discards every header and sets the given ones.
func (b *Bag) Replace(headers map[string][]string) {
	b.headers = make(map[string][]string)
	b.keys = nil
	b.cacheControl = make(map[string]any)
	b.Merge(headers)
}

// Merge sets the given headers, replacing existing values for the same
// names. Names are applied in sorted order so the result is deterministic.
func (b *Bag) Merge(headers map[string][]string) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.Set(name, headers[name]...)
	}
}

// Get returns the first value of the header, or "" if it is not set.
func (b *Bag) Get(name string) string {
	return b.GetDefault(name, "")
}

// GetDefault returns the first value of the header, or def if the header
// is not set or holds no values.
func (b *Bag) GetDefault(name, def string) string {
	values, ok := b.headers[normalize(name)]
	if !ok || len(values) == 0 {
		return def
	}
	return values[0]
}

// Values returns every value of the header, or nil if it is not set.
func (b *Bag) Values(name string) []string {
	values, ok := b.headers[normalize(name)]
	if !ok {
		return nil
	}
	return slices.Clone(values)
}

// Set replaces the values of the header.
func (b *Bag) Set(name string, values ...string) {
	b.set(normalize(name), values, true)
}

// Add appends values to the header, creating it if needed.
func (b *Bag) Add(name string, values ...string) {
	b.set(normalize(name), values, false)
}

func (b *Bag) set(key string, values []string, replace bool) {
	existing, ok := b.headers[key]
	if !ok {
		b.keys = append(b.keys, key)
	}

	if replace || !ok {
		b.headers[key] = slices.Clone(values)
	} else {
		b.headers[key] = append(existing, values...)
	}

	if key == cacheControl {
		b.cacheControl = parseCacheControl(strings.Join(b.headers[key], ", "))
	}
}

// Has reports whether the header is set.
func (b *Bag) Has(name string) bool {
	_, ok := b.headers[normalize(name)]
	return ok
}

// Contains reports whether the header holds the given value.
func (b *Bag) Contains(name, value string) bool {
	return slices.Contains(b.headers[normalize(name)], value)
}

// Remove deletes the header.
func (b *Bag) Remove(name string) {
	key := normalize(name)
	if _, ok := b.headers[key]; !ok {
		return
	}

	delete(b.headers, key)
	b.keys = slices.DeleteFunc(b.keys, func(k string) bool { return k == key })

	if key == cacheControl {
		b.cacheControl = make(map[string]any)
	}
}

// Date parses the header as an RFC 2822 date. It returns def when the header
// is not set and a *ParseError when the value is not a valid date.
func (b *Bag) Date(name string, def time.Time) (time.Time, error) {
	values, ok := b.headers[normalize(name)]
	if !ok || len(values) == 0 {
		return def, nil
	}

	value := values[0]
	t, err := time.Parse(time.RFC1123Z, value)
	if err == nil {
		return t, nil
	}
	if t, gmtErr := time.Parse(time.RFC1123, value); gmtErr == nil {
		return t, nil
	}
	return def, &ParseError{Name: name, Value: value, Err: err}
}

// AddCacheControlDirective sets a Cache-Control directive. A value of true
// produces a bare directive such as "no-cache"; any other value is rendered
// as key=value.
func (b *Bag) AddCacheControlDirective(key string, value any) {
	b.cacheControl[key] = value
	b.Set(cacheControl, b.cacheControlHeader())
}

// HasCacheControlDirective reports whether the directive is set.
func (b *Bag) HasCacheControlDirective(key string) bool {
	_, ok := b.cacheControl[key]
	return ok
}

// CacheControlDirective returns the directive value: true for bare
// directives, a string for key=value directives, nil if it is not set.
func (b *Bag) CacheControlDirective(key string) any {
	return b.cacheControl[key]
}

// RemoveCacheControlDirective deletes a Cache-Control directive.
func (b *Bag) RemoveCacheControlDirective(key string) {
	delete(b.cacheControl, key)
	b.Set(cacheControl, b.cacheControlHeader())
}

// CacheControlDirectives returns a copy of the parsed directives.
func (b *Bag) CacheControlDirectives() map[string]any {
	directives := make(map[string]any, len(b.cacheControl))
	for k, v := range b.cacheControl {
		directives[k] = v
	}
	return directives
}

func (b *Bag) cacheControlHeader() string {
	return formatDirectives(b.cacheControl)
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

// titleCase upper-cases the first letter of every dash separated word.
func titleCase(key string) string {
	parts := strings.Split(key, "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "-")
}
