// Package jsoncodec encodes the URL snapshot in its persisted JSON layout:
//
//	{
//	  "<short code>": {
//	    "originalUrl": "https://example.com",
//	    "createdAt": "2024-05-01T10:00:00.000Z",
//	    "expiresAt": "2024-05-01T10:30:00.000Z",
//	    "clicks": [{"timestamp": "...", "referrer": "Direct"}]
//	  }
//	}
//
// Fields it does not know about are kept on the entities and written back.
// Output is indented with two spaces and its keys are sorted, so encoding a
// decoded document reproduces it byte for byte.
package jsoncodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// TimeLayout is the ISO-8601 layout instants are persisted in.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	keyOriginalURL = "originalUrl"
	keyCreatedAt   = "createdAt"
	keyExpiresAt   = "expiresAt"
	keyClicks      = "clicks"
	keyTimestamp   = "timestamp"
	keyReferrer    = "referrer"
)

// Encode returns the persisted form of urls.
func Encode(urls map[string]*entity.URL) ([]byte, error) {
	const op = "jsoncodec.Encode"

	doc := make(map[string]map[string]json.RawMessage, len(urls))
	for code, url := range urls {
		obj, err := encodeURL(url)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode url %q: %w", op, code, err)
		}
		doc[code] = obj
	}

	data, err := marshal(doc, "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal snapshot: %w", op, err)
	}

	return data, nil
}

// Decode parses the persisted form. Empty input decodes to an empty map.
func Decode(data []byte) (map[string]*entity.URL, error) {
	const op = "jsoncodec.Decode"

	urls := make(map[string]*entity.URL)
	if len(bytes.TrimSpace(data)) == 0 {
		return urls, nil
	}

	var doc map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal snapshot: %w", op, err)
	}

	for code, obj := range doc {
		url, err := decodeURL(obj)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to decode url %q: %w", op, code, err)
		}
		url.ShortCode = code
		urls[code] = url
	}

	return urls, nil
}

// FormatTime formats t the way instants are persisted.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a persisted instant.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func encodeURL(url *entity.URL) (map[string]json.RawMessage, error) {
	obj := make(map[string]json.RawMessage, len(url.Extensions)+4)
	for k, v := range url.Extensions {
		obj[k] = v
	}

	clicks := make([]map[string]json.RawMessage, 0, len(url.Clicks))
	for _, click := range url.Clicks {
		c := make(map[string]json.RawMessage, len(click.Extensions)+2)
		for k, v := range click.Extensions {
			c[k] = v
		}
		if err := setString(c, keyTimestamp, FormatTime(click.Timestamp)); err != nil {
			return nil, err
		}
		if err := setString(c, keyReferrer, click.Referrer); err != nil {
			return nil, err
		}
		clicks = append(clicks, c)
	}

	rawClicks, err := marshal(clicks, "")
	if err != nil {
		return nil, err
	}
	obj[keyClicks] = rawClicks

	if err := setString(obj, keyOriginalURL, url.OriginalURL); err != nil {
		return nil, err
	}
	if err := setString(obj, keyCreatedAt, FormatTime(url.CreatedAt)); err != nil {
		return nil, err
	}
	if err := setString(obj, keyExpiresAt, FormatTime(url.ExpiresAt)); err != nil {
		return nil, err
	}

	return obj, nil
}

func decodeURL(obj map[string]json.RawMessage) (*entity.URL, error) {
	url := new(entity.URL)

	var err error
	if url.OriginalURL, err = takeString(obj, keyOriginalURL); err != nil {
		return nil, err
	}
	if url.CreatedAt, err = takeTime(obj, keyCreatedAt); err != nil {
		return nil, err
	}
	if url.ExpiresAt, err = takeTime(obj, keyExpiresAt); err != nil {
		return nil, err
	}

	var clicks []map[string]json.RawMessage
	if raw, ok := obj[keyClicks]; ok {
		if err := json.Unmarshal(raw, &clicks); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", keyClicks, err)
		}
		delete(obj, keyClicks)
	}

	url.Clicks = make([]entity.Click, 0, len(clicks))
	for i, c := range clicks {
		var click entity.Click
		if click.Timestamp, err = takeTime(c, keyTimestamp); err != nil {
			return nil, fmt.Errorf("click %d: %w", i, err)
		}
		if click.Referrer, err = takeString(c, keyReferrer); err != nil {
			return nil, fmt.Errorf("click %d: %w", i, err)
		}
		if len(c) > 0 {
			click.Extensions = compactAll(c)
		}
		url.Clicks = append(url.Clicks, click)
	}

	if len(obj) > 0 {
		url.Extensions = compactAll(obj)
	}

	return url, nil
}

// compactAll strips insignificant whitespace so that values compare equal
// regardless of how the document was indented.
func compactAll(obj map[string]json.RawMessage) map[string]json.RawMessage {
	for k, v := range obj {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err == nil {
			obj[k] = buf.Bytes()
		}
	}
	return obj
}

// marshal is json.MarshalIndent without HTML escaping, so "&", "<" and ">"
// are written as is.
func marshal(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func setString(obj map[string]json.RawMessage, key, value string) error {
	raw, err := marshal(value, "")
	if err != nil {
		return err
	}
	obj[key] = raw
	return nil
}

// takeString removes key from obj and returns its string value.
func takeString(obj map[string]json.RawMessage, key string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("invalid %s: %w", key, err)
	}
	delete(obj, key)

	return s, nil
}

func takeTime(obj map[string]json.RawMessage, key string) (time.Time, error) {
	s, err := takeString(obj, key)
	if err != nil {
		return time.Time{}, err
	}

	t, err := ParseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}

	return t, nil
}
