// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL together with
// the clicks recorded for it, and the errors shared by every layer.
package entity

import (
	"encoding/json"
	"maps"
	"time"
)

// DirectReferrer is recorded for redirects that carry no Referer header.
const DirectReferrer = "Direct"

// DefaultValidity is used when a URL is shortened without an explicit validity.
const DefaultValidity = 30 * time.Minute

// URL represents a shortened URL.
//
// ShortCode, OriginalURL, CreatedAt and ExpiresAt never change once the URL
// is created. Clicks only grows.
type URL struct {
	ShortCode   string    // ShortCode is the key the original URL is stored under.
	OriginalURL string    // OriginalURL is the absolute URL the short code resolves to.
	CreatedAt   time.Time // CreatedAt is the instant the URL was created.
	ExpiresAt   time.Time // ExpiresAt is the first instant the URL no longer redirects.
	Clicks      []Click   // Clicks holds every redirect in the order it was recorded.

	// Extensions holds persisted fields this version does not know about.
	Extensions map[string]json.RawMessage
}

// Click is a single recorded redirect.
type Click struct {
	Timestamp time.Time // Timestamp is the instant of the redirect.
	Referrer  string    // Referrer is the originating page or DirectReferrer.

	// Extensions holds persisted fields this version does not know about.
	Extensions map[string]json.RawMessage
}

// CreateParams holds the input for shortening a URL.
type CreateParams struct {
	OriginalURL string
	// Validity is the lifetime in minutes. Nil selects DefaultValidity.
	Validity *int
	// ShortCode is the code requested by the caller. Empty means generate one.
	ShortCode string
}

// IsLive reports whether the URL still redirects at now.
func (u *URL) IsLive(now time.Time) bool {
	return now.Before(u.ExpiresAt)
}

// ClickCount returns the number of recorded clicks.
func (u *URL) ClickCount() int {
	return len(u.Clicks)
}

// Clone returns a deep copy of u.
func (u *URL) Clone() *URL {
	c := *u
	c.Extensions = maps.Clone(u.Extensions)

	if u.Clicks != nil {
		c.Clicks = make([]Click, len(u.Clicks))
		for i, click := range u.Clicks {
			click.Extensions = maps.Clone(click.Extensions)
			c.Clicks[i] = click
		}
	}

	return &c
}
