package models

import "encoding/json"

// SameSite is a cookie's SameSite attribute as supplied by the caller.
// Unknown values survive decoding and are fixed up by session.Normalize.
type SameSite string

const (
	SameSiteStrict SameSite = "Strict"
	SameSiteLax    SameSite = "Lax"
	SameSiteNone   SameSite = "None"
)

// Valid reports whether s is one of the three values browsers accept.
func (s SameSite) Valid() bool {
	switch s {
	case SameSiteStrict, SameSiteLax, SameSiteNone:
		return true
	}
	return false
}

// UnmarshalJSON accepts any JSON value. Non-string values (null, numbers,
// objects) decode to the empty string instead of failing the whole cookie set.
func (s *SameSite) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		*s = ""
		return nil
	}
	*s = SameSite(str)
	return nil
}

// CookieRecord is one cookie of a captured browser session.
//
// Both the CDP export shape ("expires") and the browser-extension export shape
// ("expirationDate") are understood.
type CookieRecord struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain,omitempty"`
	Path           string   `json:"path,omitempty"`
	SameSite       SameSite `json:"sameSite"`
	Expires        float64  `json:"expires,omitempty"`
	ExpirationDate float64  `json:"expirationDate,omitempty"`
	HTTPOnly       bool     `json:"httpOnly,omitempty"`
	Secure         bool     `json:"secure,omitempty"`
	URL            string   `json:"url,omitempty"`
}

// Kind selects the extraction variant.
type Kind string

const (
	KindPosts    Kind = "posts"
	KindProfiles Kind = "profiles"
)

// Valid reports whether k names a known extraction variant.
func (k Kind) Valid() bool {
	return k == KindPosts || k == KindProfiles
}

// ScrapedPost is one feed post. Posts without content never leave the extractor.
type ScrapedPost struct {
	Content *string `json:"content"`
}

// ScrapedProfile is one people-search result. Every field is optional.
type ScrapedProfile struct {
	URN        *string `json:"urn"`
	Name       *string `json:"name"`
	ProfileURL *string `json:"profileUrl"`
	ProfilePic *string `json:"profilePic"`
	Headline   *string `json:"headline"`
	Location   *string `json:"location"`
	Summary    *string `json:"summary"`

	// Followers is reserved and never populated.
	Followers *string `json:"followers"`
}
