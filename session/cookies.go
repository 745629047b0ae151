// Package session turns a captured cookie set into something a browser
// context accepts.
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/sessionscrape/models"
)

// Parse decodes a cookie set. raw may be a JSON array of cookie objects or a
// JSON string whose content is such an array (the shape form posts and
// actor inputs usually carry). Anything else is an INPUT_SHAPE error.
//
// The returned cookies are already normalized.
func Parse(raw json.RawMessage) ([]models.CookieRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, models.NewScrapeError(models.ErrCodeInputShape, `"cookies" is required`, nil)
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInputShape, `"cookies" is not valid JSON`, err)
		}
		raw = bytes.TrimSpace([]byte(encoded))
	}

	if len(raw) == 0 || raw[0] != '[' {
		return nil, models.NewScrapeError(models.ErrCodeInputShape, `"cookies" must be an array`, nil)
	}

	var cookies []models.CookieRecord
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInputShape, `"cookies" must be an array of cookie objects`, err)
	}
	return Normalize(cookies), nil
}

// LoadFile reads a cookie file from disk and parses it like Parse.
func LoadFile(path string) ([]models.CookieRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	return Parse(data)
}

// Normalize rewrites, in place, every SameSite value browsers would reject
// to Lax. Nothing else is validated: a bad domain or path surfaces later when
// the browser installs the cookie. It returns cookies for chaining.
func Normalize(cookies []models.CookieRecord) []models.CookieRecord {
	for i := range cookies {
		if !cookies[i].SameSite.Valid() {
			cookies[i].SameSite = models.SameSiteLax
		}
	}
	return cookies
}

// ToParams converts normalized cookies into CDP cookie parameters.
func ToParams(cookies []models.CookieRecord) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			URL:      c.URL,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		}
		expires := c.Expires
		if expires <= 0 {
			expires = c.ExpirationDate
		}
		if expires > 0 {
			p.Expires = proto.TimeSinceEpoch(expires)
		}
		params = append(params, p)
	}
	return params
}
