package models

import "encoding/json"

// Readiness is the condition a navigation waits for before it counts as done.
type Readiness string

const (
	// ReadinessDOMContentLoaded waits until the document has been parsed.
	ReadinessDOMContentLoaded Readiness = "domcontentloaded"

	// ReadinessNetworkIdle waits until network activity has settled.
	ReadinessNetworkIdle Readiness = "networkidle"
)

// Valid reports whether r is a supported readiness condition.
func (r Readiness) Valid() bool {
	return r == ReadinessDOMContentLoaded || r == ReadinessNetworkIdle
}

// ScrapeRequest is the payload for POST /api/v1/scrape and the input file of
// the CLI.
type ScrapeRequest struct {
	// TargetURL is the page to open with the restored session. Required.
	// "target_url" is read as well, see UnmarshalJSON.
	TargetURL string `json:"targetUrl"`

	// SearchURL is the legacy name of TargetURL; it is used when TargetURL is empty.
	SearchURL string `json:"searchUrl,omitempty"`

	// Cookies is the captured session: a JSON array of cookie objects, or a
	// JSON string containing such an array. Required.
	Cookies json.RawMessage `json:"cookies"`

	// Kind selects the extraction variant: "posts" (default) or "profiles".
	Kind Kind `json:"kind,omitempty"`

	// Readiness overrides the configured navigation readiness condition.
	Readiness Readiness `json:"readiness,omitempty"`

	// Headers are extra HTTP headers sent with every request of the run.
	Headers map[string]string `json:"headers,omitempty"`
}

// UnmarshalJSON accepts "target_url" in place of "targetUrl". When both are
// present, "targetUrl" wins.
func (r *ScrapeRequest) UnmarshalJSON(data []byte) error {
	type plain ScrapeRequest
	aux := struct {
		*plain
		SnakeURL string `json:"target_url"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.TargetURL == "" {
		r.TargetURL = aux.SnakeURL
	}
	return nil
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.TargetURL == "" {
		r.TargetURL = r.SearchURL
	}
	if r.Kind == "" {
		r.Kind = KindPosts
	}
}
