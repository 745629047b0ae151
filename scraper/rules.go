package scraper

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/andybalholm/cascadia"
)

// DOM selectors for the supported feed and people-search layouts.
// The site changes its markup often: when extraction starts returning nulls,
// update these (or ship a rules file) rather than the extraction code.

// FieldRule locates one value. Selectors are tried in order and the first
// one yielding a non-empty value wins. Attr names the attribute to read; an
// empty Attr reads the rendered text.
type FieldRule struct {
	Selectors  []string `json:"selectors"`
	Attr       string   `json:"attr,omitempty"`
	StripQuery bool     `json:"strip_query,omitempty"`
}

// PostRules describes the feed layout.
type PostRules struct {
	// Items locates list items; the first selector with matches wins.
	Items []string `json:"items"`

	// Content is the post body within an item.
	Content FieldRule `json:"content"`
}

// LocationRule reads the location from the element right after the headline.
type LocationRule struct {
	// Markers are classes the sibling must all carry to count as a location.
	Markers []string `json:"markers"`
}

// ProfileRules describes the people-search layout. Blocks are positional:
// the identity block holds the link and picture, the description block holds
// the texts.
type ProfileRules struct {
	Items []string `json:"items"`

	// Result is the optional result element inside an item. When absent the
	// item itself is used.
	Result []string `json:"result"`

	// URNAttrs are attribute names on the result carrying its identity token.
	URNAttrs []string `json:"urn_attrs"`

	// BlockContainer is the element whose immediate children are the blocks.
	// When absent the result itself is used.
	BlockContainer []string `json:"block_container"`

	// BlockFilter restricts which immediate children count as blocks.
	BlockFilter string `json:"block_filter"`

	IdentityBlock    int `json:"identity_block"`
	DescriptionBlock int `json:"description_block"`

	ProfileURL FieldRule    `json:"profile_url"`
	ProfilePic FieldRule    `json:"profile_pic"`
	Name       FieldRule    `json:"name"`
	Headline   FieldRule    `json:"headline"`
	Location   LocationRule `json:"location"`
	Summary    FieldRule    `json:"summary"`
}

// Rules is the full extraction rule table.
type Rules struct {
	Posts    PostRules    `json:"posts"`
	Profiles ProfileRules `json:"profiles"`
}

// DefaultRules returns the built-in rule table.
func DefaultRules() *Rules {
	return &Rules{
		Posts: PostRules{
			Items: []string{".scaffold-finite-scroll__content ul > li"},
			Content: FieldRule{
				Selectors: []string{".break-words.tvm-parent-container"},
			},
		},
		Profiles: ProfileRules{
			Items: []string{
				"ul.reusable-search__entity-result-list > li",
				".search-results-container ul > li",
			},
			Result:           []string{".entity-result"},
			URNAttrs:         []string{"data-chameleon-result-urn", "data-urn"},
			BlockContainer:   []string{".entity-result__item"},
			BlockFilter:      "div",
			IdentityBlock:    0,
			DescriptionBlock: 1,
			ProfileURL: FieldRule{
				Selectors:  []string{"a.app-aware-link[href]", "a[href]"},
				Attr:       "href",
				StripQuery: true,
			},
			ProfilePic: FieldRule{
				Selectors: []string{"img.presence-entity__image", "img"},
				Attr:      "src",
			},
			Name: FieldRule{
				Selectors: []string{
					".entity-result__title-text a span[aria-hidden=true]",
					".entity-result__title-text a",
					".entity-result__title-text",
				},
			},
			Headline: FieldRule{
				Selectors: []string{".entity-result__primary-subtitle"},
			},
			Location: LocationRule{
				Markers: []string{"entity-result__secondary-subtitle", "t-14"},
			},
			Summary: FieldRule{
				Selectors: []string{".entity-result__summary"},
			},
		},
	}
}

// LoadRules reads a rule table from a JSON file. Sections missing from the
// file keep their built-in values.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rules := DefaultRules()
	if err := json.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// ItemSelector returns the first item selector for kind-specific counting.
func (r *Rules) ItemSelector(profiles bool) string {
	items := r.Posts.Items
	if profiles {
		items = r.Profiles.Items
	}
	if len(items) == 0 {
		return ""
	}
	return items[0]
}

// Validate compiles every selector so a broken rules file fails at startup
// instead of silently producing empty results.
func (r *Rules) Validate() error {
	if len(r.Posts.Items) == 0 {
		return fmt.Errorf("rules: posts.items is empty")
	}
	if len(r.Profiles.Items) == 0 {
		return fmt.Errorf("rules: profiles.items is empty")
	}
	if r.Profiles.IdentityBlock < 0 || r.Profiles.DescriptionBlock < 0 {
		return fmt.Errorf("rules: block indexes must not be negative")
	}

	groups := map[string][]string{
		"posts.items":              r.Posts.Items,
		"posts.content":            r.Posts.Content.Selectors,
		"profiles.items":           r.Profiles.Items,
		"profiles.result":          r.Profiles.Result,
		"profiles.block_container": r.Profiles.BlockContainer,
		"profiles.profile_url":     r.Profiles.ProfileURL.Selectors,
		"profiles.profile_pic":     r.Profiles.ProfilePic.Selectors,
		"profiles.name":            r.Profiles.Name.Selectors,
		"profiles.headline":        r.Profiles.Headline.Selectors,
		"profiles.summary":         r.Profiles.Summary.Selectors,
	}
	if r.Profiles.BlockFilter != "" {
		groups["profiles.block_filter"] = []string{r.Profiles.BlockFilter}
	}
	for name, sels := range groups {
		for _, s := range sels {
			if _, err := cascadia.Compile(s); err != nil {
				return fmt.Errorf("rules: %s: invalid selector %q: %w", name, s, err)
			}
		}
	}
	return nil
}
