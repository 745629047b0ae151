package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/sessionscrape/models"
)

const feedHTML = `<html><body>
<div class="scaffold-finite-scroll__content">
  <ul>
    <li id="a">
      <div class="update-components-text">
        <span class="break-words tvm-parent-container">
          Shipping our new release today!<br>Thanks to the team.
        </span>
      </div>
    </li>
    <li id="b">
      <span class="break-words tvm-parent-container">   </span>
    </li>
    <li id="c">
      <div class="feed-shared-update-v2__description">promoted</div>
    </li>
  </ul>
</div>
</body></html>`

func TestExtractor_PostsDropsEmptyBodies(t *testing.T) {
	posts, err := NewExtractor(nil).Posts(feedHTML)
	require.NoError(t, err)

	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].Content)
	assert.Equal(t, "Shipping our new release today!\nThanks to the team.", *posts[0].Content)
}

func TestExtractor_PostsEmptyFeed(t *testing.T) {
	posts, err := NewExtractor(nil).Posts(`<html><body><p>nothing</p></body></html>`)
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestExtractor_PostsBlockText(t *testing.T) {
	html := `<div class="scaffold-finite-scroll__content"><ul><li>
	  <div class="break-words tvm-parent-container"><p>First   paragraph</p><p>Second</p><script>var x = 1;</script></div>
	</li></ul></div>`

	posts, err := NewExtractor(nil).Posts(html)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "First paragraph\n\nSecond", *posts[0].Content)
}

const peopleHTML = `<html><body>
<ul class="reusable-search__entity-result-list">
  <li class="reusable-search__result-container">
    <div class="entity-result" data-chameleon-result-urn="urn:li:member:1001">
      <div class="entity-result__item">
        <div class="entity-result__universal-image">
          <a class="app-aware-link" href="https://www.linkedin.com/in/jane-doe?miniProfileUrn=urn%3Ali%3Afs">
            <img class="presence-entity__image" src="https://media.example/jane.jpg" alt="Jane Doe">
          </a>
        </div>
        <div class="entity-result__content">
          <div class="mb1">
            <span class="entity-result__title-text">
              <a class="app-aware-link" href="https://www.linkedin.com/in/jane-doe">
                <span dir="ltr"><span aria-hidden="true">Jane Doe</span><span class="visually-hidden">View Jane Doe's profile</span></span>
              </a>
            </span>
            <div class="entity-result__primary-subtitle t-14 t-black t-normal">Staff Engineer at Example</div>
            <div class="entity-result__secondary-subtitle t-14 t-normal">Berlin, Germany</div>
          </div>
          <p class="entity-result__summary">Current: Staff Engineer</p>
        </div>
      </div>
    </div>
  </li>
  <li class="reusable-search__result-container">
    <div class="entity-result" data-chameleon-result-urn="urn:li:member:1002">
      <div class="entity-result__item">
        <div class="entity-result__universal-image">
          <a class="app-aware-link" href="https://www.linkedin.com/in/john-roe">
            <img class="presence-entity__image" src="https://media.example/john.jpg">
          </a>
        </div>
      </div>
    </div>
  </li>
  <li class="reusable-search__result-container">
    <div class="entity-result" data-chameleon-result-urn="urn:li:member:1003">
      <div class="entity-result__item">
        <div class="entity-result__universal-image"></div>
        <div class="entity-result__content">
          <div class="entity-result__primary-subtitle t-14">Recruiter</div>
          <div class="entity-result__insights t-12">3 mutual connections</div>
        </div>
      </div>
    </div>
  </li>
  <li class="reusable-search__result-container" data-urn="urn:li:member:1004"></li>
</ul>
</body></html>`

func TestExtractor_ProfilesFullRecord(t *testing.T) {
	profiles, err := NewExtractor(nil).Profiles(peopleHTML)
	require.NoError(t, err)
	require.Len(t, profiles, 4)

	p := profiles[0]
	assert.Equal(t, "urn:li:member:1001", deref(p.URN))
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe", deref(p.ProfileURL))
	assert.Equal(t, "https://media.example/jane.jpg", deref(p.ProfilePic))
	assert.Equal(t, "Jane Doe", deref(p.Name))
	assert.Equal(t, "Staff Engineer at Example", deref(p.Headline))
	assert.Equal(t, "Berlin, Germany", deref(p.Location))
	assert.Equal(t, "Current: Staff Engineer", deref(p.Summary))
	assert.Nil(t, p.Followers)
}

func TestExtractor_ProfileWithoutDescriptionBlockIsKept(t *testing.T) {
	profiles, err := NewExtractor(nil).Profiles(peopleHTML)
	require.NoError(t, err)

	p := profiles[1]
	assert.Equal(t, "urn:li:member:1002", deref(p.URN))
	assert.Equal(t, "https://www.linkedin.com/in/john-roe", deref(p.ProfileURL))
	assert.Nil(t, p.Name)
	assert.Nil(t, p.Headline)
	assert.Nil(t, p.Location)
	assert.Nil(t, p.Summary)
	assert.Nil(t, p.Followers)
}

func TestExtractor_LocationNeedsBothMarkers(t *testing.T) {
	profiles, err := NewExtractor(nil).Profiles(peopleHTML)
	require.NoError(t, err)

	p := profiles[2]
	assert.Equal(t, "Recruiter", deref(p.Headline))
	assert.Nil(t, p.Location, "sibling without the marker classes is not a location")
	assert.Nil(t, p.ProfileURL)
	assert.Nil(t, p.ProfilePic)
	assert.Nil(t, p.Name)
}

func TestExtractor_ProfileFallsBackToItem(t *testing.T) {
	profiles, err := NewExtractor(nil).Profiles(peopleHTML)
	require.NoError(t, err)

	p := profiles[3]
	assert.Equal(t, "urn:li:member:1004", deref(p.URN))
	assert.Equal(t, models.ScrapedProfile{URN: p.URN}, p)
}

func TestExtractor_CustomRulesChangeLayoutWithoutCode(t *testing.T) {
	rules := DefaultRules()
	rules.Posts.Items = []string{"article.post"}
	rules.Posts.Content = FieldRule{Selectors: []string{".missing", "[data-role=body]"}}

	posts, err := NewExtractor(rules).Posts(`<article class="post"><div data-role="body"> hi </div></article>`)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "hi", *posts[0].Content)
}

func TestExtractor_ExtractFromPage(t *testing.T) {
	page := &fakePage{html: feedHTML}

	records, n, err := NewExtractor(nil).Extract(context.Background(), page, models.KindPosts)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.IsType(t, []models.ScrapedPost{}, records)

	page.html = peopleHTML
	records, n, err = NewExtractor(nil).Extract(context.Background(), page, models.KindProfiles)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.IsType(t, []models.ScrapedProfile{}, records)
}

func TestExtractor_PageFailureIsExtractionError(t *testing.T) {
	page := &fakePage{htmlErr: errors.New("page has been closed")}

	_, _, err := NewExtractor(nil).Extract(context.Background(), page, models.KindPosts)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeExtraction, models.CodeOf(err))
}

func TestRules_DefaultsValidate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())
}

func TestRules_InvalidSelector(t *testing.T) {
	rules := DefaultRules()
	rules.Profiles.Name.Selectors = []string{"a[[["}
	err := rules.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profiles.name")
}

func TestLoadRules_MergesWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"posts":{"items":["main li"]}}`), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"main li"}, rules.Posts.Items)
	assert.Equal(t, DefaultRules().Posts.Content, rules.Posts.Content)
	assert.Equal(t, DefaultRules().Profiles, rules.Profiles)
}

func TestLoadRules_RejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"posts":{"items":[]}}`), 0o600))

	_, err := LoadRules(path)
	assert.Error(t, err)
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
