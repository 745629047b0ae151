package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/sessionscrape/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extractor turns a rendered DOM snapshot into records. Every field is read
// independently: a missing element yields nil for that field only.
type Extractor struct {
	rules *Rules
}

// NewExtractor creates an Extractor. A nil rules table means DefaultRules.
func NewExtractor(rules *Rules) *Extractor {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules}
}

// Extract snapshots page and runs the variant for kind. The returned slice
// is []models.ScrapedPost or []models.ScrapedProfile.
func (e *Extractor) Extract(ctx context.Context, page Page, kind models.Kind) (any, int, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, 0, categorizeError(err, models.ErrCodeExtraction, "failed to read rendered page")
	}

	doc, err := parseDocument(raw)
	if err != nil {
		return nil, 0, models.NewScrapeError(models.ErrCodeExtraction, "failed to parse rendered page", err)
	}

	if kind == models.KindProfiles {
		profiles := e.profiles(doc)
		return profiles, len(profiles), nil
	}
	posts := e.posts(doc)
	return posts, len(posts), nil
}

// Posts extracts posts from rendered HTML. Items without a body, or with a
// body that is blank after trimming, are dropped.
func (e *Extractor) Posts(rawHTML string) ([]models.ScrapedPost, error) {
	doc, err := parseDocument(rawHTML)
	if err != nil {
		return nil, err
	}
	return e.posts(doc), nil
}

// Profiles extracts people-search results from rendered HTML. No result is
// ever dropped, even when every field is nil.
func (e *Extractor) Profiles(rawHTML string) ([]models.ScrapedProfile, error) {
	doc, err := parseDocument(rawHTML)
	if err != nil {
		return nil, err
	}
	return e.profiles(doc), nil
}

func (e *Extractor) posts(doc *goquery.Document) []models.ScrapedPost {
	rules := e.rules.Posts
	posts := []models.ScrapedPost{}
	firstMatch(doc.Selection, rules.Items).Each(func(_ int, item *goquery.Selection) {
		content := readField(item, rules.Content)
		if content == nil {
			return
		}
		posts = append(posts, models.ScrapedPost{Content: content})
	})
	return posts
}

func (e *Extractor) profiles(doc *goquery.Document) []models.ScrapedProfile {
	rules := e.rules.Profiles
	profiles := []models.ScrapedProfile{}
	firstMatch(doc.Selection, rules.Items).Each(func(_ int, item *goquery.Selection) {
		profiles = append(profiles, e.profile(item))
	})
	return profiles
}

func (e *Extractor) profile(item *goquery.Selection) models.ScrapedProfile {
	rules := e.rules.Profiles
	var p models.ScrapedProfile

	result := firstMatch(item, rules.Result).First()
	if result.Length() == 0 {
		result = item
	}
	for _, attr := range rules.URNAttrs {
		if v, ok := result.Attr(attr); ok && strings.TrimSpace(v) != "" {
			p.URN = ptr(strings.TrimSpace(v))
			break
		}
	}

	container := firstMatch(result, rules.BlockContainer).First()
	if container.Length() == 0 {
		container = result
	}
	blocks := container.Children()
	if rules.BlockFilter != "" {
		blocks = blocks.Filter(rules.BlockFilter)
	}

	if identity := blocks.Eq(rules.IdentityBlock); identity.Length() > 0 {
		p.ProfileURL = readField(identity, rules.ProfileURL)
		p.ProfilePic = readField(identity, rules.ProfilePic)
	}

	if desc := blocks.Eq(rules.DescriptionBlock); desc.Length() > 0 {
		p.Name = readField(desc, rules.Name)
		p.Summary = readField(desc, rules.Summary)

		headline := matchField(desc, rules.Headline)
		if headline.Length() > 0 {
			p.Headline = valueOf(headline, rules.Headline)
			p.Location = location(headline, rules.Location)
		}
	}
	return p
}

// location reads the element right after the headline, but only when it
// carries every marker class.
func location(headline *goquery.Selection, rule LocationRule) *string {
	sibling := headline.Next()
	if sibling.Length() == 0 || len(rule.Markers) == 0 {
		return nil
	}
	for _, marker := range rule.Markers {
		if !sibling.HasClass(marker) {
			return nil
		}
	}
	return textValue(renderedText(sibling))
}

// readField returns the first non-empty value of rule within scope.
func readField(scope *goquery.Selection, rule FieldRule) *string {
	for _, sel := range rule.Selectors {
		match := scope.Find(sel).First()
		if match.Length() == 0 {
			continue
		}
		if v := valueOf(match, rule); v != nil {
			return v
		}
	}
	return nil
}

// matchField returns the first element any of rule's selectors matches.
func matchField(scope *goquery.Selection, rule FieldRule) *goquery.Selection {
	return firstMatch(scope, rule.Selectors).First()
}

func valueOf(s *goquery.Selection, rule FieldRule) *string {
	if rule.Attr == "" {
		return textValue(renderedText(s))
	}
	v, ok := s.Attr(rule.Attr)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	if rule.StripQuery {
		v = stripQuery(v)
	}
	return textValue(v)
}

// firstMatch returns the matches of the first selector in chain that
// matches anything within scope.
func firstMatch(scope *goquery.Selection, chain []string) *goquery.Selection {
	for _, sel := range chain {
		if m := scope.Find(sel); m.Length() > 0 {
			return m
		}
	}
	return scope.Slice(0, 0)
}

func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func textValue(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func ptr(s string) *string { return &s }

func parseDocument(raw string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

// --- rendered text ---

var (
	spaceRun   = regexp.MustCompile(`[ \t\r\n\f]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Tr: true, atom.Table: true,
}

// renderedText approximates innerText: whitespace inside text collapses,
// <br> and block boundaries become line breaks, and script/style are skipped.
func renderedText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		writeText(&b, n)
	}

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	out := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(spaceRun.ReplaceAllString(n.Data, " "))
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Br:
			b.WriteByte('\n')
			return
		case atom.Script, atom.Style, atom.Template, atom.Noscript:
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}
