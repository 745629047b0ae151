package scraper

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
)

func TestBlockedSet(t *testing.T) {
	set := blockedSet([]string{"Media", "Font", "Script", "bogus"})

	assert.Len(t, set, 2)
	assert.Contains(t, set, proto.NetworkResourceTypeMedia)
	assert.Contains(t, set, proto.NetworkResourceTypeFont)
	assert.NotContains(t, set, proto.NetworkResourceTypeScript)
}

func TestToHeadersMap(t *testing.T) {
	m := toHeadersMap(map[string]string{"Accept-Language": "en-US"})

	assert.Equal(t, "en-US", m["Accept-Language"].Str())
}
