package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/klabast/wb-services/plaza/internal/render"
)

func TestViewCache(t *testing.T) {
	c := NewViewCache(time.Minute)
	full := render.View{Unlisted: 1}
	preview := render.View{Unlisted: 2}

	gen := c.Generation()
	assert.True(t, c.SetIfCurrent(false, full, gen))
	assert.True(t, c.SetIfCurrent(true, preview, gen))

	got, ok := c.Get(false)
	assert.True(t, ok)
	assert.Equal(t, full, got)
	got, ok = c.Get(true)
	assert.True(t, ok)
	assert.Equal(t, preview, got)

	c.Invalidate()
	_, ok = c.Get(false)
	assert.False(t, ok)
}

func TestViewCacheIgnoresViewsFromBeforeInvalidate(t *testing.T) {
	c := NewViewCache(time.Minute)
	gen := c.Generation()
	c.Invalidate()

	assert.False(t, c.SetIfCurrent(false, render.View{Unlisted: 1}, gen))
	_, ok := c.Get(false)
	assert.False(t, ok)

	assert.True(t, c.SetIfCurrent(false, render.View{Unlisted: 2}, c.Generation()))
	got, ok := c.Get(false)
	assert.True(t, ok)
	assert.Equal(t, 2, got.Unlisted)
}
