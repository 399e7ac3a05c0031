package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetFromCache(t *testing.T) {
	c := NewCache(time.Minute, time.Minute)
	c.Set("metrics:rsi", 1.5, time.Minute)

	v, ok := GetFromCache[float64](c, "metrics:rsi")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	_, ok = GetFromCache[string](c, "metrics:rsi")
	assert.False(t, ok, "wrong type is a miss")

	_, ok = GetFromCache[float64](c, "metrics:sma")
	assert.False(t, ok)

	c.Delete("metrics:rsi")
	assert.Equal(t, 0, c.ItemCount())
}
