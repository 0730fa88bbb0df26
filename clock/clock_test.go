package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_Advance(t *testing.T) {
	start := time.Date(2025, 5, 20, 17, 10, 0, 0, time.UTC)
	f := NewFake(start)

	assert.Equal(t, start, f.Now())

	got := f.Advance(30 * time.Minute)
	assert.Equal(t, start.Add(30*time.Minute), got)
	assert.Equal(t, got, f.Now())

	next := time.Date(2025, 5, 21, 9, 30, 0, 0, time.UTC)
	f.Set(next)
	assert.Equal(t, next, f.Now())
}

func TestReal_Location(t *testing.T) {
	loc := time.FixedZone("AST", 3*60*60)
	now := Real{Location: loc}.Now()
	assert.Equal(t, loc, now.Location())
}
