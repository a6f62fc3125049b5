package debounce

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sweeney/keypad-sensor/internal/clock"
)

func TestRepeatCadence(t *testing.T) {
	c := clock.NewFake(0)
	r := NewRepeater(c, &RepeatSettings[rune]{DelayMs: 300, RateMs: 100})

	steps := []struct {
		at   uint32
		want rune
	}{
		{0, '5'},
		{100, 0},
		{299, 0},
		{300, '5'}, // first repeat after DelayMs
		{350, 0},
		{399, 0},
		{400, '5'},
		{450, 0},
		{500, '5'},
	}
	for _, s := range steps {
		c.Set(s.at)
		assert.Equal(t, s.want, r.Repeat('5'), "at %dms", s.at)
	}
	assert.Equal(t, RepeatRepeating, r.Mode())

	c.Set(510)
	assert.Equal(t, rune(0), r.Repeat(0))
	assert.Equal(t, RepeatIdle, r.Mode())
	c.Set(520)
	assert.Equal(t, '5', r.Repeat('5'))
}

func TestRepeatDifferentKeyIsFreshPressNextPoll(t *testing.T) {
	c := clock.NewFake(0)
	r := NewRepeater(c, &RepeatSettings[rune]{DelayMs: 300, RateMs: 100})

	assert.Equal(t, 'a', r.Repeat('a'))
	c.Set(10)
	assert.Equal(t, rune(0), r.Repeat('b'))
	c.Set(20)
	assert.Equal(t, 'b', r.Repeat('b'))
	assert.Equal(t, RepeatFirstSent, r.Mode())
}

func TestRepeatDifferentKeyWhileRepeating(t *testing.T) {
	c := clock.NewFake(0)
	r := NewRepeater(c, &RepeatSettings[int]{DelayMs: 10, RateMs: 10})

	r.Repeat(1)
	c.Set(10)
	assert.Equal(t, 1, r.Repeat(1))
	c.Set(15)
	assert.Equal(t, 0, r.Repeat(2))
	assert.Equal(t, 2, r.Repeat(2))
}

func TestRepeatReset(t *testing.T) {
	c := clock.NewFake(0)
	r := NewRepeater(c, &RepeatSettings[int]{DelayMs: 1000, RateMs: 1000})

	assert.Equal(t, 1, r.Repeat(1))
	assert.Equal(t, 0, r.Repeat(1))
	r.Reset()
	assert.Equal(t, 1, r.Repeat(1))
}
