package fleet

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWalk_StaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	value := 15.0
	for i := 0; i < 10_000; i++ {
		value = walk(rng, value, tempStep, tempMin, tempMax)
		assert.GreaterOrEqual(t, value, tempMin)
		assert.LessOrEqual(t, value, tempMax)
	}
}

func TestWalk_StepIsBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	value := 50.0
	for i := 0; i < 1000; i++ {
		next := walk(rng, value, humStep, humMin, humMax)
		assert.LessOrEqual(t, next-value, humStep)
		assert.GreaterOrEqual(t, next-value, -humStep)
		value = next
	}
}

func TestGenerator_InitialReadingsInsideStartBand(t *testing.T) {
	for seed := int64(0); seed < 100; seed++ {
		g := NewGenerator(seed)
		assert.GreaterOrEqual(t, g.temperature, tempInitMin)
		assert.LessOrEqual(t, g.temperature, tempInitMax)
		assert.GreaterOrEqual(t, g.humidity, humInitMin)
		assert.LessOrEqual(t, g.humidity, humInitMax)
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	a, b := NewGenerator(42), NewGenerator(42)
	for i := 0; i < 50; i++ {
		at, ah := a.Next()
		bt, bh := b.Next()
		assert.Equal(t, at, bt)
		assert.Equal(t, ah, bh)
	}
}
