// Package fleet simulates a fleet of environmental sensors: each active
// device gets a worker that generates readings on a random walk and sends
// them to the collector over the device's assigned transport.
package fleet

import (
	"math/rand"
	"sync"
)

// Reading bounds and walk steps. Readings start inside a narrower band so
// the first values look settled rather than pinned to an extreme.
const (
	tempMin     = 15.0
	tempMax     = 30.0
	tempStep    = 0.5
	tempInitMin = 18.0
	tempInitMax = 28.0
	humMin      = 30.0
	humMax      = 80.0
	humStep     = 2.0
	humInitMin  = 40.0
	humInitMax  = 70.0
)

// walk moves value by a uniform step in [-step, step], clamped to [min, max].
func walk(rng *rand.Rand, value, step, min, max float64) float64 {
	next := value + (rng.Float64()*2-1)*step
	if next < min {
		return min
	}
	if next > max {
		return max
	}
	return next
}

// Generator produces temperature and humidity readings on independent
// random walks. Safe for concurrent use.
type Generator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	temperature float64
	humidity    float64
}

// NewGenerator creates a generator seeded for one device. Seeding per device
// keeps runs reproducible in tests while fleets stay uncorrelated.
func NewGenerator(seed int64) *Generator {
	rng := rand.New(rand.NewSource(seed))
	return &Generator{
		rng:         rng,
		temperature: tempInitMin + rng.Float64()*(tempInitMax-tempInitMin),
		humidity:    humInitMin + rng.Float64()*(humInitMax-humInitMin),
	}
}

// Next advances both walks one step and returns the new readings.
func (g *Generator) Next() (temperature, humidity float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.temperature = walk(g.rng, g.temperature, tempStep, tempMin, tempMax)
	g.humidity = walk(g.rng, g.humidity, humStep, humMin, humMax)
	return g.temperature, g.humidity
}
