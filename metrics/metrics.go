// Package metrics provides lightweight, zero-dependency metrics
// primitives for meshcore. Unlike a typical server-side metrics package,
// Counter and Gauge here are plain fields rather than atomics: meshcore's
// core is single-threaded and cooperative by design (spec §5 — no
// internal goroutines), so there is never concurrent access to guard
// against.
package metrics

// Counter is a monotonically incrementing counter.
type Counter struct {
	name  string
	value int64
}

// NewCounter returns a new Counter with the given name.
func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value++ }

// Add increments the counter by n. Negative values are silently ignored
// because counters are monotonically increasing.
func (c *Counter) Add(n int64) {
	if n > 0 {
		c.value += n
	}
}

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value }

// Name returns the metric name.
func (c *Counter) Name() string { return c.name }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	value int64
}

// NewGauge returns a new Gauge with the given name.
func NewGauge(name string) *Gauge {
	return &Gauge{name: name}
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v int64) { g.value = v }

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.value++ }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.value-- }

// Value returns the current gauge value.
func (g *Gauge) Value() int64 { return g.value }

// Name returns the metric name.
func (g *Gauge) Name() string { return g.name }
