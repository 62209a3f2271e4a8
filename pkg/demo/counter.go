package demo

import "github.com/vango-dev/vstore/pkg/store"

// CounterState is the state of the counter store.
type CounterState struct {
	Count int `json:"count"`
}

// Counter is a plain in-memory counter.
type Counter struct {
	*store.Store[CounterState]
}

// NewCounter creates a counter starting at zero.
func NewCounter(opts ...store.Option) *Counter {
	opts = append([]store.Option{store.WithName("counter")}, opts...)
	return &Counter{Store: store.New(CounterState{}, opts...)}
}

// Increment adds one.
func (c *Counter) Increment() {
	c.IncrementBy(1)
}

// Decrement subtracts one.
func (c *Counter) Decrement() {
	c.IncrementBy(-1)
}

// IncrementBy adds n, which may be negative.
func (c *Counter) IncrementBy(n int) {
	c.Set(func(s *CounterState) { s.Count += n })
}

// Reset sets the count back to zero.
func (c *Counter) Reset() {
	c.Set(func(s *CounterState) { s.Count = 0 })
}
