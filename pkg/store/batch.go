package store

// Batch groups every patch applied inside fn into a single transition.
// Subscribers are notified once when the outermost batch completes, with
// prev set to the snapshot from before the batch started. If fn applies no
// patch, nobody is notified.
//
// Batches can be nested. Patches applied by other goroutines while a batch
// is open are folded into the same transition.
//
// Example:
//
//	cart.Batch(func() {
//	    cart.Set(func(s *CartState) { s.Items = nil })
//	    cart.Set(func(s *CartState) { s.Coupon = "" })
//	})
func (s *Store[S]) Batch(fn func()) {
	s.mu.Lock()
	if s.batchDepth == 0 {
		s.batchPrev = *s.state.Load()
		s.batchDirty = false
	}
	s.batchDepth++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.batchDepth--
		flush := s.batchDepth == 0 && s.batchDirty
		if flush {
			s.enqueue(transition[S]{next: *s.state.Load(), prev: s.batchPrev})
			var zero S
			s.batchPrev = zero
			s.batchDirty = false
		}
		s.mu.Unlock()

		if flush {
			s.drain()
		}
	}()

	fn()
}
