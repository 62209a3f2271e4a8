// Package store provides observable state containers for application state.
//
// A Store holds a snapshot of a state struct. All mutation goes through Set
// (a shallow patch applied to a copy of the current snapshot) or SetState
// (a full replacement). Every applied mutation is one transition, and every
// transition is delivered to hooks and subscribers exactly once, in order,
// after the new snapshot has been published.
//
// # Core Types
//
// Store[S] is the container:
//
//	type Counter struct{ Count int }
//
//	counter := store.New(Counter{})
//	counter.Set(func(s *Counter) { s.Count++ })
//	current := counter.Get().Count
//
// Create binds updaters to a store through an initializer that runs once:
//
//	counter, actions := store.Create(func(set store.SetFunc[Counter], get store.GetFunc[Counter]) (Counter, CounterActions) {
//	    return Counter{}, CounterActions{
//	        Increment: func() { set(func(s *Counter) { s.Count++ }) },
//	    }
//	})
//
// Derived values are plain functions of a snapshot and are evaluated on every
// read; they are never cached:
//
//	total := store.Select(cart, TotalPrice)
//
// # Subscriptions
//
// Subscribe registers a callback for every transition. SubscribeSelector
// scopes the callback to a selected value and only fires when that value
// changes according to an equality function:
//
//	unsubscribe := store.SubscribeSelector(counter,
//	    func(s Counter) int { return s.Count },
//	    func(next, prev int) { fmt.Println(prev, "->", next) },
//	)
//	defer unsubscribe()
//
// A panicking subscriber is recovered and logged; the remaining subscribers
// of that round are still notified.
//
// # Batching
//
// Patches applied inside Batch produce a single transition:
//
//	cart.Batch(func() {
//	    cart.Set(func(s *Cart) { s.Items = nil })
//	    cart.Set(func(s *Cart) { s.Coupon = "" })
//	})
//
// # Thread Safety
//
// Get is lock-free. Writers are serialized, and notifications are delivered
// by a single drain loop per store, so callbacks never run concurrently with
// each other. A Set issued from inside a callback is queued and delivered
// after the current round.
package store
