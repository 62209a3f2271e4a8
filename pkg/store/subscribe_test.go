package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSubscribeReceivesNextAndPrev(t *testing.T) {
	s := New(testState{Count: 1})

	var gotNext, gotPrev testState
	calls := 0
	s.Subscribe(func(next, prev testState) {
		calls++
		gotNext, gotPrev = next, prev
	})

	s.Set(func(d *testState) { d.Count = 2 })

	if calls != 1 {
		t.Fatalf("expected exactly one notification, got %d", calls)
	}
	if gotNext.Count != 2 || gotPrev.Count != 1 {
		t.Errorf("expected next=2 prev=1, got next=%d prev=%d", gotNext.Count, gotPrev.Count)
	}
}

func TestSubscribeSeesAppliedState(t *testing.T) {
	s := New(testState{})

	var observed int
	s.Subscribe(func(next, prev testState) {
		observed = s.Get().Count
	})

	s.Set(func(d *testState) { d.Count = 42 })

	if observed != 42 {
		t.Errorf("subscriber should run after the patch is applied, saw %d", observed)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := New(testState{})
	calls := 0
	unsubscribe := s.Subscribe(func(next, prev testState) { calls++ })

	s.Set(func(d *testState) { d.Count = 1 })
	unsubscribe()
	unsubscribe()

	for i := 0; i < 5; i++ {
		s.Set(func(d *testState) { d.Count++ })
	}

	if calls != 1 {
		t.Errorf("expected 1 call before unsubscribe, got %d", calls)
	}
	if n := s.Subscribers(); n != 0 {
		t.Errorf("expected no registrations left, got %d", n)
	}
}

func TestUnsubscribeRemovesOnlyItsRegistration(t *testing.T) {
	s := New(testState{})
	var order []string

	s.Subscribe(func(next, prev testState) { order = append(order, "a") })
	unsubB := s.Subscribe(func(next, prev testState) { order = append(order, "b") })
	s.Subscribe(func(next, prev testState) { order = append(order, "c") })

	unsubB()
	unsubB()
	s.Set(func(d *testState) { d.Count = 1 })

	if diff := cmp.Diff([]string{"a", "c"}, order); diff != "" {
		t.Errorf("unexpected notifications (-want +got):\n%s", diff)
	}
}

func TestUnsubscribeDuringNotification(t *testing.T) {
	s := New(testState{})
	calls := 0

	var unsubLater func()
	s.Subscribe(func(next, prev testState) { unsubLater() })
	unsubLater = s.Subscribe(func(next, prev testState) { calls++ })

	s.Set(func(d *testState) { d.Count = 1 })
	s.Set(func(d *testState) { d.Count = 2 })

	if calls != 0 {
		t.Errorf("subscriber removed earlier in the round should not run, got %d calls", calls)
	}
}

func TestSubscribeSelectorOnlyFiresOnChange(t *testing.T) {
	s := New(testState{Count: 0, Name: "a"})

	type change struct{ next, prev int }
	var changes []change
	SubscribeSelector(s,
		func(st testState) int { return st.Count },
		func(next, prev int) { changes = append(changes, change{next, prev}) },
	)

	s.Set(func(d *testState) { d.Name = "b" })
	s.Set(func(d *testState) { d.Count = 1 })
	s.Set(func(d *testState) { d.Count = 1 })
	s.Set(func(d *testState) { d.Count = 3 })

	want := []change{{1, 0}, {3, 1}}
	if diff := cmp.Diff(want, changes, cmp.AllowUnexported(change{})); diff != "" {
		t.Errorf("unexpected selector notifications (-want +got):\n%s", diff)
	}
}

func TestSubscribeSelectorCustomEquality(t *testing.T) {
	s := New(testState{Tags: []string{"a"}})
	calls := 0

	SubscribeSelector(s,
		func(st testState) []string { return st.Tags },
		func(next, prev []string) { calls++ },
		WithEquality(Shallow[string]),
	)

	s.Set(func(d *testState) { d.Tags = []string{"a"} })
	if calls != 0 {
		t.Errorf("equal slices should not notify, got %d", calls)
	}

	s.Set(func(d *testState) { d.Tags = []string{"a", "b"} })
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
}

func TestSubscribeSelectorFireImmediately(t *testing.T) {
	s := New(testState{Name: "init"})

	var got []string
	SubscribeSelector(s,
		func(st testState) string { return st.Name },
		func(next, prev string) { got = append(got, prev+"->"+next) },
		FireImmediately[string](),
	)

	s.Set(func(d *testState) { d.Name = "next" })

	if diff := cmp.Diff([]string{"init->init", "init->next"}, got); diff != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", diff)
	}
}

func TestSubscribeSelectorUnsubscribe(t *testing.T) {
	s := New(testState{})
	calls := 0
	unsubscribe := SubscribeSelector(s,
		func(st testState) int { return st.Count },
		func(next, prev int) { calls++ },
	)

	unsubscribe()
	unsubscribe()
	s.Set(func(d *testState) { d.Count = 9 })

	if calls != 0 {
		t.Errorf("expected no calls after unsubscribe, got %d", calls)
	}
}

func TestNilCallbacksAreIgnored(t *testing.T) {
	s := New(testState{})

	s.Subscribe(nil)()
	SubscribeSelector[testState, int](s, nil, nil)()
	s.Use(nil)()

	s.Set(func(d *testState) { d.Count = 1 })
	if n := s.Subscribers(); n != 0 {
		t.Errorf("nil callbacks should not register, got %d", n)
	}
}

func TestReentrantSetIsDeliveredInOrder(t *testing.T) {
	s := New(testState{})
	var seen []int

	s.Subscribe(func(next, prev testState) {
		seen = append(seen, next.Count)
		if next.Count == 1 {
			s.Set(func(d *testState) { d.Count = 2 })
			if got := s.Get().Count; got != 2 {
				t.Errorf("nested set should be applied immediately, got %d", got)
			}
		}
	})
	s.Subscribe(func(next, prev testState) {
		seen = append(seen, -next.Count)
	})

	s.Set(func(d *testState) { d.Count = 1 })

	want := []int{1, -1, 2, -2}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("nested transition should follow the current round (-want +got):\n%s", diff)
	}
}

func TestSubscriberAddedDuringRoundSkipsEarlierTransitions(t *testing.T) {
	s := New(testState{})
	lateCalls := 0

	s.Subscribe(func(next, prev testState) {
		if next.Count == 1 {
			s.Subscribe(func(next, prev testState) { lateCalls++ })
		}
	})

	s.Set(func(d *testState) { d.Count = 1 })
	if lateCalls != 0 {
		t.Errorf("late subscriber should not see the transition that created it, got %d", lateCalls)
	}

	s.Set(func(d *testState) { d.Count = 2 })
	if lateCalls != 1 {
		t.Errorf("late subscriber should see later transitions, got %d", lateCalls)
	}
}
