package game

import (
	"testing"
	"time"
)

func TestObserversDeliverToLiveLeases(t *testing.T) {
	o := newObservers(time.Minute)
	a := &recorder{}
	b := &recorder{}
	o.subscribe("a", a)
	o.subscribe("b", b)

	o.notify(NarrativeEvent{Text: "hello"})
	if len(a.snapshot()) != 1 || len(b.snapshot()) != 1 {
		t.Fatalf("expected both subscribers notified, got %d and %d", len(a.snapshot()), len(b.snapshot()))
	}

	o.unsubscribe("a")
	o.notify(NarrativeEvent{Text: "again"})
	if len(a.snapshot()) != 1 {
		t.Fatal("unsubscribed subscriber must not receive events")
	}
	if len(b.snapshot()) != 2 {
		t.Fatalf("expected 2 events for b, got %d", len(b.snapshot()))
	}
}

func TestObserversExpireLeases(t *testing.T) {
	o := newObservers(time.Minute)
	now := time.Now()
	o.now = func() time.Time { return now }

	rec := &recorder{}
	o.subscribe("rec", rec)

	now = now.Add(2 * time.Minute)
	o.notify(NarrativeEvent{Text: "late"})
	if len(rec.snapshot()) != 0 {
		t.Fatal("expired lease must not be delivered to")
	}
	if len(o.leases) != 0 {
		t.Fatal("expired lease should be pruned on delivery")
	}

	// re-subscribing renews the lease
	o.subscribe("rec", rec)
	o.notify(NarrativeEvent{Text: "fresh"})
	if len(rec.snapshot()) != 1 {
		t.Fatal("renewed lease should be delivered to")
	}
}

func TestObserversRefreshOnResubscribe(t *testing.T) {
	o := newObservers(time.Minute)
	now := time.Now()
	o.now = func() time.Time { return now }

	rec := &recorder{}
	o.subscribe("rec", rec)
	now = now.Add(45 * time.Second)
	o.subscribe("rec", rec) // renewal inside the window
	now = now.Add(45 * time.Second)

	o.notify(NarrativeEvent{Text: "still here"})
	if len(rec.snapshot()) != 1 {
		t.Fatal("renewed lease must stay live past the original expiry")
	}
}

type panickySubscriber struct{}

func (panickySubscriber) Notify(Event) { panic("boom") }

func TestObserversTolerateFailingSubscriber(t *testing.T) {
	o := newObservers(time.Minute)
	rec := &recorder{}
	o.subscribe("bad", panickySubscriber{})
	o.subscribe("good", rec)

	o.notify(NarrativeEvent{Text: "one"})
	if len(rec.snapshot()) != 1 {
		t.Fatal("a failing subscriber must not block delivery to others")
	}
	o.notify(NarrativeEvent{Text: "two"})
	if len(rec.snapshot()) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.snapshot()))
	}
	if _, ok := o.leases["bad"]; ok {
		t.Fatal("panicking subscriber should be dropped")
	}
}
