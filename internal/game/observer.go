package game

import (
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultLeaseTTL is how long a subscription stays live without renewal.
// Clients are expected to re-subscribe well within this window.
const DefaultLeaseTTL = 5 * time.Minute

// Subscriber receives push events. Notify is fire-and-forget: implementations
// must not block and get no way to report failure back to the broadcaster.
type Subscriber interface {
	Notify(Event)
}

type lease struct {
	sub     Subscriber
	expires time.Time
}

// observers is a lease-based subscription table. It is owned by exactly one
// actor and only ever touched from that actor's loop, so it carries no lock.
// Expired leases are pruned lazily on the next broadcast.
type observers struct {
	ttl    time.Duration
	leases map[string]lease
	now    func() time.Time
}

func newObservers(ttl time.Duration) *observers {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &observers{
		ttl:    ttl,
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

// subscribe inserts or refreshes the lease for id.
func (o *observers) subscribe(id string, sub Subscriber) {
	o.leases[id] = lease{sub: sub, expires: o.now().Add(o.ttl)}
}

func (o *observers) unsubscribe(id string) {
	delete(o.leases, id)
}

// notify delivers ev to every live subscriber, best effort. A panicking
// subscriber is dropped; delivery to the rest continues.
func (o *observers) notify(ev Event) {
	now := o.now()
	for id, l := range o.leases {
		if now.After(l.expires) {
			delete(o.leases, id)
			continue
		}
		o.deliver(id, l.sub, ev)
	}
}

func (o *observers) deliver(id string, sub Subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("subscriber", id).Any("panic", r).Msg("dropping panicking subscriber")
			delete(o.leases, id)
		}
	}()
	sub.Notify(ev)
}
