package cache

import (
	"container/list"
	"strings"

	"github.com/pkg/errors"
)

const (
	// PolicyFIFO evicts the oldest inserted entry. Reads do not change the order.
	PolicyFIFO = "fifo"
	// PolicyLRU evicts the least recently read or written entry.
	PolicyLRU = "lru"
)

// EvictionPolicy decides which entry is displaced when the cache is full.
// The cache calls it with its lock held, so implementations need no locking.
type EvictionPolicy interface {
	Name() string
	// OnInsert is called after a new key is stored.
	OnInsert(key string)
	// OnUpdate is called after an existing key is overwritten.
	OnUpdate(key string)
	// OnAccess is called on every hit.
	OnAccess(key string)
	// OnRemove is called for every removal (delete, expiration, invalidation, eviction).
	OnRemove(key string)
	// Victim returns the next key to evict without removing it.
	Victim() (string, bool)
	// Keys returns the tracked keys, next victim first.
	Keys() []string
	Reset()
}

// ParsePolicy returns the policy registered under name ("fifo" or "lru").
func ParsePolicy(name string) (EvictionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyFIFO:
		return NewFIFOPolicy(), nil
	case PolicyLRU:
		return NewLRUPolicy(), nil
	default:
		return nil, errors.Errorf("unknown eviction policy %q: only %q and %q are supported", name, PolicyFIFO, PolicyLRU)
	}
}

// keyOrder keeps keys in a doubly linked list, front = next victim.
type keyOrder struct {
	order    *list.List
	elements map[string]*list.Element
}

func newKeyOrder() keyOrder {
	return keyOrder{
		order:    list.New(),
		elements: make(map[string]*list.Element),
	}
}

func (o *keyOrder) pushBack(key string) {
	if el, ok := o.elements[key]; ok {
		o.order.MoveToBack(el)
		return
	}
	o.elements[key] = o.order.PushBack(key)
}

func (o *keyOrder) remove(key string) {
	if el, ok := o.elements[key]; ok {
		o.order.Remove(el)
		delete(o.elements, key)
	}
}

func (o *keyOrder) front() (string, bool) {
	el := o.order.Front()
	if el == nil {
		return "", false
	}
	return el.Value.(string), true
}

func (o *keyOrder) keys() []string {
	out := make([]string, 0, o.order.Len())
	for el := o.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(string))
	}
	return out
}

func (o *keyOrder) reset() {
	o.order.Init()
	o.elements = make(map[string]*list.Element)
}

// FIFOPolicy evicts in insertion order. Overwriting a key counts as a fresh
// insertion and moves it to the end.
type FIFOPolicy struct {
	keyOrder
}

// NewFIFOPolicy creates a first-in-first-out policy.
func NewFIFOPolicy() *FIFOPolicy {
	return &FIFOPolicy{keyOrder: newKeyOrder()}
}

func (p *FIFOPolicy) Name() string { return PolicyFIFO }
func (p *FIFOPolicy) OnInsert(key string) { p.pushBack(key) }
func (p *FIFOPolicy) OnUpdate(key string) { p.pushBack(key) }
func (p *FIFOPolicy) OnAccess(string) {}
func (p *FIFOPolicy) OnRemove(key string) { p.remove(key) }
func (p *FIFOPolicy) Victim() (string, bool) { return p.front() }
func (p *FIFOPolicy) Keys() []string { return p.keys() }
func (p *FIFOPolicy) Reset() { p.reset() }

// LRUPolicy evicts the least recently used key.
type LRUPolicy struct {
	keyOrder
}

// NewLRUPolicy creates a least-recently-used policy.
func NewLRUPolicy() *LRUPolicy {
	return &LRUPolicy{keyOrder: newKeyOrder()}
}

func (p *LRUPolicy) Name() string { return PolicyLRU }
func (p *LRUPolicy) OnInsert(key string) { p.pushBack(key) }
func (p *LRUPolicy) OnUpdate(key string) { p.pushBack(key) }
func (p *LRUPolicy) OnAccess(key string) { p.pushBack(key) }
func (p *LRUPolicy) OnRemove(key string) { p.remove(key) }
func (p *LRUPolicy) Victim() (string, bool) { return p.front() }
func (p *LRUPolicy) Keys() []string { return p.keys() }
func (p *LRUPolicy) Reset() { p.reset() }

var (
	_ EvictionPolicy = (*FIFOPolicy)(nil)
	_ EvictionPolicy = (*LRUPolicy)(nil)
)
