// Package listener provides the composite listeners the engine calls: ordered fan-out of
// before-callbacks and exact reverse fan-out of after-callbacks.
package listener

import (
	"reflect"
	"sort"
	"sync"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
)

// OrderedComposite keeps items in two sequences. Items implementing port.Ordered come first,
// sorted by Order (stable for equal values); the others follow in registration order.
type OrderedComposite[T any] struct {
	mu        sync.RWMutex
	ordered   []T
	unordered []T
}

// Add registers item. An item that is already registered is ignored.
func (c *OrderedComposite[T]) Add(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contains(item) {
		return
	}
	if _, ok := any(item).(port.Ordered); ok {
		c.ordered = append(c.ordered, item)
		sort.SliceStable(c.ordered, func(i, j int) bool {
			return any(c.ordered[i]).(port.Ordered).Order() < any(c.ordered[j]).(port.Ordered).Order()
		})
		return
	}
	c.unordered = append(c.unordered, item)
}

// SetItems replaces all items.
func (c *OrderedComposite[T]) SetItems(items []T) {
	c.mu.Lock()
	c.ordered, c.unordered = nil, nil
	c.mu.Unlock()
	for _, item := range items {
		c.Add(item)
	}
}

// Forward returns the items in call order for before-callbacks.
func (c *OrderedComposite[T]) Forward() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.ordered)+len(c.unordered))
	out = append(out, c.ordered...)
	return append(out, c.unordered...)
}

// Reverse returns the items in call order for after-callbacks: exactly Forward reversed.
func (c *OrderedComposite[T]) Reverse() []T {
	out := c.Forward()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of registered items.
func (c *OrderedComposite[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordered) + len(c.unordered)
}

func (c *OrderedComposite[T]) contains(item T) bool {
	v := any(item)
	if v == nil || !reflect.TypeOf(v).Comparable() {
		return false
	}
	for _, list := range [][]T{c.ordered, c.unordered} {
		for _, existing := range list {
			if any(existing) == v {
				return true
			}
		}
	}
	return false
}
