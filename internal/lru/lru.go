// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// package lru provides a generic least-recently-used cache.
package lru

import (
	"fmt"
)

// Cache implements an LRU cache, with a particular maximum size.
type Cache[K comparable, V any] struct {
	m       map[K]*node[K, V]
	head    *node[K, V] // most recently used
	tail    *node[K, V] // least recently used
	maxSize int
}

type node[K comparable, V any] struct {
	k          K
	v          V
	prev, next *node[K, V]
}

func New[K comparable, V any](size int) *Cache[K, V] {
	if size <= 0 {
		panic(fmt.Sprintf("lru: non-positive size %d", size))
	}
	return &Cache[K, V]{
		m:       make(map[K]*node[K, V], size+1),
		maxSize: size,
	}
}

// Add inserts an element into the cache, removing an element if necessary to
// keep the size fixed. If the key is already present its value is updated.
func (c *Cache[K, V]) Add(k K, v V) {
	if n, ok := c.m[k]; ok {
		n.v = v
		c.moveToFront(n)
		// No change in size.
		return
	}

	if len(c.m) < c.maxSize {
		// The key is new, and there is space in the cache.
		c.pushFront(&node[K, V]{k: k, v: v})
		return
	}
	// We have to evict something; reuse the tail node to avoid an
	// allocation.
	n := c.tail
	delete(c.m, n.k)
	n.k, n.v = k, v
	c.moveToFront(n)
	c.m[k] = n
}

// Get retrieves the value for the given key, if present, and records a use
// of it.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	n, ok := c.m[k]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(n)
	return n.v, true
}

// Len returns the number of elements currently in the cache.
func (c *Cache[K, V]) Len() int { return len(c.m) }

func (c *Cache[K, V]) pushFront(n *node[K, V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
	c.m[n.k] = n
}

func (c *Cache[K, V]) moveToFront(n *node[K, V]) {
	if c.head == n {
		return
	}
	// Unlink.
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if c.tail == n {
		c.tail = n.prev
	}
	// Relink at the front.
	n.prev = nil
	n.next = c.head
	c.head.prev = n
	c.head = n
}
