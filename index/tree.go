// Package index implements the ordered containers the core's indexed
// stores are built on: topics by name-hash, by subject-id, by
// next-gossip-time, and futures by masked transfer-id per topic and by
// deadline globally (spec.md §4.B). No ordered-map/btree library exists
// anywhere in the retrieved example pack, so this is a direct,
// stdlib-only implementation: a generic AVL tree keyed by a caller
// comparator, with O(log N) Find/InsertAbsent/Remove/Min/NextGreater.
package index

// Tree is a generic AVL tree keyed by cmp, an order function that must
// return <0, 0, or >0 the way a typical comparator does. A nil Tree value
// is not usable; construct one with New.
type Tree[K any, V any] struct {
	root *node[K, V]
	cmp  func(a, b K) int
	size int
}

type node[K any, V any] struct {
	key         K
	val         V
	left, right *node[K, V]
	height      int
}

// New returns an empty Tree ordered by cmp.
func New[K any, V any](cmp func(a, b K) int) *Tree[K, V] {
	return &Tree[K, V]{cmp: cmp}
}

// Len returns the number of entries in the tree.
func (t *Tree[K, V]) Len() int { return t.size }

// Find returns the value stored under key, if any.
func (t *Tree[K, V]) Find(key K) (V, bool) {
	n := t.root
	for n != nil {
		c := t.cmp(key, n.key)
		switch {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.val, true
		}
	}
	var zero V
	return zero, false
}

// InsertAbsent inserts key with the value produced by makeVal if key is
// not already present. It returns the value now stored under key (the
// existing one if key was already present, or the freshly created one)
// and whether an insertion actually happened.
func (t *Tree[K, V]) InsertAbsent(key K, makeVal func() V) (V, bool) {
	var inserted bool
	var val V
	t.root, val, inserted = t.insert(t.root, key, makeVal)
	if inserted {
		t.size++
	}
	return val, inserted
}

func (t *Tree[K, V]) insert(n *node[K, V], key K, makeVal func() V) (*node[K, V], V, bool) {
	if n == nil {
		v := makeVal()
		return &node[K, V]{key: key, val: v, height: 1}, v, true
	}
	c := t.cmp(key, n.key)
	switch {
	case c < 0:
		newLeft, v, inserted := t.insert(n.left, key, makeVal)
		n.left = newLeft
		if inserted {
			n = rebalance(n)
		}
		return n, v, inserted
	case c > 0:
		newRight, v, inserted := t.insert(n.right, key, makeVal)
		n.right = newRight
		if inserted {
			n = rebalance(n)
		}
		return n, v, inserted
	default:
		return n, n.val, false
	}
}

// Remove deletes key from the tree, returning its value and whether it
// was present.
func (t *Tree[K, V]) Remove(key K) (V, bool) {
	var removed bool
	var val V
	t.root, val, removed = t.remove(t.root, key)
	if removed {
		t.size--
	}
	return val, removed
}

func (t *Tree[K, V]) remove(n *node[K, V], key K) (*node[K, V], V, bool) {
	if n == nil {
		var zero V
		return nil, zero, false
	}
	c := t.cmp(key, n.key)
	switch {
	case c < 0:
		newLeft, v, removed := t.remove(n.left, key)
		n.left = newLeft
		if removed {
			n = rebalance(n)
		}
		return n, v, removed
	case c > 0:
		newRight, v, removed := t.remove(n.right, key)
		n.right = newRight
		if removed {
			n = rebalance(n)
		}
		return n, v, removed
	default:
		val := n.val
		switch {
		case n.left == nil:
			return n.right, val, true
		case n.right == nil:
			return n.left, val, true
		default:
			succ := leftmost(n.right)
			n.key, n.val = succ.key, succ.val
			newRight, _, _ := t.remove(n.right, succ.key)
			n.right = newRight
			n = rebalance(n)
			return n, val, true
		}
	}
}

// Min returns the entry with the smallest key.
func (t *Tree[K, V]) Min() (K, V, bool) {
	n := leftmost(t.root)
	if n == nil {
		var zk K
		var zv V
		return zk, zv, false
	}
	return n.key, n.val, true
}

// NextGreater returns the entry with the smallest key strictly greater
// than key (the key need not itself be present).
func (t *Tree[K, V]) NextGreater(key K) (K, V, bool) {
	n := t.root
	var candK K
	var candV V
	found := false
	for n != nil {
		if t.cmp(key, n.key) < 0 {
			candK, candV, found = n.key, n.val, true
			n = n.left
		} else {
			n = n.right
		}
	}
	return candK, candV, found
}

// Values returns every value in ascending key order.
func (t *Tree[K, V]) Values() []V {
	out := make([]V, 0, t.size)
	var walk func(*node[K, V])
	walk = func(n *node[K, V]) {
		if n == nil {
			return
		}
		walk(n.left)
		out = append(out, n.val)
		walk(n.right)
	}
	walk(t.root)
	return out
}

func leftmost[K any, V any](n *node[K, V]) *node[K, V] {
	if n == nil {
		return nil
	}
	for n.left != nil {
		n = n.left
	}
	return n
}

func height[K any, V any](n *node[K, V]) int {
	if n == nil {
		return 0
	}
	return n.height
}

func updateHeight[K any, V any](n *node[K, V]) {
	l, r := height(n.left), height(n.right)
	if l > r {
		n.height = l + 1
	} else {
		n.height = r + 1
	}
}

func balanceFactor[K any, V any](n *node[K, V]) int {
	return height(n.left) - height(n.right)
}

func rotateRight[K any, V any](n *node[K, V]) *node[K, V] {
	l := n.left
	n.left = l.right
	l.right = n
	updateHeight(n)
	updateHeight(l)
	return l
}

func rotateLeft[K any, V any](n *node[K, V]) *node[K, V] {
	r := n.right
	n.right = r.left
	r.left = n
	updateHeight(n)
	updateHeight(r)
	return r
}

func rebalance[K any, V any](n *node[K, V]) *node[K, V] {
	updateHeight(n)
	bf := balanceFactor(n)
	switch {
	case bf > 1:
		if balanceFactor(n.left) < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	case bf < -1:
		if balanceFactor(n.right) > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	default:
		return n
	}
}
