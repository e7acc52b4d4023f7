package props

import (
	"fmt"
	"slices"
	"sort"
)

// NotFound is returned by IndexOf for values absent from a list.
const NotFound = -1

// Position tells OrderedList.Order where to put a value.
type Position int

const (
	First Position = iota
	Last
	Next
	Previous
	Before
	After
)

var positionNames = map[string]Position{
	"first":    First,
	"last":     Last,
	"next":     Next,
	"previous": Previous,
	"before":   Before,
	"after":    After,
}

// ParsePosition converts a position name ("first", "after", ...).
func ParsePosition(s string) (Position, error) {
	p, ok := positionNames[s]
	if !ok {
		return 0, fmt.Errorf("props: unknown position %q", s)
	}
	return p, nil
}

// NeedsRelative reports whether the position is relative to another value.
func (p Position) NeedsRelative() bool {
	return p == Before || p == After
}

// OrderedList is a JSON array of distinct strings whose order is
// meaningful, such as a document's child index or the status list.
type OrderedList []string

// Values returns a copy of the list.
func (l OrderedList) Values() []string {
	return slices.Clone(l)
}

// IndexOf returns the position of v, or NotFound.
func (l OrderedList) IndexOf(v string) int {
	return slices.Index(l, v)
}

// Add moves v to the end of the list, inserting it if absent.
func (l *OrderedList) Add(v string) {
	l.Order(v, Last, "")
}

// Remove deletes v if present.
func (l *OrderedList) Remove(v string) {
	if i := l.IndexOf(v); i != NotFound {
		*l = slices.Delete(*l, i, i+1)
	}
}

// Order removes v and reinserts it at pos. Next and Previous are relative
// to v's own former position and act like Last when v was absent. Before
// and After are relative to relativeTo and act like Last when it is
// absent.
func (l *OrderedList) Order(v string, pos Position, relativeTo string) {
	list := *l
	old := list.IndexOf(v)
	if old != NotFound {
		list = slices.Delete(list, old, old+1)
	}

	at := len(list)
	switch pos {
	case First:
		at = 0
	case Next:
		if old != NotFound {
			at = old + 1
		}
	case Previous:
		if old != NotFound {
			at = old - 1
		}
	case Before, After:
		if i := list.IndexOf(relativeTo); i != NotFound {
			at = i
			if pos == After {
				at++
			}
		}
	}
	at = max(0, min(at, len(list)))
	*l = slices.Insert(list, at, v)
}

// Mapped is a JSON object of objects keyed by name, such as the manifest's
// category definitions.
type Mapped[V any] map[string]*V

// Has reports whether key is present.
func (m Mapped[V]) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Get returns the value for key.
func (m Mapped[V]) Get(key string) (*V, bool) {
	v, ok := m[key]
	return v, ok
}

// Add returns the value for key, creating an empty one if absent.
func (m *Mapped[V]) Add(key string) *V {
	if *m == nil {
		*m = make(Mapped[V])
	}
	if v, ok := (*m)[key]; ok && v != nil {
		return v
	}
	v := new(V)
	(*m)[key] = v
	return v
}

// Remove deletes key if present.
func (m Mapped[V]) Remove(key string) {
	delete(m, key)
}

// Keys returns the keys in sorted order.
func (m Mapped[V]) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
