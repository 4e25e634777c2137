package regmap

import (
	"strconv"
	"strings"
)

// Placeholder marks the index position in a Subscriptor pattern.
const Placeholder = "{}"

// Resolver is implemented by containers a Subscriptor can index into:
// *Peripheral resolves registers and *Register resolves fields.
type Resolver[T any] interface {
	Lookup(name string) (T, bool)
}

// Subscriptor exposes a numbered family of sibling declarations (TIM2RST,
// TIM3RST, ...) through one pattern ("TIM{}RST"). It keeps no reference to
// the members: every call substitutes the index and looks the name up on the
// owner again, so members declared after the Subscriptor are found too.
type Subscriptor[T any] struct {
	owner     Resolver[T]
	ownerName string
	pattern   string
	prefix    string
	suffix    string
}

// NewSubscriptor builds a Subscriptor over owner. The pattern must contain
// exactly one Placeholder.
func NewSubscriptor[T any](owner Resolver[T], pattern string) (*Subscriptor[T], error) {
	return newSubscriptor(owner, "", pattern)
}

func newSubscriptor[T any](owner Resolver[T], ownerName, pattern string) (*Subscriptor[T], error) {
	if owner == nil {
		return nil, configErr("family", pattern, "nil owner")
	}
	if pattern == "" {
		return nil, configErr("family", pattern, "empty pattern")
	}
	if n := strings.Count(pattern, Placeholder); n != 1 {
		return nil, configErr("family", pattern, "pattern needs exactly one %s placeholder, found %d", Placeholder, n)
	}
	i := strings.Index(pattern, Placeholder)
	return &Subscriptor[T]{
		owner:     owner,
		ownerName: ownerName,
		pattern:   pattern,
		prefix:    pattern[:i],
		suffix:    pattern[i+len(Placeholder):],
	}, nil
}

// Pattern returns the pattern the Subscriptor was built with.
func (s *Subscriptor[T]) Pattern() string { return s.pattern }

// Name returns the pattern with the placeholder removed: "TIM{}RST" gives
// "TIMRST".
func (s *Subscriptor[T]) Name() string { return s.prefix + s.suffix }

// Key returns the member name for a textual index.
func (s *Subscriptor[T]) Key(index string) string {
	return s.prefix + index + s.suffix
}

// Resolve returns the member for a numeric index.
func (s *Subscriptor[T]) Resolve(index int) (T, error) {
	return s.ResolveKey(strconv.Itoa(index))
}

// ResolveKey returns the member for a textual index ("1", "A", "_Output").
func (s *Subscriptor[T]) ResolveKey(index string) (T, error) {
	key := s.Key(index)
	if v, ok := s.owner.Lookup(key); ok {
		return v, nil
	}
	var zero T
	return zero, &UnknownIndexError{Owner: s.ownerName, Pattern: s.pattern, Key: key}
}

// Indices returns the numeric indices in [lo, hi] that currently resolve.
func (s *Subscriptor[T]) Indices(lo, hi int) []int {
	var out []int
	for i := lo; i <= hi; i++ {
		if _, ok := s.owner.Lookup(s.Key(strconv.Itoa(i))); ok {
			out = append(out, i)
		}
	}
	return out
}

// familySet is the per-container table of named Subscriptors.
type familySet[T any] struct {
	order []string
	byKey map[string]*Subscriptor[T]
}

func (fs *familySet[T]) add(owner Resolver[T], ownerName, name, pattern string) (*Subscriptor[T], error) {
	s, err := newSubscriptor(owner, ownerName, pattern)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = s.Name()
	}
	if name == "" {
		return nil, configErr("family", ownerName+"."+pattern, "pattern yields an empty family name")
	}
	if fs.byKey == nil {
		fs.byKey = make(map[string]*Subscriptor[T])
	}
	if _, dup := fs.byKey[name]; dup {
		return nil, configErr("family", ownerName+"."+name, "duplicate name")
	}
	fs.byKey[name] = s
	fs.order = append(fs.order, name)
	return s, nil
}

func (fs *familySet[T]) get(name string) (*Subscriptor[T], bool) {
	s, ok := fs.byKey[name]
	return s, ok
}

func (fs *familySet[T]) names() []string {
	return append([]string(nil), fs.order...)
}
