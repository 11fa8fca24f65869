package types

import "sort"

// ExceptionSet is a set of exception classes that an expression or statement
// may raise. The zero value is an empty set.
type ExceptionSet struct {
	list []*Class
}

// NewExceptionSet returns a set holding cs.
func NewExceptionSet(cs ...*Class) ExceptionSet {
	var s ExceptionSet
	for _, c := range cs {
		s.Add(c)
	}
	return s
}

// Add inserts c. Adding a class twice is a no-op. Sets are values: copies
// never observe each other's additions.
func (s *ExceptionSet) Add(c *Class) {
	if c == nil || s.Contains(c) {
		return
	}
	n := len(s.list)
	s.list = append(s.list[:n:n], c)
}

// AddAll inserts every member of o.
func (s *ExceptionSet) AddAll(o ExceptionSet) {
	for _, c := range o.list {
		s.Add(c)
	}
}

// Contains reports whether c itself is a member.
func (s ExceptionSet) Contains(c *Class) bool {
	for _, x := range s.list {
		if x == c {
			return true
		}
	}
	return false
}

// Empty reports whether the set has no members.
func (s ExceptionSet) Empty() bool { return len(s.list) == 0 }

// Len returns the number of members.
func (s ExceptionSet) Len() int { return len(s.list) }

// Without returns the members that are not subclasses of caught.
func (s ExceptionSet) Without(caught *Class) ExceptionSet {
	var out ExceptionSet
	for _, c := range s.list {
		if !c.IsSubclassOf(caught) {
			out.list = append(out.list, c)
		}
	}
	return out
}

// Classes returns the members sorted by name.
func (s ExceptionSet) Classes() []*Class {
	out := append([]*Class(nil), s.list...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
