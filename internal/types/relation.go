package types

import "fmt"

// Relation is a subject-predicate-object triple.
type Relation struct {
	Subject   string
	Predicate string
	Object    string
}

// Rel is a shorthand constructor for Relation.
func Rel(s, p, o string) Relation {
	return Relation{Subject: s, Predicate: p, Object: o}
}

// Triple returns the relation as a three-element slice.
func (r Relation) Triple() []string {
	return []string{r.Subject, r.Predicate, r.Object}
}

// Matches reports whether r matches the pattern. Empty pattern fields
// match anything.
func (r Relation) Matches(s, p, o string) bool {
	return (s == "" || s == r.Subject) &&
		(p == "" || p == r.Predicate) &&
		(o == "" || o == r.Object)
}

func (r Relation) String() string {
	return fmt.Sprintf("(%s, %s, %s)", r.Subject, r.Predicate, r.Object)
}
