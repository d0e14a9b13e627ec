package store

import "iter"

// tripleTable is one graph partition: the authoritative fact list plus the
// secondary indices derived from it. All buckets are append-only, so a slice
// header captured under the read lock stays a valid, stable view.
type tripleTable struct {
	facts  []Triple
	exists map[Triple]struct{}

	bySubject   map[ID][]Triple
	byPredicate map[ID][]Triple
	byObject    map[ID][]Triple
	bySP        map[pair][]Triple
	byPO        map[pair][]Triple
}

func newTripleTable() *tripleTable {
	return &tripleTable{
		exists:      make(map[Triple]struct{}),
		bySubject:   make(map[ID][]Triple),
		byPredicate: make(map[ID][]Triple),
		byObject:    make(map[ID][]Triple),
		bySP:        make(map[pair][]Triple),
		byPO:        make(map[pair][]Triple),
	}
}

// insert is the only mutation path of a partition.
func (t *tripleTable) insert(tr Triple) bool {
	if _, ok := t.exists[tr]; ok {
		return false
	}
	t.exists[tr] = struct{}{}
	t.facts = append(t.facts, tr)
	t.bySubject[tr.Subject] = append(t.bySubject[tr.Subject], tr)
	t.byPredicate[tr.Predicate] = append(t.byPredicate[tr.Predicate], tr)
	t.byObject[tr.Object] = append(t.byObject[tr.Object], tr)
	sp := pair{tr.Subject, tr.Predicate}
	t.bySP[sp] = append(t.bySP[sp], tr)
	po := pair{tr.Predicate, tr.Object}
	t.byPO[po] = append(t.byPO[po], tr)
	return true
}

func (t *tripleTable) contains(tr Triple) bool {
	_, ok := t.exists[tr]
	return ok
}

// bucket returns the smallest index bucket able to answer a lookup with the
// given bound positions (0 = unbound). The caller still filters on positions
// the bucket does not fix.
func (t *tripleTable) bucket(s, p, o ID) []Triple {
	switch {
	case s != 0 && p != 0:
		return t.bySP[pair{s, p}]
	case p != 0 && o != 0:
		return t.byPO[pair{p, o}]
	case s != 0 && o != 0:
		bs, bo := t.bySubject[s], t.byObject[o]
		if len(bo) < len(bs) {
			return bo
		}
		return bs
	case s != 0:
		return t.bySubject[s]
	case p != 0:
		return t.byPredicate[p]
	case o != 0:
		return t.byObject[o]
	default:
		return t.facts
	}
}

// seq turns a captured bucket into a restartable sequence filtered on the
// bound positions.
func seq(bucket []Triple, s, p, o ID) iter.Seq[Triple] {
	return func(yield func(Triple) bool) {
		for _, tr := range bucket {
			if s != 0 && tr.Subject != s {
				continue
			}
			if p != 0 && tr.Predicate != p {
				continue
			}
			if o != 0 && tr.Object != o {
				continue
			}
			if !yield(tr) {
				return
			}
		}
	}
}

func emptySeq[T any]() iter.Seq[T] {
	return func(func(T) bool) {}
}
