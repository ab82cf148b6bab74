package shortlist

import (
	"github.com/garyellow/college-predictor-go/internal/storage"
)

// List is a user's shortlist in rank order. Entry i always has Rank i+1
// after any operation returns without error.
type List []storage.ShortlistEntry

// IndexOf returns the position of the (collegeCode, branch) pair, or -1.
func (l List) IndexOf(collegeCode, branch string) int {
	for i, e := range l {
		if e.CollegeCode == collegeCode && e.Branch == branch {
			return i
		}
	}
	return -1
}

// Append returns a copy of l with e added last at rank len(l)+1.
func (l List) Append(e storage.ShortlistEntry) (List, error) {
	if l.IndexOf(e.CollegeCode, e.Branch) >= 0 {
		return nil, ErrDuplicateEntry
	}
	out := make(List, len(l), len(l)+1)
	copy(out, l)
	e.Rank = len(out) + 1
	return append(out, e), nil
}

// Remove returns a copy of l without the pair, survivors keeping their relative order.
func (l List) Remove(collegeCode, branch string) (List, error) {
	i := l.IndexOf(collegeCode, branch)
	if i < 0 {
		return nil, ErrEntryNotFound
	}
	out := make(List, 0, len(l)-1)
	out = append(out, l[:i]...)
	out = append(out, l[i+1:]...)
	return out.renumbered(), nil
}

// Move returns a copy of l with the pair spliced out and reinserted at
// newRank, clamped into [1, len(l)]. Entries in between shift by one.
// changed is false when the entry already holds that rank, in which case l
// itself is returned.
func (l List) Move(collegeCode, branch string, newRank int) (out List, changed bool, err error) {
	from := l.IndexOf(collegeCode, branch)
	if from < 0 {
		return nil, false, ErrEntryNotFound
	}

	to := min(max(newRank, 1), len(l)) - 1
	if to == from {
		return l, false, nil
	}

	moved := l[from]
	out = make(List, 0, len(l))
	out = append(out, l[:from]...)
	out = append(out, l[from+1:]...)
	out = append(out[:to], append(List{moved}, out[to:]...)...)
	return out.renumbered(), true, nil
}

func (l List) renumbered() List {
	for i := range l {
		l[i].Rank = i + 1
	}
	return l
}
