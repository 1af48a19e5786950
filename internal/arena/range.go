package arena

import "iter"

// Range is a half-open interval [Start, End) of ids.
type Range[I ID] struct {
	Start I
	End   I
}

// Empty reports whether the range contains no ids.
func (r Range[I]) Empty() bool { return r.End <= r.Start }

// Len reports the number of ids in the range.
func (r Range[I]) Len() int {
	if r.Empty() {
		return 0
	}
	return int(r.End - r.Start)
}

// Contains reports whether id lies within the range.
func (r Range[I]) Contains(id I) bool { return id >= r.Start && id < r.End }

// Split cuts the range at id. Both halves stay half-open: [Start,id) and [id,End).
func (r Range[I]) Split(at I) (Range[I], Range[I]) {
	if at < r.Start {
		at = r.Start
	}
	if at > r.End {
		at = r.End
	}
	return Range[I]{Start: r.Start, End: at}, Range[I]{Start: at, End: r.End}
}

// All iterates the ids in order.
func (r Range[I]) All() iter.Seq[I] {
	return func(yield func(I) bool) {
		for id := r.Start; id < r.End; id++ {
			if !yield(id) {
				return
			}
		}
	}
}

// Walker iterates a range while letting the caller skip ahead, which is how
// nested bodies recorded as sub-ranges are stepped over.
type Walker[I ID] struct {
	cur I
	end I
}

// Walk returns a walker positioned at r.Start.
func (r Range[I]) Walk() *Walker[I] { return &Walker[I]{cur: r.Start, end: r.End} }

// Next returns the next id, or false at the end.
func (w *Walker[I]) Next() (I, bool) {
	if w.cur >= w.end {
		return 0, false
	}
	id := w.cur
	w.cur++
	return id, true
}

// SkipTo moves the walker to id. Moving backwards is a programming error.
func (w *Walker[I]) SkipTo(id I) {
	if id < w.cur {
		panic("arena: walker cannot move backwards")
	}
	w.cur = id
}
