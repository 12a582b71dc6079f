package engine

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Source yields the ordered sequence of IDs a bulk run processes.
type Source interface {
	// IDs yields the IDs in processing order.
	IDs() iter.Seq[int]

	// Len is the number of IDs IDs yields.
	Len() int

	// String describes the source for logs and the summary.
	String() string
}

// RangeSource is an inclusive ascending ID range. IDs are generated as the
// run advances, so the size of the range costs nothing up front.
type RangeSource struct {
	Start int
	End   int
}

// Range returns the inclusive range [start, end]. An inverted range yields no IDs.
func Range(start, end int) RangeSource {
	return RangeSource{Start: start, End: end}
}

// IDs yields Start..End in ascending order.
func (r RangeSource) IDs() iter.Seq[int] {
	return func(yield func(int) bool) {
		for id := r.Start; id <= r.End; id++ {
			if !yield(id) {
				return
			}
			if id == r.End {
				return
			}
		}
	}
}

func (r RangeSource) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

func (r RangeSource) String() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// ListSource is an explicit list processed in the given order.
type ListSource []int

// List returns an explicit ID list.
func List(ids ...int) ListSource {
	return ListSource(ids)
}

// IDs yields the list in order, keeping only the first occurrence of each ID.
func (l ListSource) IDs() iter.Seq[int] {
	return func(yield func(int) bool) {
		seen := make(map[int]struct{}, len(l))
		for _, id := range l {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if !yield(id) {
				return
			}
		}
	}
}

// Len counts distinct IDs.
func (l ListSource) Len() int {
	seen := make(map[int]struct{}, len(l))
	for _, id := range l {
		seen[id] = struct{}{}
	}
	return len(seen)
}

func (l ListSource) String() string {
	parts := make([]string, len(l))
	for i, id := range l {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// IDSpans records IDs in arrival order, merging runs of consecutive IDs.
type IDSpans []RangeSource

// Add appends id, extending the last span when id follows it directly.
func (s *IDSpans) Add(id int) {
	if n := len(*s); n > 0 && (*s)[n-1].End+1 == id {
		(*s)[n-1].End = id
		return
	}
	*s = append(*s, Range(id, id))
}

// Count is the number of IDs across all spans.
func (s IDSpans) Count() int {
	n := 0
	for _, r := range s {
		n += r.Len()
	}
	return n
}

// Expand lists every ID.
func (s IDSpans) Expand() []int {
	ids := make([]int, 0, s.Count())
	for _, r := range s {
		for id := range r.IDs() {
			ids = append(ids, id)
		}
	}
	return ids
}

// String joins the spans with spaces, e.g. "103 110-250".
func (s IDSpans) String() string {
	parts := make([]string, len(s))
	for i, r := range s {
		parts[i] = r.String()
	}
	return strings.Join(parts, " ")
}
