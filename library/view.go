package library

// ListView holds one list page's state: the full collection, the active
// filter, the page size and the current page. Render code reads from it and
// never keeps its own copy.
//
// Invariant: 1 <= Page() <= TotalPages() whenever the filtered set is non-empty.
type ListView[T any] struct {
	all      []T
	filtered []T
	match    func(T) bool
	pageSize int
	page     int
}

// NewListView creates an empty view. pageSize below 1 is treated as 1.
func NewListView[T any](pageSize int) *ListView[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	return &ListView[T]{pageSize: pageSize, page: 1}
}

// SetCollection replaces the full collection and re-applies the current
// filter. The page is kept when still in range.
func (v *ListView[T]) SetCollection(items []T) {
	v.all = append([]T(nil), items...)
	v.refilter()
	v.page = v.clamp(v.page)
}

// ApplyFilter installs a new predicate (nil matches everything) and returns to page 1.
func (v *ListView[T]) ApplyFilter(match func(T) bool) {
	v.match = match
	v.refilter()
	v.page = 1
}

// SetPageSize changes the page size and returns to page 1.
func (v *ListView[T]) SetPageSize(n int) {
	if n < 1 {
		n = 1
	}
	v.pageSize = n
	v.page = 1
}

// GoToPage moves to p, clamped into [1, TotalPages()].
func (v *ListView[T]) GoToPage(p int) {
	v.page = v.clamp(p)
}

func (v *ListView[T]) clamp(p int) int {
	total := v.TotalPages()
	if p > total {
		p = total
	}
	if p < 1 {
		p = 1
	}
	return p
}

func (v *ListView[T]) refilter() {
	if v.match == nil {
		v.filtered = v.all
		return
	}
	out := make([]T, 0, len(v.all))
	for _, item := range v.all {
		if v.match(item) {
			out = append(out, item)
		}
	}
	v.filtered = out
}

// VisibleSlice returns the items on the current page.
func (v *ListView[T]) VisibleSlice() []T {
	if len(v.filtered) == 0 {
		return []T{}
	}
	start, end := v.bounds()
	return append([]T(nil), v.filtered[start:end]...)
}

func (v *ListView[T]) bounds() (start, end int) {
	start = (v.page - 1) * v.pageSize
	end = start + v.pageSize
	if end > len(v.filtered) {
		end = len(v.filtered)
	}
	return start, end
}

// Filtered returns every item that passes the filter, across all pages.
func (v *ListView[T]) Filtered() []T { return append([]T(nil), v.filtered...) }

// All returns the unfiltered collection.
func (v *ListView[T]) All() []T { return append([]T(nil), v.all...) }

func (v *ListView[T]) Page() int          { return v.page }
func (v *ListView[T]) PageSize() int      { return v.pageSize }
func (v *ListView[T]) FilteredCount() int { return len(v.filtered) }
func (v *ListView[T]) TotalCount() int    { return len(v.all) }

// TotalPages is ceil(FilteredCount / PageSize); 0 when nothing matches.
func (v *ListView[T]) TotalPages() int {
	return (len(v.filtered) + v.pageSize - 1) / v.pageSize
}

// Range returns the 1-based positions shown on the current page for
// "Showing from-to of n". Both are 0 when nothing matches.
func (v *ListView[T]) Range() (from, to int) {
	if len(v.filtered) == 0 {
		return 0, 0
	}
	start, end := v.bounds()
	return start + 1, end
}

// Links returns the pagination bar for the current state.
func (v *ListView[T]) Links() []PageLink {
	return PageLinks(v.page, v.TotalPages())
}

// PageLink is one entry in a pagination bar: a page number or a gap marker.
type PageLink struct {
	Number   int
	Current  bool
	Ellipsis bool
}

// pageWindow is how many pages either side of the current one are listed.
const pageWindow = 2

// PageLinks lists the first and last page, pages within two of current, and a
// single ellipsis for each run of skipped pages. A single page needs no bar.
func PageLinks(current, total int) []PageLink {
	if total <= 1 {
		return nil
	}
	links := make([]PageLink, 0, 2*pageWindow+5)
	gap := false
	for i := 1; i <= total; i++ {
		if i == 1 || i == total || (i >= current-pageWindow && i <= current+pageWindow) {
			links = append(links, PageLink{Number: i, Current: i == current})
			gap = false
			continue
		}
		if !gap {
			links = append(links, PageLink{Ellipsis: true})
			gap = true
		}
	}
	return links
}
