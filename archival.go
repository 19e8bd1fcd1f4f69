// Archival index: the sorted, per-revision mapping from logical page to
// physical offset in the onion file.
package onion

import "sort"

// ArchivalIndex is the sorted, per-revision logical-page lookup table.
type ArchivalIndex struct {
	PageSizeLog2 uint32
	List         []IndexEntry // strictly ascending by LogiPage
}

// newArchivalIndex returns an empty, non-nil archival index for the
// given page size log2. The list must stay non-nil even when empty:
// a freshly created revision has no entries yet, but isValid requires
// a non-nil list to distinguish "no entries" from "not initialized".
func newArchivalIndex(pageSizeLog2 uint32) *ArchivalIndex {
	return &ArchivalIndex{PageSizeLog2: pageSizeLog2, List: []IndexEntry{}}
}

// isValid reports whether ix's list is non-nil and strictly ascending
// by LogiPage.
func (ix *ArchivalIndex) isValid() bool {
	if ix == nil || ix.List == nil {
		return false
	}
	for i := 1; i < len(ix.List); i++ {
		if ix.List[i-1].LogiPage >= ix.List[i].LogiPage {
			return false
		}
	}
	return true
}

// find performs an exact-match binary search for logiPage, returning
// the matching entry and true, or the zero value and false. Runs in
// O(log n): the half-open search narrows until high == low, then one
// equality test against list[low] decides the result.
func (ix *ArchivalIndex) find(logiPage uint64) (IndexEntry, bool) {
	n := len(ix.List)
	if n == 0 {
		return IndexEntry{}, false
	}
	if logiPage < ix.List[0].LogiPage || logiPage > ix.List[n-1].LogiPage {
		return IndexEntry{}, false
	}

	low, high := 0, n-1
	for low < high {
		mid := low + (high-low)/2
		if ix.List[mid].LogiPage < logiPage {
			low = mid + 1
		} else {
			high = mid
		}
	}

	if ix.List[low].LogiPage == logiPage {
		return ix.List[low], true
	}
	return IndexEntry{}, false
}

// sortEntries sorts entries ascending by LogiPage in place. Exposed as
// a free function so merge can reuse it on freshly built slices.
func sortEntries(entries []IndexEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].LogiPage < entries[j].LogiPage })
}
