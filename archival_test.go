package onion

import "testing"

func TestArchivalIndexFind(t *testing.T) {
	ix := &ArchivalIndex{
		PageSizeLog2: 12,
		List: []IndexEntry{
			{LogiPage: 1, PhysAddr: 100},
			{LogiPage: 4, PhysAddr: 200},
			{LogiPage: 9, PhysAddr: 300},
			{LogiPage: 20, PhysAddr: 400},
		},
	}

	for _, tc := range []struct {
		logiPage uint64
		wantAddr uint64
		wantOK   bool
	}{
		{1, 100, true},
		{4, 200, true},
		{9, 300, true},
		{20, 400, true},
		{0, 0, false},
		{5, 0, false},
		{21, 0, false},
	} {
		e, ok := ix.find(tc.logiPage)
		if ok != tc.wantOK {
			t.Fatalf("find(%d) ok = %v, want %v", tc.logiPage, ok, tc.wantOK)
		}
		if ok && e.PhysAddr != tc.wantAddr {
			t.Fatalf("find(%d).PhysAddr = %d, want %d", tc.logiPage, e.PhysAddr, tc.wantAddr)
		}
	}
}

func TestArchivalIndexFindEmpty(t *testing.T) {
	ix := newArchivalIndex(12)
	if _, ok := ix.find(0); ok {
		t.Fatalf("find on empty index returned ok = true")
	}
}

func TestArchivalIndexIsValid(t *testing.T) {
	valid := &ArchivalIndex{List: []IndexEntry{{LogiPage: 1}, {LogiPage: 2}, {LogiPage: 3}}}
	if !valid.isValid() {
		t.Fatalf("isValid() = false for a strictly ascending list")
	}

	unsorted := &ArchivalIndex{List: []IndexEntry{{LogiPage: 2}, {LogiPage: 1}}}
	if unsorted.isValid() {
		t.Fatalf("isValid() = true for an unsorted list")
	}

	duplicate := &ArchivalIndex{List: []IndexEntry{{LogiPage: 1}, {LogiPage: 1}}}
	if duplicate.isValid() {
		t.Fatalf("isValid() = true for a list with a duplicate key")
	}

	var nilList *ArchivalIndex = &ArchivalIndex{}
	if nilList.isValid() {
		t.Fatalf("isValid() = true for a nil List")
	}
}

func TestSortEntries(t *testing.T) {
	entries := []IndexEntry{{LogiPage: 3}, {LogiPage: 1}, {LogiPage: 2}}
	sortEntries(entries)
	for i := 1; i < len(entries); i++ {
		if entries[i-1].LogiPage >= entries[i].LogiPage {
			t.Fatalf("sortEntries did not produce ascending order: %+v", entries)
		}
	}
}
