package onion

import "testing"

func TestMergeRevisionIntoArchivalSupersedes(t *testing.T) {
	archival := &ArchivalIndex{
		PageSizeLog2: 12,
		List: []IndexEntry{
			{LogiPage: 1, PhysAddr: 1000},
			{LogiPage: 2, PhysAddr: 2000},
			{LogiPage: 3, PhysAddr: 3000},
		},
	}

	rev, _ := newRevisionIndex(4096)
	_ = rev.insert(IndexEntry{LogiPage: 2, PhysAddr: 9000}) // supersedes page 2
	_ = rev.insert(IndexEntry{LogiPage: 5, PhysAddr: 9500}) // new page

	if err := mergeRevisionIntoArchival(archival, rev); err != nil {
		t.Fatalf("merge: %v", err)
	}

	want := map[uint64]uint64{1: 1000, 2: 9000, 3: 3000, 5: 9500}
	if len(archival.List) != len(want) {
		t.Fatalf("len(archival.List) = %d, want %d", len(archival.List), len(want))
	}
	for i := 1; i < len(archival.List); i++ {
		if archival.List[i-1].LogiPage >= archival.List[i].LogiPage {
			t.Fatalf("merged archival index is not sorted: %+v", archival.List)
		}
	}
	for _, e := range archival.List {
		if want[e.LogiPage] != e.PhysAddr {
			t.Fatalf("page %d maps to %d, want %d", e.LogiPage, e.PhysAddr, want[e.LogiPage])
		}
	}
}

func TestMergeRevisionIntoArchivalEmptyRevision(t *testing.T) {
	archival := &ArchivalIndex{
		PageSizeLog2: 12,
		List:         []IndexEntry{{LogiPage: 1, PhysAddr: 1000}},
	}
	rev, _ := newRevisionIndex(4096)

	if err := mergeRevisionIntoArchival(archival, rev); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(archival.List) != 1 || archival.List[0].PhysAddr != 1000 {
		t.Fatalf("merging an empty revision index mutated the archival index: %+v", archival.List)
	}
}

func TestMergeRevisionIntoArchivalPageSizeMismatch(t *testing.T) {
	archival := &ArchivalIndex{PageSizeLog2: 12}
	rev, _ := newRevisionIndex(8192) // page_size_log2 = 13
	_ = rev.insert(IndexEntry{LogiPage: 0, PhysAddr: 0})

	if err := mergeRevisionIntoArchival(archival, rev); err == nil {
		t.Fatalf("merge accepted mismatched page sizes")
	}
}
