// Revision index: the in-memory, write-side hashed mapping for pages
// touched in the current revision, before commit.
package onion

import "github.com/zeebo/xxh3"

// revisionIndexStartingSizeLog2 is the table's initial bucket count:
// 2^10 buckets, doubled on load-factor growth.
const revisionIndexStartingSizeLog2 = 10

type revIndexNode struct {
	entry IndexEntry
	next  *revIndexNode
}

// RevisionIndex is a chained hash table keyed by LogiPage, used only by
// the writer for the duration of a single write session.
type RevisionIndex struct {
	pageSizeLog2   uint32
	tableSizeLog2  uint32
	buckets        []*revIndexNode
	nEntries       uint64 // count of all chain nodes
	nKeysPopulated uint64 // count of non-empty buckets
}

// newRevisionIndex allocates a revision index for the given page size,
// starting at 2^10 empty buckets.
func newRevisionIndex(pageSize uint32) (*RevisionIndex, error) {
	log2, err := log2PageSize(pageSize)
	if err != nil {
		return nil, err
	}
	return &RevisionIndex{
		pageSizeLog2:  log2,
		tableSizeLog2: revisionIndexStartingSizeLog2,
		buckets:       make([]*revIndexNode, 1<<revisionIndexStartingSizeLog2),
	}, nil
}

func (ix *RevisionIndex) tableSize() uint64 { return uint64(1) << ix.tableSizeLog2 }

// bucketHash hashes logiPage with xxh3 and masks to the current table
// size. xxh3 gives a fast, well-distributed hash for an 8-byte integer
// key without the allocation overhead of a generic hash.Hash.
func (ix *RevisionIndex) bucketHash(logiPage uint64) uint64 {
	return computeHash(logiPage) & (ix.tableSize() - 1)
}

// find walks the bucket chain for logiPage.
func (ix *RevisionIndex) find(logiPage uint64) (IndexEntry, bool) {
	for n := ix.buckets[ix.bucketHash(logiPage)]; n != nil; n = n.next {
		if n.entry.LogiPage == logiPage {
			return n.entry, true
		}
	}
	return IndexEntry{}, false
}

// insert adds or overwrites entry. Insert is idempotent for equal
// (LogiPage, PhysAddr) pairs; a second insert with a different
// PhysAddr for the same LogiPage fails.
func (ix *RevisionIndex) insert(entry IndexEntry) error {
	if ix.nEntries >= 2*ix.tableSize() || ix.nKeysPopulated*2 >= ix.tableSize() {
		ix.resize()
	}

	key := ix.bucketHash(entry.LogiPage)
	head := ix.buckets[key]

	for n := head; n != nil; n = n.next {
		if n.entry.LogiPage == entry.LogiPage {
			if n.entry.PhysAddr != entry.PhysAddr {
				return newErr(KindInvalidArgument, "revision_index_insert",
					"logical page already mapped to a different physical address", nil)
			}
			n.entry.PhysAddr = entry.PhysAddr
			return nil
		}
	}

	node := &revIndexNode{entry: entry, next: head}
	if head == nil {
		ix.nKeysPopulated++
	}
	ix.buckets[key] = node
	ix.nEntries++
	return nil
}

// resize doubles the table size and rehashes every existing node into
// the new bucket array.
func (ix *RevisionIndex) resize() {
	newLog2 := ix.tableSizeLog2 + 1
	newSize := uint64(1) << newLog2
	newBuckets := make([]*revIndexNode, newSize)

	for _, head := range ix.buckets {
		for n := head; n != nil; {
			next := n.next
			key := computeHash(n.entry.LogiPage) & (newSize - 1)
			n.next = newBuckets[key]
			newBuckets[key] = n
			n = next
		}
	}

	ix.buckets = newBuckets
	ix.tableSizeLog2 = newLog2
	// nKeysPopulated is recomputed because multiple old buckets may
	// collapse into, or spread across, different new buckets.
	var populated uint64
	for _, head := range newBuckets {
		if head != nil {
			populated++
		}
	}
	ix.nKeysPopulated = populated
}

func computeHash(logiPage uint64) uint64 {
	var buf [8]byte
	putU64(buf[:], logiPage)
	return xxh3.Hash(buf[:])
}

// entries returns every entry currently held, in no particular order.
func (ix *RevisionIndex) entries() []IndexEntry {
	out := make([]IndexEntry, 0, ix.nEntries)
	for _, head := range ix.buckets {
		for n := head; n != nil; n = n.next {
			out = append(out, n.entry)
		}
	}
	return out
}

func (ix *RevisionIndex) empty() bool { return ix.nEntries == 0 }
