// Merge folds the write-side revision index into the read-side archival
// index at commit time. Cost is O((R+A) log(R+A)); acceptable since a
// merge happens at most once per session, on close.
package onion

func mergeRevisionIntoArchival(archival *ArchivalIndex, rev *RevisionIndex) error {
	if archival.PageSizeLog2 != rev.pageSizeLog2 {
		return newErr(KindInternal, "merge", "archival and revision index page sizes differ", nil)
	}

	if rev.empty() {
		return nil
	}

	// Step 1: copy and sort the revision index's entries.
	fresh := rev.entries()
	sortEntries(fresh)

	freshKeys := make(map[uint64]struct{}, len(fresh))
	for _, e := range fresh {
		freshKeys[e.LogiPage] = struct{}{}
	}

	// Step 2: keep archival entries not superseded by a fresh one.
	kept := make([]IndexEntry, 0, len(archival.List))
	for _, e := range archival.List {
		if _, shadowed := freshKeys[e.LogiPage]; !shadowed {
			kept = append(kept, e)
		}
	}

	// Step 3: concatenate and sort.
	merged := make([]IndexEntry, 0, len(fresh)+len(kept))
	merged = append(merged, fresh...)
	merged = append(merged, kept...)
	sortEntries(merged)

	archival.List = merged
	return nil
}
