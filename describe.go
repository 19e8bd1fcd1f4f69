// Diagnostic dumps of the header, whole history, and the current
// revision record, rendered as indented JSON via goccy/go-json
// alongside the package's fixed-width binary codec.
package onion

import json "github.com/goccy/go-json"

// revisionSummary is the JSON-friendly projection of a RevisionRecord;
// ArchivalIndex is reduced to a count since the full page map is rarely
// useful in a human-facing dump.
type revisionSummary struct {
	RevisionID          uint64 `json:"revision_id"`
	ParentRevisionID    uint64 `json:"parent_revision_id"`
	TimeOfCreation      string `json:"time_of_creation"`
	LogiEOF             uint64 `json:"logi_eof"`
	PageSize            uint32 `json:"page_size"`
	UserID              uint32 `json:"user_id"`
	Username            string `json:"username"`
	UsernameFingerprint uint64 `json:"username_fingerprint"`
	Comment             string `json:"comment"`
	ArchivalPageCount   int    `json:"archival_page_count"`
}

type fileSummary struct {
	Header        headerSummary    `json:"header"`
	Revision      *revisionSummary `json:"revision,omitempty"`
	RevisionCount int64            `json:"revision_count"`
}

type headerSummary struct {
	Version          uint8  `json:"version"`
	WriteLocked      bool   `json:"write_locked"`
	DivergentHistory bool   `json:"divergent_history"`
	PageAligned      bool   `json:"page_aligned"`
	PageSize         uint32 `json:"page_size"`
	OriginEOF        uint64 `json:"origin_eof"`
	WholeHistoryAddr uint64 `json:"whole_history_addr"`
	WholeHistorySize uint64 `json:"whole_history_size"`
}

// Describe renders a diagnostic summary of f's header and the revision
// this handle targets (read-only) or is building (read-write), as
// indented JSON. It never returns an error from malformed in-memory
// state since Describe is only callable on an already-open File.
func (f *File) Describe() ([]byte, error) {
	h := f.header
	summary := fileSummary{
		Header: headerSummary{
			Version:          h.Version,
			WriteLocked:      h.hasFlag(FlagWriteLock),
			DivergentHistory: h.hasFlag(FlagDivergentHistory),
			PageAligned:      h.hasFlag(FlagPageAlignment),
			PageSize:         h.PageSize,
			OriginEOF:        h.OriginEOF,
			WholeHistoryAddr: h.WholeHistoryAddr,
			WholeHistorySize: h.WholeHistorySize,
		},
		RevisionCount: f.wholeHistory.NRevisions,
	}

	if rev := f.revRecord; rev != nil {
		summary.Revision = &revisionSummary{
			RevisionID:          rev.RevisionID,
			ParentRevisionID:    rev.ParentRevisionID,
			TimeOfCreation:      rev.TimeOfCreation,
			LogiEOF:             rev.LogiEOF,
			PageSize:            rev.PageSize,
			UserID:              rev.UserID,
			Username:            rev.Username,
			UsernameFingerprint: usernameFingerprint(rev.Username),
			Comment:             rev.Comment,
			ArchivalPageCount:   len(rev.ArchivalIndex.List),
		}
	}

	return json.MarshalIndent(summary, "", "  ")
}
