package onion

import (
	json "github.com/goccy/go-json"

	"github.com/jpl-au/onion/blockdevice"
)

// StoreTarget selects where the revision history is kept.
type StoreTarget int

const (
	// TargetOnion stores history in a separate ".onion" file. This is
	// the only supported target.
	TargetOnion StoreTarget = iota
	// TargetH5 stores history inside the canonical file itself. Always
	// rejected: embedding the history in the canonical file is out of
	// scope for this engine.
	TargetH5
)

// CreationFlags is a bitmask of onion-file creation options.
type CreationFlags uint32

const (
	// EnablePageAlignment requests that every onion-file write land on
	// a page_size boundary (header flag FlagPageAlignment).
	EnablePageAlignment CreationFlags = 1 << iota
	// EnableDivergentHistory reserves header flag FlagDivergentHistory
	// for a future branching-history feature. The flag is reserved on
	// disk; branching itself is not implemented.
	EnableDivergentHistory
)

// Config configures the engine.
type Config struct {
	// PageSize is the delta granularity; must be >= 1 and a power of
	// two. Used on Create, and on a read-write open that finds no onion
	// file and creates one; ignored when an onion file already exists
	// (the on-disk value wins).
	PageSize uint32

	// Device is the inner block-device implementation to use. Defaults
	// to blockdevice.Local{} when nil.
	Device blockdevice.Device

	// BackingConfig is passed through to Device.Open as access
	// properties for the underlying block device.
	BackingConfig blockdevice.AccessProperties

	// StoreTarget must be TargetOnion; TargetH5 is rejected.
	StoreTarget StoreTarget

	// CreationFlags controls page alignment and history-divergence
	// flags at creation time, including a read-write open that creates
	// a missing onion file. Ignored when an onion file already exists.
	CreationFlags CreationFlags

	// RevisionID selects which revision to open. LatestRevision opens
	// the newest.
	RevisionID uint64

	// Comment is stored with the new revision created by a read-write
	// session.
	Comment string

	// ReadAheadPages is a pure performance knob for the read path's
	// page-walk loop (0 disables read-ahead). It never changes
	// correctness, only how many following pages are spooled after each
	// page a read finds in the archival index (stopping at the first
	// page not in that index).
	ReadAheadPages uint32

	// Create requests the create-or-truncate flow instead of attaching
	// to an existing onion triad.
	Create bool

	// ReadWrite opens the file for writing; a new revision accumulates
	// and is committed on Close.
	ReadWrite bool
}

// validate checks the configuration fields the engine itself is
// responsible for enforcing, independent of on-disk state.
func (c *Config) validate() error {
	if c.StoreTarget == TargetH5 {
		return ErrStoreNotSupported
	}
	if c.Create {
		if _, err := log2PageSize(c.PageSize); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) device() blockdevice.Device {
	if c.Device != nil {
		return c.Device
	}
	return blockdevice.Local{}
}

// describeConfig below uses goccy/go-json as a
// faster drop-in for encoding/json. It serves the property-list
// surface and diagnostic dumps here, not the wire format itself, which
// stays fixed-width binary.

// describeConfig renders c as an indented JSON object for diagnostic
// tooling. Device is omitted since it is not serializable.
func describeConfig(c Config) ([]byte, error) {
	type wire struct {
		PageSize       uint32        `json:"page_size"`
		StoreTarget    StoreTarget   `json:"store_target"`
		CreationFlags  CreationFlags `json:"creation_flags"`
		RevisionID     uint64        `json:"revision_id"`
		Comment        string        `json:"comment"`
		ReadAheadPages uint32        `json:"read_ahead_pages"`
		Create         bool          `json:"create"`
		ReadWrite      bool          `json:"read_write"`
	}
	return json.MarshalIndent(wire{
		PageSize:       c.PageSize,
		StoreTarget:    c.StoreTarget,
		CreationFlags:  c.CreationFlags,
		RevisionID:     c.RevisionID,
		Comment:        c.Comment,
		ReadAheadPages: c.ReadAheadPages,
		Create:         c.Create,
		ReadWrite:      c.ReadWrite,
	}, "", "  ")
}
