package blockdevice

import (
	"context"
	"fmt"
	"os"
)

// Local is a plain-filesystem Device implementation. The block device
// is an external collaborator the engine is built against, not owned
// by it, but the package needs one concrete, buildable, testable
// implementation behind that interface.
type Local struct{}

// localHandle wraps an *os.File and tracks the reserved EOA, which may
// exceed the file's actual OS-level size (EOF) between a SetEOA call
// and the next Write that extends the file.
type localHandle struct {
	f   *os.File
	eoa uint64
}

func (h *localHandle) Close(_ context.Context) error {
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}

// Open implements Device.
func (Local) Open(_ context.Context, path string, flag Flag, _ AccessProperties, maxAddr uint64) (Handle, error) {
	var f *os.File
	var err error

	switch flag {
	case FlagCreateTruncate:
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	case FlagReadWrite:
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	case FlagReadOnly:
		f, err = os.OpenFile(path, os.O_RDONLY, 0o644)
	default:
		return nil, fmt.Errorf("blockdevice: unknown flag %d", flag)
	}
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	_ = maxAddr // advisory only for the local backend

	return &localHandle{f: f, eoa: uint64(info.Size())}, nil
}

// Close implements Device.
func (Local) Close(ctx context.Context, h Handle) error {
	return h.Close(ctx)
}

// Read implements Device.
func (Local) Read(_ context.Context, h Handle, _ Kind, _ AccessProperties, offset uint64, out []byte) error {
	lh, ok := h.(*localHandle)
	if !ok || lh.f == nil {
		return fmt.Errorf("blockdevice: invalid or closed handle")
	}
	if len(out) == 0 {
		return nil
	}
	_, err := lh.f.ReadAt(out, int64(offset))
	return err
}

// Write implements Device.
func (Local) Write(_ context.Context, h Handle, _ Kind, _ AccessProperties, offset uint64, in []byte) error {
	lh, ok := h.(*localHandle)
	if !ok || lh.f == nil {
		return fmt.Errorf("blockdevice: invalid or closed handle")
	}
	if len(in) == 0 {
		return nil
	}
	if _, err := lh.f.WriteAt(in, int64(offset)); err != nil {
		return err
	}
	end := offset + uint64(len(in))
	if end > lh.eoa {
		lh.eoa = end
	}
	return nil
}

// GetEOA implements Device.
func (Local) GetEOA(_ context.Context, h Handle, _ Kind) (uint64, error) {
	lh, ok := h.(*localHandle)
	if !ok || lh.f == nil {
		return 0, fmt.Errorf("blockdevice: invalid or closed handle")
	}
	return lh.eoa, nil
}

// SetEOA implements Device.
func (Local) SetEOA(_ context.Context, h Handle, _ Kind, addr uint64) error {
	lh, ok := h.(*localHandle)
	if !ok || lh.f == nil {
		return fmt.Errorf("blockdevice: invalid or closed handle")
	}
	lh.eoa = addr
	return nil
}

// GetEOF implements Device.
func (Local) GetEOF(_ context.Context, h Handle, _ Kind) (uint64, error) {
	lh, ok := h.(*localHandle)
	if !ok || lh.f == nil {
		return 0, fmt.Errorf("blockdevice: invalid or closed handle")
	}
	info, err := lh.f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}
