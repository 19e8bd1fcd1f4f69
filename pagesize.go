package onion

import "math/bits"

// log2PageSize validates that pageSize is a positive power of two and
// returns its base-2 logarithm. A non-power-of-two page size cannot be
// expressed as a shift count and is rejected outright.
func log2PageSize(pageSize uint32) (uint32, error) {
	if pageSize == 0 {
		return 0, newErr(KindInvalidArgument, "log2_page_size", "page size must be non-zero", nil)
	}
	if pageSize&(pageSize-1) != 0 {
		return 0, newErr(KindInvalidArgument, "log2_page_size", "page size must be a power of two", nil)
	}
	return uint32(bits.TrailingZeros32(pageSize)), nil
}

// pageAlign rounds addr up to the next multiple of pageSize. pageSize
// must already be validated as a power of two.
func pageAlign(addr uint64, pageSize uint32) uint64 {
	ps := uint64(pageSize)
	return (addr + ps - 1) &^ (ps - 1)
}
