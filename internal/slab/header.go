package slab

import (
	"encoding/binary"

	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// Fixed byte offsets within the encoded header, mirroring the field
// order of types.SlabHeader.
const (
	hdrOffMagic             = 0
	hdrOffVersion           = 8
	hdrOffAdmin             = 12
	hdrOffAdminBurned       = 44
	hdrOffDustBase          = 45
	hdrOffLastThrUpdateSlot = 53
	hdrOffCurrentSlot       = 61
	hdrEncodedLen           = 69
)

// EncodeHeader serializes a SlabHeader into its fixed wire layout. This is
// the persisted form written at the front of the slab; it is distinct
// from (and smaller than) HeaderLen, which is the in-memory
// unsafe.Sizeof of the Go struct used only for alignment arithmetic.
func EncodeHeader(h types.SlabHeader) []byte {
	buf := make([]byte, hdrEncodedLen)
	binary.LittleEndian.PutUint64(buf[hdrOffMagic:], h.Magic)
	binary.LittleEndian.PutUint32(buf[hdrOffVersion:], h.Version)
	copy(buf[hdrOffAdmin:hdrOffAdmin+32], h.Admin[:])
	if h.AdminBurned {
		buf[hdrOffAdminBurned] = 1
	}
	binary.LittleEndian.PutUint64(buf[hdrOffDustBase:], h.DustBase)
	binary.LittleEndian.PutUint64(buf[hdrOffLastThrUpdateSlot:], h.LastThrUpdateSlot)
	binary.LittleEndian.PutUint64(buf[hdrOffCurrentSlot:], h.CurrentSlot)
	return buf
}

// DecodeHeader parses a header previously written by EncodeHeader. It
// does not validate Magic/Version; callers should check those themselves
// before trusting the rest of the slab.
func DecodeHeader(buf []byte) (types.SlabHeader, bool) {
	if len(buf) < hdrEncodedLen {
		return types.SlabHeader{}, false
	}
	var h types.SlabHeader
	h.Magic = binary.LittleEndian.Uint64(buf[hdrOffMagic:])
	h.Version = binary.LittleEndian.Uint32(buf[hdrOffVersion:])
	copy(h.Admin[:], buf[hdrOffAdmin:hdrOffAdmin+32])
	h.AdminBurned = buf[hdrOffAdminBurned] != 0
	h.DustBase = binary.LittleEndian.Uint64(buf[hdrOffDustBase:])
	h.LastThrUpdateSlot = binary.LittleEndian.Uint64(buf[hdrOffLastThrUpdateSlot:])
	h.CurrentSlot = binary.LittleEndian.Uint64(buf[hdrOffCurrentSlot:])
	return h, true
}

// ValidMagicAndVersion reports whether a decoded header matches the
// current slab magic and version this build understands.
func ValidMagicAndVersion(h types.SlabHeader) bool {
	return h.Magic == types.SlabMagic && h.Version == types.SlabVersion
}
