package element

import (
	"encoding/binary"
	"fmt"
)

// writeBytes appends a big-endian uint32 length prefix followed by b,
// matching the bit-exact big-endian wire format spec §6 requires.
func writeBytes(buf []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, b...)
	return buf
}

// readBytes reads a length-prefixed byte string starting at buf[off],
// returning the bytes and the offset just past them.
func readBytes(buf []byte, off int) ([]byte, int, error) {
	if off+4 > len(buf) {
		return nil, 0, fmt.Errorf("element: truncated length prefix at offset %d", off)
	}
	n := int(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	if n < 0 || off+n > len(buf) {
		return nil, 0, fmt.Errorf("element: truncated payload at offset %d (want %d bytes)", off, n)
	}
	return buf[off : off+n], off + n, nil
}

func writeOptionalBytes(buf []byte, present bool, b []byte) []byte {
	if !present {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return writeBytes(buf, b)
}

func readOptionalBytes(buf []byte, off int) ([]byte, bool, int, error) {
	if off+1 > len(buf) {
		return nil, false, 0, fmt.Errorf("element: truncated optional flag at offset %d", off)
	}
	present := buf[off] != 0
	off++
	if !present {
		return nil, false, off, nil
	}
	b, off, err := readBytes(buf, off)
	return b, true, off, err
}

func writeUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func readUint64(buf []byte, off int) (uint64, int, error) {
	if off+8 > len(buf) {
		return 0, 0, fmt.Errorf("element: truncated uint64 at offset %d", off)
	}
	return binary.BigEndian.Uint64(buf[off : off+8]), off + 8, nil
}

func writeInt64(buf []byte, v int64) []byte {
	return writeUint64(buf, uint64(v))
}

func readInt64(buf []byte, off int) (int64, int, error) {
	v, off, err := readUint64(buf, off)
	return int64(v), off, err
}

func writeUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func readUint32(buf []byte, off int) (uint32, int, error) {
	if off+4 > len(buf) {
		return 0, 0, fmt.Errorf("element: truncated uint32 at offset %d", off)
	}
	return binary.BigEndian.Uint32(buf[off : off+4]), off + 4, nil
}

func writeOptionalUint8(buf []byte, v *uint8) []byte {
	if v == nil {
		return append(buf, 0)
	}
	return append(buf, 1, *v)
}

func readOptionalUint8(buf []byte, off int) (*uint8, int, error) {
	if off+1 > len(buf) {
		return nil, 0, fmt.Errorf("element: truncated optional uint8 flag at offset %d", off)
	}
	present := buf[off] != 0
	off++
	if !present {
		return nil, off, nil
	}
	if off+1 > len(buf) {
		return nil, 0, fmt.Errorf("element: truncated uint8 at offset %d", off)
	}
	v := buf[off]
	return &v, off + 1, nil
}

func writeUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func readUint16(buf []byte, off int) (uint16, int, error) {
	if off+2 > len(buf) {
		return 0, 0, fmt.Errorf("element: truncated uint16 at offset %d", off)
	}
	return binary.BigEndian.Uint16(buf[off : off+2]), off + 2, nil
}
