package element

import (
	"fmt"
	"math/big"
)

// Int128 is a signed 128-bit integer, used for BigSumTree's aggregate
// (spec §3). Go has no native int128; math/big is the standard
// library's arbitrary-precision type and the only one available in the
// retrieved corpus (0xanonymeow-smt/go uses math/big for its index
// field elements), so arithmetic goes through *big.Int while the wire
// form stays a fixed 16-byte two's-complement big-endian integer.
type Int128 struct {
	v big.Int
}

// NewInt128 builds an Int128 from an int64.
func NewInt128(v int64) Int128 {
	var i Int128
	i.v.SetInt64(v)
	return i
}

// Add returns a + b.
func (a Int128) Add(b Int128) Int128 {
	var out Int128
	out.v.Add(&a.v, &b.v)
	return out
}

// Cmp compares a and b the way big.Int.Cmp does.
func (a Int128) Cmp(b Int128) int {
	return a.v.Cmp(&b.v)
}

func (a Int128) String() string {
	return a.v.String()
}

const int128Bytes = 16

var (
	int128Min = new(big.Int).Lsh(big.NewInt(1), 127) // -2^127 magnitude
	int128Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

// Bytes encodes a as a 16-byte big-endian two's-complement integer.
func (a Int128) Bytes() ([16]byte, error) {
	var out [16]byte
	if a.v.CmpAbs(int128Min) > 0 && a.v.Sign() < 0 {
		return out, fmt.Errorf("element: Int128 underflow")
	}
	if a.v.Sign() >= 0 && a.v.Cmp(int128Max) > 0 {
		return out, fmt.Errorf("element: Int128 overflow")
	}

	if a.v.Sign() >= 0 {
		b := a.v.Bytes()
		copy(out[int128Bytes-len(b):], b)
		return out, nil
	}

	// two's complement: 2^128 + v
	mod := new(big.Int).Lsh(big.NewInt(1), 128)
	twos := new(big.Int).Add(mod, &a.v)
	b := twos.Bytes()
	copy(out[int128Bytes-len(b):], b)
	return out, nil
}

// Int128FromBytes decodes a 16-byte big-endian two's-complement integer.
func Int128FromBytes(b []byte) (Int128, error) {
	var out Int128
	if len(b) != int128Bytes {
		return out, fmt.Errorf("element: Int128 requires %d bytes, got %d", int128Bytes, len(b))
	}
	magnitude := new(big.Int).SetBytes(b)
	if b[0] < 0x80 {
		out.v.Set(magnitude)
		return out, nil
	}
	mod := new(big.Int).Lsh(big.NewInt(1), 128)
	out.v.Sub(magnitude, mod)
	return out, nil
}
