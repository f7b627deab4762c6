package molecule

import (
	"encoding/binary"
	"encoding/hex"
	"math/bits"

	"github.com/bits-and-blooms/bitset"

	"github.com/turtacn/molsearch/pkg/errors"
)

// Fingerprint is an immutable bit vector of fixed length.  Operations that
// combine two fingerprints expect equal lengths.
type Fingerprint struct {
	bits *bitset.BitSet
	n    int
}

func newFingerprint(b *bitset.BitSet, n int) *Fingerprint {
	return &Fingerprint{bits: b, n: n}
}

// NewFingerprint returns an n-bit fingerprint with the given positions set.
func NewFingerprint(n int, positions ...int) (*Fingerprint, error) {
	if n <= 0 {
		return nil, errors.Newf(errors.CodeInvalidFingerprint, "fingerprint length must be positive, got %d", n)
	}
	b := bitset.New(uint(n))
	for _, p := range positions {
		if p < 0 || p >= n {
			return nil, errors.Newf(errors.CodeInvalidFingerprint, "bit %d outside [0,%d)", p, n)
		}
		b.Set(uint(p))
	}
	return newFingerprint(b, n), nil
}

// FingerprintFromBytes restores a fingerprint from the little-endian byte
// view produced by Bytes.
func FingerprintFromBytes(data []byte, n int) (*Fingerprint, error) {
	if n <= 0 {
		return nil, errors.Newf(errors.CodeInvalidFingerprint, "fingerprint length must be positive, got %d", n)
	}
	if len(data) != (n+7)/8 {
		return nil, errors.Newf(errors.CodeInvalidFingerprint, "expected %d bytes for %d bits, got %d", (n+7)/8, n, len(data))
	}
	b := bitset.New(uint(n))
	for i, by := range data {
		for by != 0 {
			pos := i*8 + bits.TrailingZeros8(by)
			if pos >= n {
				return nil, errors.Newf(errors.CodeInvalidFingerprint, "bit %d set beyond length %d", pos, n)
			}
			b.Set(uint(pos))
			by &= by - 1
		}
	}
	return newFingerprint(b, n), nil
}

// Len returns the fingerprint length N.
func (f *Fingerprint) Len() int { return f.n }

// Get reports whether bit i is set.  Out-of-range indices read as unset.
func (f *Fingerprint) Get(i int) bool {
	if i < 0 || i >= f.n {
		return false
	}
	return f.bits.Test(uint(i))
}

// And returns the intersection.
func (f *Fingerprint) And(o *Fingerprint) *Fingerprint {
	return newFingerprint(f.bits.Intersection(o.bits), f.n)
}

// Or returns the union.
func (f *Fingerprint) Or(o *Fingerprint) *Fingerprint {
	u := f.bits.Union(o.bits)
	return newFingerprint(u, f.n)
}

// Popcount returns the number of set bits.
func (f *Fingerprint) Popcount() int { return int(f.bits.Count()) }

// Contains reports whether every bit of o is also set in f, the necessary
// condition for f's graph to contain o's graph.
func (f *Fingerprint) Contains(o *Fingerprint) bool {
	if o == nil || o.n != f.n {
		return false
	}
	return f.bits.IsSuperSet(o.bits)
}

// Tanimoto returns |f ∩ o| / |f ∪ o|.  Two empty fingerprints score 0.
// Mismatched lengths score 0.
func (f *Fingerprint) Tanimoto(o *Fingerprint) float64 {
	if o == nil || o.n != f.n {
		return 0
	}
	union := f.bits.UnionCardinality(o.bits)
	if union == 0 {
		return 0
	}
	return float64(f.bits.IntersectionCardinality(o.bits)) / float64(union)
}

// Bytes returns the byte view: bit i lives in byte i/8 at position i%8.
func (f *Fingerprint) Bytes() []byte {
	out := make([]byte, (f.n+7)/8)
	var word [8]byte
	for wi, w := range f.bits.Bytes() {
		binary.LittleEndian.PutUint64(word[:], w)
		copy(out[min(wi*8, len(out)):], word[:])
	}
	return out
}

// Ones returns the set bit positions in ascending order.
func (f *Fingerprint) Ones() []int {
	out := make([]int, 0, f.Popcount())
	for i, ok := f.bits.NextSet(0); ok; i, ok = f.bits.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// Equal reports bitwise equality.
func (f *Fingerprint) Equal(o *Fingerprint) bool {
	return o != nil && f.n == o.n && f.bits.Equal(o.bits)
}

// String returns the hex encoding of Bytes.
func (f *Fingerprint) String() string {
	return hex.EncodeToString(f.Bytes())
}
