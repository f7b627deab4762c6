// Package codebook implements the screening ensemble: random 8-bit
// projections of fingerprint space with live per-code document counts.
package codebook

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/pkg/errors"
)

const (
	// K is the number of dictionary bits per codebook.
	K = 8
	// Codes is the number of distinct projected codes.
	Codes = 1 << K
)

var equivalence [Codes][]uint8

func init() {
	for c := 1; c < Codes; c++ {
		for sup := 1; sup < Codes; sup++ {
			if sup&c == c {
				equivalence[c] = append(equivalence[c], uint8(sup))
			}
		}
	}
}

// Equivalence returns every non-zero code that is a bitwise superset of c.
// Code 0 carries no information and yields nil.  The returned slice is
// shared and must not be modified.
func Equivalence(c uint8) []uint8 {
	return equivalence[c]
}

// Record is the persisted form of a codebook.  Counts holds codes 1..255.
type Record struct {
	ID         string  `json:"id"`
	Dictionary []int   `json:"dictionary"`
	Counts     []int64 `json:"counts"`
}

// Codebook projects fingerprints onto K dictionary bits and tracks how many
// indexed documents carry each projected code.  The dictionary is immutable;
// counts are guarded by the codebook's own mutex.
type Codebook struct {
	id         string
	dictionary [K]int
	nbits      int

	mu     sync.Mutex
	counts [Codes]int64
}

// New creates a codebook with a dictionary of K distinct bit positions in
// [0, nbits) sampled from rnd.  An empty id is replaced by a random UUID
// drawn from rnd.
func New(id string, nbits int, rnd *rand.Rand) (*Codebook, error) {
	if nbits < K {
		return nil, errors.Newf(errors.CodeCodebookInvalid, "fingerprint length %d is shorter than %d dictionary bits", nbits, K)
	}
	if rnd == nil {
		return nil, errors.New(errors.CodeInvalidParam, "random source is required")
	}
	if id == "" {
		u, err := uuid.NewRandomFromReader(rnd)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "generate codebook id")
		}
		id = u.String()
	}
	cb := &Codebook{id: id, nbits: nbits}
	picked := make(map[int]struct{}, K)
	for i := 0; i < K; {
		b := rnd.Intn(nbits)
		if _, dup := picked[b]; dup {
			continue
		}
		picked[b] = struct{}{}
		cb.dictionary[i] = b
		i++
	}
	return cb, nil
}

// FromRecord restores a codebook from its persisted record.
func FromRecord(rec Record, nbits int) (*Codebook, error) {
	if rec.ID == "" {
		return nil, errors.New(errors.CodeCodebookInvalid, "codebook id is empty")
	}
	if len(rec.Dictionary) != K {
		return nil, errors.Newf(errors.CodeCodebookInvalid, "codebook %s: dictionary has %d entries, want %d", rec.ID, len(rec.Dictionary), K)
	}
	if len(rec.Counts) != Codes-1 {
		return nil, errors.Newf(errors.CodeCodebookInvalid, "codebook %s: %d counts, want %d", rec.ID, len(rec.Counts), Codes-1)
	}
	cb := &Codebook{id: rec.ID, nbits: nbits}
	seen := make(map[int]struct{}, K)
	for i, b := range rec.Dictionary {
		if b < 0 || b >= nbits {
			return nil, errors.Newf(errors.CodeCodebookInvalid, "codebook %s: bit %d outside [0,%d)", rec.ID, b, nbits)
		}
		if _, dup := seen[b]; dup {
			return nil, errors.Newf(errors.CodeCodebookInvalid, "codebook %s: duplicate bit %d", rec.ID, b)
		}
		seen[b] = struct{}{}
		cb.dictionary[i] = b
	}
	for i, n := range rec.Counts {
		if n < 0 {
			return nil, errors.Newf(errors.CodeCodebookInvalid, "codebook %s: negative count for code %d", rec.ID, i+1)
		}
		cb.counts[i+1] = n
	}
	return cb, nil
}

// ID returns the codebook identifier.
func (cb *Codebook) ID() string { return cb.id }

// Dictionary returns a copy of the sampled bit positions.
func (cb *Codebook) Dictionary() []int {
	out := make([]int, K)
	copy(out, cb.dictionary[:])
	return out
}

// Encode projects fp onto the dictionary: bit i of the code is set iff
// fp has dictionary[i] set.
func (cb *Codebook) Encode(fp *molecule.Fingerprint) uint8 {
	var code uint8
	for i, b := range cb.dictionary {
		if fp.Get(b) {
			code |= 1 << uint(i)
		}
	}
	return code
}

// Apply returns the codes a document must carry to possibly contain fp, or
// nil when fp projects to code 0.
func (cb *Codebook) Apply(fp *molecule.Fingerprint) []uint8 {
	return Equivalence(cb.Encode(fp))
}

// Incr records one more document with the given code.  Code 0 is not
// tracked.
func (cb *Codebook) Incr(code uint8) {
	if code == 0 {
		return
	}
	cb.mu.Lock()
	cb.counts[code]++
	cb.mu.Unlock()
}

// Decr records one fewer document with the given code.  Counts never drop
// below zero.
func (cb *Codebook) Decr(code uint8) {
	if code == 0 {
		return
	}
	cb.mu.Lock()
	if cb.counts[code] > 0 {
		cb.counts[code]--
	}
	cb.mu.Unlock()
}

// SetCount overwrites the count for code.
func (cb *Codebook) SetCount(code uint8, n int64) {
	if code == 0 {
		return
	}
	cb.mu.Lock()
	cb.counts[code] = n
	cb.mu.Unlock()
}

// Count returns the number of documents whose own code is exactly code.
func (cb *Codebook) Count(code uint8) int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts[code]
}

// Estimate returns the number of documents that survive screening for a
// query projecting to code.
func (cb *Codebook) Estimate(code uint8) int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	var sum int64
	for _, c := range equivalence[code] {
		sum += cb.counts[c]
	}
	return sum
}

// Term returns the store term for code under this codebook.
func (cb *Codebook) Term(code uint8) string {
	return FormatTerm(cb.id, code)
}

// FormatTerm builds the "<id>:<hex code>" store term.
func FormatTerm(id string, code uint8) string {
	return fmt.Sprintf("%s:%02x", id, code)
}

// Record snapshots the codebook for persistence.
func (cb *Codebook) Record() Record {
	rec := Record{
		ID:         cb.id,
		Dictionary: cb.Dictionary(),
		Counts:     make([]int64, Codes-1),
	}
	cb.mu.Lock()
	copy(rec.Counts, cb.counts[1:])
	cb.mu.Unlock()
	return rec
}

func (cb *Codebook) replaceCounts(counts *[Codes]int64) {
	cb.mu.Lock()
	cb.counts = *counts
	cb.mu.Unlock()
}
