package trees

import (
	"encoding/binary"
	"fmt"

	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage"
)

const (
	ctFrontierKey = "__ct_data__"
	ctDepth       = 32
)

// sinsemillaEmpty holds the precomputed all-empty-subtree hash at each
// depth 0..32 of the commitment frontier. EMPTY_SINSEMILLA_ROOT (spec
// §4.8.4) is sinsemillaEmpty[ctDepth].
var sinsemillaEmpty = buildSinsemillaEmpty()

func buildSinsemillaEmpty() [ctDepth + 1]hash.Digest {
	var levels [ctDepth + 1]hash.Digest
	levels[0] = hash.Blake3([]byte("grovedb-sinsemilla-empty-leaf"))
	for i := 0; i < ctDepth; i++ {
		levels[i+1] = sinCombine(levels[i], levels[i])
	}
	return levels
}

// EmptySinsemillaRoot is the anchor of a freshly created CommitmentTree.
func EmptySinsemillaRoot() hash.Digest {
	return sinsemillaEmpty[ctDepth]
}

// sinCombine stands in for the real Sinsemilla-over-Pallas hash this
// tree's frontier uses in production (out of scope: no Pallas/Halo2
// arithmetic in this corpus, see the design notes). It keeps the same
// domain separation discipline as hash.CombineHash, tagged so a
// Sinsemilla combine is never confused with a Blake3 one on disk.
func sinCombine(a, b hash.Digest) hash.Digest {
	var buf [1 + 2*hash.Size]byte
	buf[0] = 0x53 // 'S'
	copy(buf[1:1+hash.Size], a[:])
	copy(buf[1+hash.Size:], b[:])
	return hash.Blake3(buf[:])
}

type ctPeak struct {
	height uint8
	hash   hash.Digest
}

// CommitmentTree is a depth-32 Sinsemilla incremental Merkle frontier
// backed by a BulkAppendTree of (cmx, rho, ciphertext) records (spec
// §4.8.4). The frontier tracks one completed-subtree hash per set bit
// of the append count, exactly as MMR's peak list does; anchor() folds
// them against precomputed empties up to depth 32.
type CommitmentTree struct {
	ctx      *storage.Context
	records  *BulkAppend
	memoSize int
	position uint64
	hasLeaf  bool
	peaks    []ctPeak
}

// OpenCommitmentTree loads (or starts) a CommitmentTree. memoSize fixes
// the ciphertext payload length every insert must match.
func OpenCommitmentTree(ctx *storage.Context, chunkPower uint8, memoSize int) (*CommitmentTree, error) {
	records, err := OpenBulkAppend(ctx, chunkPower)
	if err != nil {
		return nil, err
	}
	ct := &CommitmentTree{ctx: ctx, records: records, memoSize: memoSize}

	raw, err := ctx.Get(storage.Main, []byte(ctFrontierKey))
	if err == storage.ErrNotFound {
		return ct, nil
	}
	if err != nil {
		return nil, err
	}
	if err := ct.decodeFrontier(raw); err != nil {
		return nil, err
	}
	return ct, nil
}

// Count returns the number of records inserted.
func (ct *CommitmentTree) Count() uint64 { return ct.records.TotalCount() }

// Anchor folds the current frontier peaks against precomputed empties
// up to depth 32, costing exactly 32 Sinsemilla hashes (spec §4.8.4).
// Peaks are kept tallest-first (mirroring MMR's peak list), so the
// fold walks from the end of the slice (the shortest, freshest peak)
// toward the start.
func (ct *CommitmentTree) Anchor() (hash.Digest, cost.OperationCost) {
	var oc cost.OperationCost
	for i := 0; i < ctDepth; i++ {
		oc.AddSinsemilla()
	}
	return anchorFromPeaks(ct.peaks), oc
}

// anchorFromPeaks folds a frontier peak list against the precomputed
// empties, independent of any live CommitmentTree, so a proof verifier
// can replay Anchor's fold over a disclosed peak list.
func anchorFromPeaks(peaks []ctPeak) hash.Digest {
	idx := len(peaks) - 1
	acc := sinsemillaEmpty[0]
	if idx >= 0 && peaks[idx].height == 0 {
		acc = peaks[idx].hash
		idx--
	}
	for level := 0; level < ctDepth; level++ {
		if idx >= 0 && int(peaks[idx].height) == level+1 {
			acc = sinCombine(peaks[idx].hash, acc)
			idx--
		} else {
			acc = sinCombine(acc, sinsemillaEmpty[level])
		}
	}
	return acc
}

// CombinedRoot is the child hash this tree feeds its parent Merk node
// (spec §4.8.4): Blake3("ct_state" || sinsemilla_root || bulk_state_root),
// folding the Sinsemilla frontier's anchor together with the backing
// BulkAppendTree's own state root so either half's history is bound
// into the one hash the grove layer propagates upward.
func (ct *CommitmentTree) CombinedRoot() (hash.Digest, cost.OperationCost) {
	anchor, oc := ct.Anchor()
	bulkRoot := ct.records.StateRoot()
	buf := make([]byte, 0, len("ct_state")+2*hash.Size)
	buf = append(buf, "ct_state"...)
	buf = append(buf, anchor[:]...)
	buf = append(buf, bulkRoot[:]...)
	return hash.Blake3(buf), oc
}

// Insert appends a (cmx, rho, ciphertext) record: cmx feeds the
// Sinsemilla frontier, the full record is appended to the backing
// BulkAppendTree for later retrieval by position.
func (ct *CommitmentTree) Insert(cmx, rho hash.Digest, ciphertext []byte) (hash.Digest, uint64, cost.OperationCost, error) {
	var oc cost.OperationCost
	if len(ciphertext) != ct.memoSize {
		return hash.Zero, 0, oc, fmt.Errorf("trees: ciphertext length %d, want %d", len(ciphertext), ct.memoSize)
	}

	record := make([]byte, 0, 2*hash.Size+len(ciphertext))
	record = append(record, cmx[:]...)
	record = append(record, rho[:]...)
	record = append(record, ciphertext...)
	_, position, sub, err := ct.records.Append(record)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, 0, oc, err
	}

	cur := ctPeak{height: 0, hash: cmx}
	for len(ct.peaks) > 0 && ct.peaks[len(ct.peaks)-1].height == cur.height {
		left := ct.peaks[len(ct.peaks)-1]
		ct.peaks = ct.peaks[:len(ct.peaks)-1]
		cur = ctPeak{height: left.height + 1, hash: sinCombine(left.hash, cur.hash)}
		oc.AddSinsemilla()
	}
	ct.peaks = append(ct.peaks, cur)
	ct.hasLeaf = true
	ct.position = position

	if err := ct.saveFrontier(); err != nil {
		return hash.Zero, 0, oc, err
	}
	root, rootCost := ct.Anchor()
	oc.Add(rootCost)
	return root, position, oc, nil
}

// GetValue returns (cmx, rho, ciphertext) for a previously inserted position.
func (ct *CommitmentTree) GetValue(position uint64) (cmx, rho hash.Digest, ciphertext []byte, oc cost.OperationCost, err error) {
	record, sub, err := ct.records.GetValue(position)
	oc.Add(sub)
	if err != nil {
		return cmx, rho, nil, oc, err
	}
	if len(record) != 2*hash.Size+ct.memoSize {
		return cmx, rho, nil, oc, fmt.Errorf("trees: corrupt commitment record length %d", len(record))
	}
	copy(cmx[:], record[:hash.Size])
	copy(rho[:], record[hash.Size:2*hash.Size])
	ciphertext = record[2*hash.Size:]
	return cmx, rho, ciphertext, oc, nil
}

func (ct *CommitmentTree) saveFrontier() error {
	return ct.ctx.Put(storage.Main, []byte(ctFrontierKey), ct.encodeFrontier())
}

// encodeFrontier follows spec §4.8.4's byte layout in spirit: a
// has_frontier flag, position, and the peak list (the freshest peak
// serves as the spec's single "leaf" field, the rest as "ommers";
// storing per-peak heights alongside the hashes, rather than the
// spec's implicit height-from-bit-position encoding, trades a few
// bytes for a simpler, self-describing decode).
func (ct *CommitmentTree) encodeFrontier() []byte {
	buf := make([]byte, 0, 1+8+1+len(ct.peaks)*(1+hash.Size))
	if ct.hasLeaf {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], ct.position)
	buf = append(buf, u64[:]...)
	buf = append(buf, uint8(len(ct.peaks)))
	for _, p := range ct.peaks {
		buf = append(buf, p.height)
		buf = append(buf, p.hash[:]...)
	}
	return buf
}

func (ct *CommitmentTree) decodeFrontier(raw []byte) error {
	if len(raw) < 10 {
		return fmt.Errorf("trees: truncated commitment frontier")
	}
	ct.hasLeaf = raw[0] == 1
	ct.position = binary.BigEndian.Uint64(raw[1:9])
	count := int(raw[9])
	off := 10
	ct.peaks = make([]ctPeak, 0, count)
	for i := 0; i < count; i++ {
		if off+1+hash.Size > len(raw) {
			return fmt.Errorf("trees: truncated commitment frontier peak %d", i)
		}
		p := ctPeak{height: raw[off]}
		off++
		copy(p.hash[:], raw[off:off+hash.Size])
		off += hash.Size
		ct.peaks = append(ct.peaks, p)
	}
	return nil
}
