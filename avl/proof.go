package avl

import (
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/hash"
)

// ProofNodeKind discriminates what a ProofOp's Push/PushInverted node
// carries (spec §4.9.1's Node variants). KVDigest is kept in the enum
// for wire compatibility with the spec's table but is never produced
// by Prove: range-query pruning already makes a non-matching key's
// presence or absence provable from KVHash alone, without disclosing
// neighbouring keys (see the V0 Merk proofs entry of DESIGN.md's avl
// section).
type ProofNodeKind uint8

const (
	ProofHash ProofNodeKind = iota
	ProofKVHash
	ProofKV
	ProofKVValueHash
	ProofKVDigest
)

// ProofNode is one Push/PushInverted payload.
type ProofNode struct {
	Kind      ProofNodeKind
	Hash      hash.Digest // Hash, KVHash
	Key       []byte      // KV, KVValueHash, KVDigest
	Value     []byte      // KV, KVValueHash
	ValueHash hash.Digest // KVValueHash, KVDigest
}

// ProofOpKind is one stack-machine instruction (spec §4.9.1).
type ProofOpKind uint8

const (
	OpPush ProofOpKind = iota
	OpPushInverted
	OpParent
	OpChild
	OpParentInverted
	OpChildInverted
)

// ProofOp is one instruction in a V0 Merk proof.
type ProofOp struct {
	Kind ProofOpKind
	Node ProofNode // meaningful only for Push/PushInverted
}

// Prove builds a V0 stack-machine proof of every key in [low, high]
// (either bound nil for unbounded), replaying low-to-high order unless
// reverse is set. Executing the returned ops (Execute) reconstructs a
// single root hash equal to t.RootHash(); subtrees entirely outside
// the range are disclosed only as their combined hash, never loaded.
//
// Prove must run against a tree whose links are all committed (no
// LinkModified state); call it only after Commit.
func (t *Tree) Prove(low, high *RangeBound, reverse bool) ([]ProofOp, cost.OperationCost, error) {
	var ops []ProofOp
	oc, err := t.proveLink(t.root, low, high, reverse, &ops)
	return ops, oc, err
}

func linkHash(l *Link) hash.Digest {
	if l == nil {
		return hash.Zero
	}
	return l.Hash
}

func pushKind(reverse bool) ProofOpKind {
	if reverse {
		return OpPushInverted
	}
	return OpPush
}

func (t *Tree) proveLink(l *Link, low, high *RangeBound, reverse bool, ops *[]ProofOp) (cost.OperationCost, error) {
	var total cost.OperationCost
	if l == nil {
		return total, nil
	}
	n, oc, err := t.load(l)
	total.Add(oc)
	if err != nil {
		return total, err
	}

	skipLeft := belowLow(n.Key, low)
	skipRight := aboveHigh(n.Key, high)

	selfNode, err := proofNodeFor(n, !skipLeft && !skipRight)
	if err != nil {
		return total, err
	}
	*ops = append(*ops, ProofOp{Kind: pushKind(reverse), Node: selfNode})

	first, second := n.Left, n.Right
	skipFirst, skipSecond := skipLeft, skipRight
	firstOp, secondOp := OpParent, OpChild
	if reverse {
		first, second = n.Right, n.Left
		skipFirst, skipSecond = skipRight, skipLeft
		firstOp, secondOp = OpParentInverted, OpChildInverted
	}

	if first != nil {
		if skipFirst {
			*ops = append(*ops, ProofOp{Kind: pushKind(reverse), Node: ProofNode{Kind: ProofHash, Hash: linkHash(first)}})
		} else {
			oc, err := t.proveLink(first, low, high, reverse, ops)
			total.Add(oc)
			if err != nil {
				return total, err
			}
		}
		*ops = append(*ops, ProofOp{Kind: firstOp})
	}

	if second != nil {
		if skipSecond {
			*ops = append(*ops, ProofOp{Kind: pushKind(reverse), Node: ProofNode{Kind: ProofHash, Hash: linkHash(second)}})
		} else {
			oc, err := t.proveLink(second, low, high, reverse, ops)
			total.Add(oc)
			if err != nil {
				return total, err
			}
		}
		*ops = append(*ops, ProofOp{Kind: secondOp})
	}
	return total, nil
}

// Revealed is one queried key/value pair disclosed by a proof.
type Revealed struct {
	Key       []byte
	Element   element.Element
	ValueHash hash.Digest
}

type proofStackEntry struct {
	isRaw bool
	raw   hash.Digest

	kvHash hash.Digest
	left   *hash.Digest
	right  *hash.Digest
}

func (e proofStackEntry) hash() hash.Digest {
	if e.isRaw {
		return e.raw
	}
	return hash.NodeHash(e.kvHash, e.left, e.right)
}

// Execute replays a V0 proof against feature, returning the
// reconstructed root hash and every KV/KVValueHash node it disclosed
// (spec §4.9.1's verifier). It does not itself compare against an
// expected root; callers do that (ErrInvalidProof on mismatch belongs
// to package proof, which has the error taxonomy).
//
// Execute does not support features that bake a count into node_hash
// (FeatureProvableCount/FeatureProvableCountSum): the stack machine
// here tracks no running per-node count, only the feature-uniform
// count-free case Merk proofs need. See the V0 Merk proofs entry of
// DESIGN.md's avl section.
func Execute(ops []ProofOp, feature FeatureType) (hash.Digest, []Revealed, error) {
	if feature.BakesCountIntoHash() {
		return hash.Zero, nil, ErrProofFeatureUnsupported
	}

	var stack []proofStackEntry
	var revealed []Revealed

	pop := func() (proofStackEntry, error) {
		if len(stack) == 0 {
			return proofStackEntry{}, ErrProofStackUnderflow
		}
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return e, nil
	}

	for _, op := range ops {
		switch op.Kind {
		case OpPush, OpPushInverted:
			switch op.Node.Kind {
			case ProofHash:
				stack = append(stack, proofStackEntry{isRaw: true, raw: op.Node.Hash})
			case ProofKVHash:
				stack = append(stack, proofStackEntry{kvHash: op.Node.Hash})
			case ProofKV:
				e, err := element.Unmarshal(op.Node.Value)
				if err != nil {
					return hash.Zero, nil, err
				}
				vh := hash.ValueHash(op.Node.Value)
				stack = append(stack, proofStackEntry{kvHash: hash.KVHash(op.Node.Key, vh)})
				revealed = append(revealed, Revealed{Key: op.Node.Key, Element: e, ValueHash: vh})
			case ProofKVValueHash:
				e, err := element.Unmarshal(op.Node.Value)
				if err != nil {
					return hash.Zero, nil, err
				}
				stack = append(stack, proofStackEntry{kvHash: hash.KVHash(op.Node.Key, op.Node.ValueHash)})
				revealed = append(revealed, Revealed{Key: op.Node.Key, Element: e, ValueHash: op.Node.ValueHash})
			case ProofKVDigest:
				stack = append(stack, proofStackEntry{kvHash: hash.KVHash(op.Node.Key, op.Node.ValueHash)})
			default:
				return hash.Zero, nil, ErrUnknownProofNodeKind
			}

		case OpParent, OpParentInverted:
			child, err := pop()
			if err != nil {
				return hash.Zero, nil, err
			}
			parent, err := pop()
			if err != nil {
				return hash.Zero, nil, err
			}
			h := child.hash()
			if op.Kind == OpParent {
				parent.left = &h
			} else {
				parent.right = &h
			}
			stack = append(stack, parent)

		case OpChild, OpChildInverted:
			child, err := pop()
			if err != nil {
				return hash.Zero, nil, err
			}
			parent, err := pop()
			if err != nil {
				return hash.Zero, nil, err
			}
			h := child.hash()
			if op.Kind == OpChild {
				parent.right = &h
			} else {
				parent.left = &h
			}
			stack = append(stack, parent)

		default:
			return hash.Zero, nil, ErrUnknownProofOpKind
		}
	}

	if len(stack) != 1 {
		return hash.Zero, nil, ErrMalformedProof
	}
	return stack[0].hash(), revealed, nil
}

// proofNodeFor builds the ProofNode for a resident node, revealing its
// full key/value when inRange and otherwise only its precomputed
// KVHash (sufficient to let the verifier reconstruct node_hash without
// learning the key or value of a node the query didn't ask for).
func proofNodeFor(n *Node, inRange bool) (ProofNode, error) {
	if !inRange {
		return ProofNode{Kind: ProofKVHash, Hash: n.KVHash}, nil
	}

	e, err := element.Unmarshal(n.ElementBytes)
	if err != nil {
		return ProofNode{}, err
	}
	if e.Tag.Kind() == element.KindPlain {
		return ProofNode{Kind: ProofKV, Key: n.Key, Value: n.ElementBytes}, nil
	}
	// subtree/reference elements carry a value_hash that folds in a
	// child root or resolved target, not recoverable from the element
	// bytes alone: disclose it explicitly.
	return ProofNode{
		Kind:      ProofKVValueHash,
		Key:       n.Key,
		Value:     n.ElementBytes,
		ValueHash: n.ValueHash,
	}, nil
}
