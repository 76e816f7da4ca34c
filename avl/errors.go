package avl

import "errors"

var (
	// ErrKeyNotFound is returned by Get/Delete when the key is absent.
	ErrKeyNotFound = errors.New("avl: key not found")

	// ErrKeyAlreadyExists is returned by an insert-only apply when the
	// target key is already present.
	ErrKeyAlreadyExists = errors.New("avl: key already exists")

	// ErrUnsortedBatch is returned when Apply is given a batch whose
	// keys are not strictly increasing.
	ErrUnsortedBatch = errors.New("avl: batch keys must be strictly sorted")

	// ErrCorruption is returned when a stored node fails hash or shape
	// verification on load; it is fatal, not retryable.
	ErrCorruption = errors.New("avl: corruption detected")

	// ErrInvariantViolation guards impossible states reached only by a
	// programming error (e.g. rotating around a nil child).
	ErrInvariantViolation = errors.New("avl: invariant violation")

	// ErrProofStackUnderflow is returned by Execute when a Parent/Child
	// op has no operand left to pop: a malformed or truncated proof.
	ErrProofStackUnderflow = errors.New("avl: proof stack underflow")

	// ErrMalformedProof is returned by Execute when the op stream does
	// not reduce to exactly one stack entry.
	ErrMalformedProof = errors.New("avl: malformed proof, stack not singular")

	// ErrUnknownProofOpKind/ErrUnknownProofNodeKind guard an
	// unrecognized tag in a deserialized proof.
	ErrUnknownProofOpKind   = errors.New("avl: unknown proof op kind")
	ErrUnknownProofNodeKind = errors.New("avl: unknown proof node kind")

	// ErrProofFeatureUnsupported is returned by Execute for a feature
	// that bakes a count into node_hash, which this stack machine does
	// not track.
	ErrProofFeatureUnsupported = errors.New("avl: proof verification unsupported for this feature")
)
