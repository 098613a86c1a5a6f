package domain

import "github.com/benbjohnson/immutable"

type idHasher[T ~int32] struct{}

func (idHasher[T]) Hash(x T) uint32 {
	// Fibonacci hashing spreads the dense identifiers over the hash space.
	return uint32(x) * 0x9E3779B1
}

func (idHasher[T]) Equal(a, b T) bool { return a == b }

// Hashers for using identifiers as keys of immutable maps.
var (
	PointerKeyHasher  immutable.Hasher[PointerKeyID]  = idHasher[PointerKeyID]{}
	InstanceKeyHasher immutable.Hasher[InstanceKeyID] = idHasher[InstanceKeyID]{}
	NodeHasher        immutable.Hasher[NodeID]        = idHasher[NodeID]{}
)
