// Package consensus implements stake-weighted round-robin proposer
// selection and BFT-style quorum voting: this protocol finalizes a
// single linear chain by vote, not by cumulative-work scoring over a
// block DAG.
package consensus

import (
	"bytes"
	"sort"

	"github.com/novafoundation/nova-core/pkg/types"
)

// Validator is one member of the active validator set. PublicKey is
// carried alongside Address (which is merely derived from it) so the
// engine can verify proposer signatures without a separate registry
// lookup.
type Validator struct {
	Address   types.Address
	PublicKey []byte
	Stake     uint64
	Online    bool
}

// ValidatorSet is an immutable snapshot of the active validators,
// sorted descending by stake with address as the lexicographic
// tiebreaker. A new snapshot is published atomically at block
// finalization; the set itself is never mutated in place.
type ValidatorSet struct {
	validators []Validator
	totalStake uint64
}

// NewValidatorSet builds a sorted, immutable snapshot from validators.
func NewValidatorSet(validators []Validator) *ValidatorSet {
	sorted := append([]Validator(nil), validators...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Stake != sorted[j].Stake {
			return sorted[i].Stake > sorted[j].Stake
		}
		return bytes.Compare(sorted[i].Address[:], sorted[j].Address[:]) < 0
	})

	var total uint64
	for _, v := range sorted {
		total += v.Stake
	}

	return &ValidatorSet{validators: sorted, totalStake: total}
}

// Len returns the number of validators in the set.
func (vs *ValidatorSet) Len() int {
	return len(vs.validators)
}

// TotalStake returns the sum of every validator's stake.
func (vs *ValidatorSet) TotalStake() uint64 {
	return vs.totalStake
}

// QuorumThreshold returns ⌈2·total_stake/3⌉ + 1, the minimum aggregate
// stake needed to finalize a block. It is always strictly greater than
// half of total stake.
func (vs *ValidatorSet) QuorumThreshold() uint64 {
	return (2*vs.totalStake+2)/3 + 1
}

// ProposerForRound returns the validator expected to propose at height
// h, round r: validators[(h+r) mod N]. Round is monotonic per height
// and only advances on timeout.
func (vs *ValidatorSet) ProposerForRound(height uint64, round uint32) (Validator, bool) {
	n := uint64(len(vs.validators))
	if n == 0 {
		return Validator{}, false
	}
	idx := (height + uint64(round)) % n
	return vs.validators[idx], true
}

// ByAddress looks up a validator by address.
func (vs *ValidatorSet) ByAddress(addr types.Address) (Validator, bool) {
	for _, v := range vs.validators {
		if v.Address == addr {
			return v, true
		}
	}
	return Validator{}, false
}

// Validators returns the sorted validator slice. Callers must not
// mutate the result.
func (vs *ValidatorSet) Validators() []Validator {
	return vs.validators
}
