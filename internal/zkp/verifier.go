package zkp

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
)

// BalanceVerifier checks balance-sufficiency proofs against a Groth16
// verifying key. Verification is public-input only: it never sees the
// prover's balance or blinder.
type BalanceVerifier struct {
	vk groth16.VerifyingKey
}

// NewBalanceVerifier wraps a verifying key produced by
// SetupBalanceProver.
func NewBalanceVerifier(vk groth16.VerifyingKey) *BalanceVerifier {
	return &BalanceVerifier{vk: vk}
}

// Verify checks proof against the public commitment scalar and required
// amount. It returns (false, nil) for a well-formed but invalid proof,
// and a non-nil error only when proof itself cannot be parsed.
func (v *BalanceVerifier) Verify(proof []byte, commitment *Commitment, requiredAmount uint64) (bool, error) {
	proofObj := groth16.NewProof(ecc.BN254)
	if _, err := proofObj.ReadFrom(bytes.NewReader(proof)); err != nil {
		return false, fmt.Errorf("zkp: parse proof: %w", err)
	}

	publicAssignment := &BalanceProofCircuit{
		CommitmentScalar: commitment.Scalar,
		RequiredAmount:   requiredAmount,
	}
	publicWitness, err := frontend.NewWitness(publicAssignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("zkp: build public witness: %w", err)
	}

	if err := groth16.Verify(proofObj, v.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}
