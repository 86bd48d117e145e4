package zkp

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Errors surfaced by the prover and verifier.
var (
	ErrCircuitNotCompiled     = errors.New("zkp: circuit not compiled")
	ErrWitnessUnsatisfiable   = errors.New("zkp: witness does not satisfy the balance circuit")
	ErrProofVerificationFailed = errors.New("zkp: proof failed verification")
)

// BalanceProver holds the proving key for a compiled BalanceProofCircuit
// bound to one Pedersen parameter set. A prover is reusable across many
// proofs as long as the parameter set does not change.
type BalanceProver struct {
	mu     sync.Mutex
	ccs    constraint.ConstraintSystem
	pk     groth16.ProvingKey
	params *Params
}

// SetupBalanceProver compiles the balance circuit for params and runs
// the Groth16 trusted setup, returning a prover and the matching
// verifying key. Compilation and setup are CPU-bound and must be
// dispatched off the cooperative scheduler by the caller.
func SetupBalanceProver(params *Params) (*BalanceProver, groth16.VerifyingKey, error) {
	circuit := NewBalanceProofCircuit(params)

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, nil, fmt.Errorf("zkp: compile balance circuit: %w", err)
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("zkp: groth16 setup: %w", err)
	}

	return &BalanceProver{ccs: ccs, pk: pk, params: params}, vk, nil
}

// Prove generates a balance-sufficiency proof for the given private
// balance and blinder against the public commitment scalar and required
// amount. The underlying SNARK prover panics rather than returning an
// error when the witness is unsatisfiable (e.g. balance < required); that
// panic is recovered here and surfaced as ErrWitnessUnsatisfiable, a
// typed error the caller (NTP step 2) should treat as a protocol
// violation and terminate the session over, not retry.
func (p *BalanceProver) Prove(balance uint64, blinder *big.Int, requiredAmount uint64, commitment *Commitment) (proof []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			proof, err = nil, ErrWitnessUnsatisfiable
		}
	}()

	assignment := &BalanceProofCircuit{
		CommitmentScalar: commitment.Scalar,
		RequiredAmount:   requiredAmount,
		Balance:          balance,
		Blinder:          blinder,
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("zkp: build witness: %w", err)
	}

	p.mu.Lock()
	proofObj, proveErr := groth16.Prove(p.ccs, p.pk, witness)
	p.mu.Unlock()
	if proveErr != nil {
		return nil, ErrWitnessUnsatisfiable
	}

	buf := make([]byte, 0, 256)
	w := &byteAppender{buf: buf}
	if _, err := proofObj.WriteTo(w); err != nil {
		return nil, fmt.Errorf("zkp: serialize proof: %w", err)
	}
	return w.buf, nil
}

// byteAppender adapts io.Writer onto a growing byte slice, avoiding a
// dependency on bytes.Buffer's extra bookkeeping for a single write
// pass.
type byteAppender struct {
	buf []byte
}

func (b *byteAppender) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}
