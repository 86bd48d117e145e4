package zkp

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// balanceBits is the width of the range decomposition used both for the
// balance itself and for the balance-minus-required inequality check
//.
const balanceBits = 64

// BalanceProofCircuit proves, without revealing balance, that an
// account holds at least required_amount and that the disclosed
// commitment scalar opens to that balance under the frozen Pedersen
// parameters baked into the circuit at compile time.
//
// GScalar and HScalar are plain Go values, not witness variables: they
// are fixed when the circuit is compiled and are identical for every
// proof produced against the resulting proving key. Rotating Pedersen
// parameters therefore requires recompiling the circuit and rerunning
// setup.
type BalanceProofCircuit struct {
	// Public inputs.
	CommitmentScalar frontend.Variable `gnark:",public"`
	RequiredAmount   frontend.Variable `gnark:",public"`

	// Private witness.
	Balance frontend.Variable
	Blinder frontend.Variable

	// Circuit constants, baked in at compile time. Plain *big.Int
	// fields are invisible to gnark's witness reflection, so these
	// never become proof inputs.
	GScalar *big.Int
	HScalar *big.Int
}

// NewBalanceProofCircuit builds the template circuit used at compile
// time, with the Pedersen scalar constants baked in.
func NewBalanceProofCircuit(params *Params) *BalanceProofCircuit {
	return &BalanceProofCircuit{
		GScalar: params.GScalar.BigInt(new(big.Int)),
		HScalar: params.HScalar.BigInt(new(big.Int)),
	}
}

// Define implements frontend.Circuit.
func (c *BalanceProofCircuit) Define(api frontend.API) error {
	// Range constraint: balance decomposes into balanceBits booleans
	// that recompose to balance. ToBinary both asserts each bit is
	// boolean and that the recomposition equals the input, so a
	// balance outside [0, 2^64) makes the witness unsatisfiable.
	api.ToBinary(c.Balance, balanceBits)

	// Inequality: balance - required must itself be representable in
	// balanceBits, which is only possible when balance >= required.
	diff := api.Sub(c.Balance, c.RequiredAmount)
	api.ToBinary(diff, balanceBits)

	// Commitment consistency: commitment.scalar == balance*GScalar + blinder*HScalar.
	balanceTerm := api.Mul(c.Balance, c.GScalar)
	blinderTerm := api.Mul(c.Blinder, c.HScalar)
	recomputed := api.Add(balanceTerm, blinderTerm)
	api.AssertIsEqual(c.CommitmentScalar, recomputed)

	return nil
}
