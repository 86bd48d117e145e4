// Package zkp implements the dual-form Pedersen commitment and the
// balance-sufficiency SNARK circuit used by the NTP proof-of-funds step.
package zkp

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Commitment and parameter errors.
var (
	ErrInvalidValue      = errors.New("zkp: invalid commitment value")
	ErrInvalidBlinder    = errors.New("zkp: invalid blinder")
	ErrInvalidPoint      = errors.New("zkp: invalid elliptic curve point")
	ErrDegenerateScalar  = errors.New("zkp: sampled a zero scalar")
	ErrParamsNotFrozen   = errors.New("zkp: commitment params not yet frozen by setup")
)

// Params is the frozen parameter set a Pedersen commitment is defined
// against: two curve generators with unknown discrete-log relation to
// each other, and two independent non-zero scalar-field constants used
// for the in-circuit form. Params are produced once at SNARK setup time
// and never change without a full re-setup.
type Params struct {
	G, H             bn254.G1Affine
	GScalar, HScalar fr.Element
}

// GeneratePedersenParams samples a fresh parameter set. G is the
// standard BN254 generator; H is an independent point obtained by
// scalar-multiplying G by a random scalar whose discrete log is then
// discarded, which is sufficient because nothing in this codebase ever
// needs to recover that discrete log. GScalar and HScalar are sampled
// uniformly from the non-zero elements of the circuit's scalar field.
func GeneratePedersenParams() (*Params, error) {
	_, _, g1Gen, _ := bn254.Generators()

	hBlind, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	var h bn254.G1Affine
	h.ScalarMultiplication(&g1Gen, hBlind)

	gScalar, err := randomNonZeroElement()
	if err != nil {
		return nil, err
	}
	hScalar, err := randomNonZeroElement()
	if err != nil {
		return nil, err
	}

	return &Params{G: g1Gen, H: h, GScalar: gScalar, HScalar: hScalar}, nil
}

func randomNonZeroElement() (fr.Element, error) {
	var e fr.Element
	for {
		if _, err := e.SetRandom(); err != nil {
			return e, err
		}
		if !e.IsZero() {
			return e, nil
		}
	}
}

// RandomScalar samples a uniform element of the scalar field as a
// big.Int, suitable for use as a commitment blinder.
func RandomScalar() (*big.Int, error) {
	var e fr.Element
	if _, err := e.SetRandom(); err != nil {
		return nil, err
	}
	return e.BigInt(new(big.Int)), nil
}

// Commitment is the dual-form Pedersen commitment to a balance: a curve
// point form for external audit and a scalar-field form the circuit can
// check cheaply without emulating non-native arithmetic. Both forms
// share the same witness (value, blinder).
type Commitment struct {
	Point  bn254.G1Affine
	Scalar fr.Element
}

// Commit computes both forms of the commitment to value under blinder.
func Commit(params *Params, value uint64, blinder *big.Int) (*Commitment, error) {
	if params == nil {
		return nil, ErrParamsNotFrozen
	}
	if blinder == nil {
		return nil, ErrInvalidBlinder
	}

	valueBig := new(big.Int).SetUint64(value)

	var valueG, blinderH, point bn254.G1Affine
	valueG.ScalarMultiplication(&params.G, valueBig)
	blinderH.ScalarMultiplication(&params.H, blinder)
	point.Add(&valueG, &blinderH)

	var valueElem, blinderElem, scalar fr.Element
	valueElem.SetBigInt(valueBig)
	blinderElem.SetBigInt(blinder)
	scalar.Mul(&valueElem, &params.GScalar)
	var blinderTerm fr.Element
	blinderTerm.Mul(&blinderElem, &params.HScalar)
	scalar.Add(&scalar, &blinderTerm)

	return &Commitment{Point: point, Scalar: scalar}, nil
}

// CommitRandom computes a commitment to value under a freshly sampled
// blinder, returning the blinder for later use as a proof witness.
func CommitRandom(params *Params, value uint64) (*Commitment, *big.Int, error) {
	blinder, err := RandomScalar()
	if err != nil {
		return nil, nil, err
	}
	c, err := Commit(params, value, blinder)
	if err != nil {
		return nil, nil, err
	}
	return c, blinder, nil
}

// VerifyOpen checks that c opens to (value, blinder) under params,
// recomputing and comparing both the curve and scalar forms. A
// single-bit perturbation of value or blinder fails at least one form.
func VerifyOpen(params *Params, c *Commitment, value uint64, blinder *big.Int) bool {
	expected, err := Commit(params, value, blinder)
	if err != nil {
		return false
	}
	return c.Point.Equal(&expected.Point) && c.Scalar.Equal(&expected.Scalar)
}

// Bytes returns the canonical serialization of the commitment: the
// uncompressed curve point (G1Affine.Marshal) followed by the
// scalar-field element.
func (c *Commitment) Bytes() []byte {
	pointBytes := c.Point.Marshal()
	scalarBytes := c.Scalar.Bytes()
	out := make([]byte, 0, len(pointBytes)+len(scalarBytes))
	out = append(out, pointBytes...)
	out = append(out, scalarBytes[:]...)
	return out
}

// FromBytes reconstructs a commitment from the encoding produced by
// Bytes.
func FromBytes(data []byte) (*Commitment, error) {
	pointLen := len(bn254.G1Affine{}.Marshal())
	if len(data) != pointLen+fr.Bytes {
		return nil, ErrInvalidPoint
	}
	var c Commitment
	if err := c.Point.Unmarshal(data[:pointLen]); err != nil {
		return nil, ErrInvalidPoint
	}
	c.Scalar.SetBytes(data[pointLen:])
	return &c, nil
}

// RandomBytes generates n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}
