package zkp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// balanceProofFixture is expensive to build (a real Groth16 trusted
// setup), so every test in this file shares one instance.
type balanceProofFixture struct {
	params   *Params
	prover   *BalanceProver
	verifier *BalanceVerifier
}

var (
	fixtureOnce sync.Once
	fixture     *balanceProofFixture
	fixtureErr  error
)

func getFixture(t testing.TB) *balanceProofFixture {
	t.Helper()
	fixtureOnce.Do(func() {
		params, err := GeneratePedersenParams()
		if err != nil {
			fixtureErr = err
			return
		}
		prover, vk, err := SetupBalanceProver(params)
		if err != nil {
			fixtureErr = err
			return
		}
		fixture = &balanceProofFixture{params: params, prover: prover, verifier: NewBalanceVerifier(vk)}
	})
	require.NoError(t, fixtureErr)
	return fixture
}

func TestProveAndVerifySufficientBalance(t *testing.T) {
	f := getFixture(t)

	const required, balance = uint64(1000), uint64(5000)
	commitment, blinder, err := CommitRandom(f.params, balance)
	require.NoError(t, err)

	proof, err := f.prover.Prove(balance, blinder, required, commitment)
	require.NoError(t, err)

	ok, err := f.verifier.Verify(proof, commitment, required)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestProveInsufficientBalanceIsUnsatisfiable(t *testing.T) {
	f := getFixture(t)

	const required, balance = uint64(5000), uint64(1000)
	commitment, blinder, err := CommitRandom(f.params, balance)
	require.NoError(t, err)

	_, err = f.prover.Prove(balance, blinder, required, commitment)
	require.ErrorIs(t, err, ErrWitnessUnsatisfiable)
}

func TestVerifyRejectsProofAgainstWrongRequiredAmount(t *testing.T) {
	f := getFixture(t)

	const required, balance = uint64(1000), uint64(5000)
	commitment, blinder, err := CommitRandom(f.params, balance)
	require.NoError(t, err)

	proof, err := f.prover.Prove(balance, blinder, required, commitment)
	require.NoError(t, err)

	ok, err := f.verifier.Verify(proof, commitment, required+1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyRejectsTruncatedProof(t *testing.T) {
	f := getFixture(t)

	const required, balance = uint64(1000), uint64(5000)
	commitment, blinder, err := CommitRandom(f.params, balance)
	require.NoError(t, err)

	proof, err := f.prover.Prove(balance, blinder, required, commitment)
	require.NoError(t, err)

	_, err = f.verifier.Verify(proof[:len(proof)/2], commitment, required)
	require.Error(t, err)
}

func BenchmarkProve(b *testing.B) {
	f := getFixture(b)
	const required, balance = uint64(1000), uint64(5000)
	commitment, blinder, err := CommitRandom(f.params, balance)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.prover.Prove(balance, blinder, required, commitment); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkVerify(b *testing.B) {
	f := getFixture(b)
	const required, balance = uint64(1000), uint64(5000)
	commitment, blinder, err := CommitRandom(f.params, balance)
	require.NoError(b, err)
	proof, err := f.prover.Prove(balance, blinder, required, commitment)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.verifier.Verify(proof, commitment, required); err != nil {
			b.Fatal(err)
		}
	}
}
