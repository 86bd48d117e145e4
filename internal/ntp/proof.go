package ntp

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/novafoundation/nova-core/internal/zkp"
	"github.com/novafoundation/nova-core/pkg/types"
)

// ProofRequest is the responder's demand for proof of funds.
type ProofRequest struct {
	SessionID      uuid.UUID
	RequiredAmount uint64
	Currency       types.Currency
	Nonce          [32]byte
}

// ProofResponse is the initiator's reply: a SNARK proof that its
// balance covers RequiredAmount, without revealing the balance itself.
type ProofResponse struct {
	SessionID        uuid.UUID
	ProofBytes       []byte
	CommitmentBytes  []byte
	TimestampMs      uint64
}

// RequestProof builds the responder's proof-of-funds challenge and
// advances AwaitingProof to VerifyingProof.
func (s *Session) RequestProof(requiredAmount uint64, currency types.Currency) (*ProofRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireState(StateAwaitingProof); err != nil {
		return nil, err
	}

	var nonce [32]byte
	nonceBytes, err := zkp.RandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("ntp: sample proof nonce: %w", err)
	}
	copy(nonce[:], nonceBytes)

	s.State = StateVerifyingProof
	return &ProofRequest{
		SessionID:      s.ID,
		RequiredAmount: requiredAmount,
		Currency:       currency,
		Nonce:          nonce,
	}, nil
}

// GenerateProof runs the SNARK prover over the initiator's balance and
// advances ProofPhase to Broadcasting. A req whose SessionID does not
// match the session moves it to Rejected with ErrSessionMismatch.
func (s *Session) GenerateProof(req *ProofRequest, balance uint64, params *zkp.Params, prover *zkp.BalanceProver) (*ProofResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireState(StateProofPhase); err != nil {
		return nil, err
	}
	if req.SessionID != s.ID {
		s.State = StateRejected
		s.RejectReason = "proof request session mismatch"
		s.RejectStage = StageStructural
		return nil, ErrSessionMismatch
	}

	commitment, blinder, err := zkp.CommitRandom(params, balance)
	if err != nil {
		return nil, fmt.Errorf("ntp: commit balance: %w", err)
	}

	proofBytes, err := prover.Prove(balance, blinder, req.RequiredAmount, commitment)
	if err != nil {
		if errors.Is(err, zkp.ErrWitnessUnsatisfiable) {
			s.State = StateRejected
			s.RejectReason = "balance does not cover required amount"
			s.RejectStage = StageZkpVerification
		}
		return nil, fmt.Errorf("ntp: generate proof: %w", err)
	}

	s.commitment = commitment
	s.blinder = blinder.Bytes()
	s.State = StateBroadcasting

	return &ProofResponse{
		SessionID:       s.ID,
		ProofBytes:      proofBytes,
		CommitmentBytes: commitment.Bytes(),
		TimestampMs:     uint64(time.Now().UnixMilli()),
	}, nil
}

// VerifyProof checks the initiator's proof against the responder's
// verifying key and advances VerifyingProof to AwaitingSettlement.
// Verification failure terminates the session as Rejected at stage
// ZkpVerification.
func (s *Session) VerifyProof(resp *ProofResponse, verifier *zkp.BalanceVerifier, requiredAmount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireState(StateVerifyingProof); err != nil {
		return err
	}
	if resp.SessionID != s.ID {
		s.State = StateRejected
		s.RejectReason = "proof response session mismatch"
		s.RejectStage = StageStructural
		return ErrSessionMismatch
	}

	commitment, err := zkp.FromBytes(resp.CommitmentBytes)
	if err != nil {
		s.State = StateRejected
		s.RejectReason = "malformed commitment"
		s.RejectStage = StageZkpVerification
		return fmt.Errorf("ntp: parse commitment: %w", err)
	}

	ok, err := verifier.Verify(resp.ProofBytes, commitment, requiredAmount)
	if err != nil {
		s.State = StateRejected
		s.RejectReason = "unparseable proof"
		s.RejectStage = StageZkpVerification
		return fmt.Errorf("ntp: verify proof: %w", err)
	}
	if !ok {
		s.State = StateRejected
		s.RejectReason = "proof does not verify"
		s.RejectStage = StageZkpVerification
		return nil
	}

	s.commitment = commitment
	s.State = StateAwaitingSettlement
	return nil
}
