package ntp

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/pkg/types"
)

// HandshakeRequest is the initiator's opening message.
type HandshakeRequest struct {
	HandshakeID         uuid.UUID
	InitiatorPublicKey  []byte
	InitiatorAddress    types.Address
	EphemeralDHPub      []byte
	SupportedCurrencies []types.Currency
	ProtocolVersion     uint32
}

// HandshakeResponse is the responder's reply, carrying the freshly
// assigned session id and the chosen payment parameters.
type HandshakeResponse struct {
	SessionID          uuid.UUID
	ResponderPublicKey []byte
	EphemeralDHPub     []byte
	PaymentParams      PaymentParams
}

// BeginHandshake builds the initiator's opening request and advances
// the session from Idle to AwaitingResponse.
func (s *Session) BeginHandshake(supportedCurrencies []types.Currency) (*HandshakeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireState(StateIdle); err != nil {
		return nil, err
	}
	if s.Role != RoleInitiator {
		return nil, ErrOutOfOrderMessage
	}

	ephemeral, err := crypto.NewEphemeralKeypair()
	if err != nil {
		return nil, fmt.Errorf("ntp: generate ephemeral key: %w", err)
	}
	s.localEphemeral = ephemeral

	s.State = StateAwaitingResponse
	return &HandshakeRequest{
		HandshakeID:         uuid.New(),
		InitiatorPublicKey:  s.LocalKeypair.PublicKey(),
		InitiatorAddress:    s.LocalAddress,
		EphemeralDHPub:      ephemeral.PublicKey(),
		SupportedCurrencies: supportedCurrencies,
		ProtocolVersion:     ProtocolVersion,
	}, nil
}

// RespondToHandshake processes an inbound HandshakeRequest on the
// responder side: verifies the protocol version, checks that
// params.Currency is in both req.SupportedCurrencies and accepted,
// derives the session key, and advances Idle to AwaitingProof.
func (s *Session) RespondToHandshake(req *HandshakeRequest, accepted []types.Currency, params PaymentParams) (*HandshakeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireState(StateIdle); err != nil {
		return nil, err
	}
	if s.Role != RoleResponder {
		return nil, ErrOutOfOrderMessage
	}
	if req.ProtocolVersion != ProtocolVersion {
		s.State = StateRejected
		s.RejectReason = "unsupported protocol version"
		s.RejectStage = StageStructural
		return nil, ErrUnsupportedVersion
	}
	if !currencyInCommon(req.SupportedCurrencies, accepted, params.Currency) {
		s.State = StateRejected
		s.RejectReason = "no common currency"
		s.RejectStage = StageStructural
		return nil, ErrUnsupportedCurrency
	}

	ephemeral, err := crypto.NewEphemeralKeypair()
	if err != nil {
		return nil, fmt.Errorf("ntp: generate ephemeral key: %w", err)
	}
	s.localEphemeral = ephemeral
	s.peerEphemeralPublic = req.EphemeralDHPub
	s.PeerPublicKey = req.InitiatorPublicKey
	s.PeerAddress = req.InitiatorAddress
	s.PaymentParams = params
	s.ID = uuid.New()

	sessionKey, err := ephemeral.DeriveSessionKey(req.EphemeralDHPub, s.ID[:])
	if err != nil {
		return nil, fmt.Errorf("ntp: derive session key: %w", err)
	}
	cipher, err := crypto.NewSessionCipher(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("ntp: build session cipher: %w", err)
	}
	s.sessionKey = sessionKey
	s.cipher = cipher

	s.State = StateAwaitingProof
	return &HandshakeResponse{
		SessionID:          s.ID,
		ResponderPublicKey: s.LocalKeypair.PublicKey(),
		EphemeralDHPub:     ephemeral.PublicKey(),
		PaymentParams:      params,
	}, nil
}

// CompleteHandshake processes the responder's reply on the initiator
// side: derives the shared session key and advances AwaitingResponse to
// ProofPhase.
func (s *Session) CompleteHandshake(resp *HandshakeResponse, responderPublicKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireState(StateAwaitingResponse); err != nil {
		return err
	}

	s.ID = resp.SessionID
	s.PeerPublicKey = responderPublicKey
	s.PeerAddress = types.DeriveAddress(responderPublicKey)
	s.peerEphemeralPublic = resp.EphemeralDHPub
	s.PaymentParams = resp.PaymentParams

	sessionKey, err := s.localEphemeral.DeriveSessionKey(resp.EphemeralDHPub, s.ID[:])
	if err != nil {
		return fmt.Errorf("ntp: derive session key: %w", err)
	}
	cipher, err := crypto.NewSessionCipher(sessionKey)
	if err != nil {
		return fmt.Errorf("ntp: build session cipher: %w", err)
	}
	s.sessionKey = sessionKey
	s.cipher = cipher

	s.State = StateProofPhase
	return nil
}

func currencyInCommon(requested, accepted []types.Currency, chosen types.Currency) bool {
	requestedOK, acceptedOK := false, false
	for _, c := range requested {
		if c.Equal(chosen) {
			requestedOK = true
			break
		}
	}
	for _, c := range accepted {
		if c.Equal(chosen) {
			acceptedOK = true
			break
		}
	}
	return requestedOK && acceptedOK
}
