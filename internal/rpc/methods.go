package rpc

import (
	"encoding/hex"
	"encoding/json"

	"github.com/novafoundation/nova-core/pkg/types"
)

func (s *Server) registerMethods(b *Backend) {
	s.register("nova_getBalance", b.getBalance)
	s.register("nova_sendTransaction", b.sendTransaction)
	s.register("nova_getTransaction", b.getTransaction)
	s.register("nova_getBlock", b.getBlock)
	s.register("nova_getBlockHeight", b.getBlockHeight)
	s.register("nova_getAccountState", b.getAccountState)
	s.register("nova_getValidators", b.getValidators)
	s.register("nova_estimateFee", b.estimateFee)
	s.register("nova_getCreditOffers", b.getCreditOffers)
}

func invalidParams(err error) *Error {
	return &Error{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
}

// --- nova_getBalance -------------------------------------------------

type getBalanceParams struct {
	Address string `json:"address"`
	TokenID string `json:"token_id,omitempty"`
}

func (b *Backend) getBalance(raw json.RawMessage) (interface{}, *Error) {
	var p getBalanceParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidParams(err)
	}
	addr, err := types.DecodeAddress(p.Address, b.AddressPrefix)
	if err != nil {
		return nil, invalidParams(err)
	}
	account, ok := b.Chain.GetAccount(addr)
	if !ok {
		return nil, &Error{Code: CodeAccountNotFound, Message: "account not found"}
	}
	if p.TokenID != "" {
		return map[string]uint64{"balance": account.TokenBalances[p.TokenID]}, nil
	}
	return map[string]uint64{"balance": account.Balance}, nil
}

// --- nova_sendTransaction ---------------------------------------------

type sendTransactionParams struct {
	SignedTx json.RawMessage `json:"signed_tx"`
}

func (b *Backend) sendTransaction(raw json.RawMessage) (interface{}, *Error) {
	var p sendTransactionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidParams(err)
	}
	var tx types.Transaction
	if err := json.Unmarshal(p.SignedTx, &tx); err != nil {
		return nil, invalidParams(err)
	}
	if err := b.Mempool.Submit(&tx); err != nil {
		return nil, &Error{Code: CodeTxRejected, Message: err.Error()}
	}
	return map[string]string{"tx_id": hex.EncodeToString(tx.Id.Bytes())}, nil
}

// --- nova_getTransaction ------------------------------------------------

type getTransactionParams struct {
	ID string `json:"id"`
}

func (b *Backend) getTransaction(raw json.RawMessage) (interface{}, *Error) {
	var p getTransactionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidParams(err)
	}
	id, err := hashFromHex(p.ID)
	if err != nil {
		return nil, invalidParams(err)
	}
	tx, ok := b.Chain.GetTransaction(id)
	if !ok {
		return nil, &Error{Code: CodeTxNotFound, Message: "transaction not found"}
	}
	return tx, nil
}

// --- nova_getBlock -------------------------------------------------------

type getBlockParams struct {
	Height *uint64 `json:"height,omitempty"`
	Hash   string  `json:"hash,omitempty"`
}

func (b *Backend) getBlock(raw json.RawMessage) (interface{}, *Error) {
	var p getBlockParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidParams(err)
	}

	var (
		block *types.Block
		ok    bool
	)
	switch {
	case p.Height != nil:
		block, ok = b.Chain.GetBlockByHeight(*p.Height)
	case p.Hash != "":
		hash, err := hashFromHex(p.Hash)
		if err != nil {
			return nil, invalidParams(err)
		}
		block, ok = b.Chain.GetBlockByHash(hash)
	default:
		return nil, &Error{Code: CodeInvalidParams, Message: "must supply height or hash"}
	}
	if !ok {
		return nil, &Error{Code: CodeBlockNotFound, Message: "block not found"}
	}
	return block, nil
}

// --- nova_getBlockHeight --------------------------------------------------

func (b *Backend) getBlockHeight(_ json.RawMessage) (interface{}, *Error) {
	return map[string]uint64{"height": b.Chain.Height()}, nil
}

// --- nova_getAccountState ---------------------------------------------------

type getAccountStateParams struct {
	Address string `json:"address"`
}

func (b *Backend) getAccountState(raw json.RawMessage) (interface{}, *Error) {
	var p getAccountStateParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidParams(err)
	}
	addr, err := types.DecodeAddress(p.Address, b.AddressPrefix)
	if err != nil {
		return nil, invalidParams(err)
	}
	account, ok := b.Chain.GetAccount(addr)
	if !ok {
		return nil, &Error{Code: CodeAccountNotFound, Message: "account not found"}
	}
	return account, nil
}

// --- nova_getValidators -----------------------------------------------------

func (b *Backend) getValidators(_ json.RawMessage) (interface{}, *Error) {
	validators := b.Chain.Validators()
	out := make([]map[string]interface{}, 0, len(validators))
	for _, v := range validators {
		out = append(out, map[string]interface{}{
			"address": v.Address.Encode(b.AddressPrefix),
			"stake":   v.Stake,
			"online":  v.Online,
		})
	}
	return out, nil
}

// --- nova_estimateFee -------------------------------------------------------

type estimateFeeParams struct {
	Tx json.RawMessage `json:"tx"`
}

func (b *Backend) estimateFee(raw json.RawMessage) (interface{}, *Error) {
	var p estimateFeeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidParams(err)
	}
	var tx types.Transaction
	if err := json.Unmarshal(p.Tx, &tx); err != nil {
		return nil, invalidParams(err)
	}
	return map[string]uint64{"fee": types.MinFeeFor(tx.Amount.Currency)}, nil
}

// --- nova_getCreditOffers -------------------------------------------------

type getCreditOffersParams struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

func (b *Backend) getCreditOffers(raw json.RawMessage) (interface{}, *Error) {
	var p getCreditOffersParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidParams(err)
	}
	addr, err := types.DecodeAddress(p.Address, b.AddressPrefix)
	if err != nil {
		return nil, invalidParams(err)
	}
	if b.Offers == nil {
		return []CreditOffer{}, nil
	}
	return b.Offers.CreditOffers(addr, p.Amount), nil
}

func hashFromHex(s string) (types.Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return types.Hash{}, err
	}
	return types.HashFromBytes(raw), nil
}
