package rpc

import (
	"github.com/novafoundation/nova-core/internal/consensus"
	"github.com/novafoundation/nova-core/pkg/types"
)

// ChainReader is the narrow read surface the RPC server needs from the
// running node: current tip, persisted blocks/transactions, account
// state, and the active validator set. A concrete node wires its
// consensus engine and storage behind this interface; RPC never reaches
// into either directly.
type ChainReader interface {
	Height() uint64
	Syncing() bool
	GetAccount(addr types.Address) (*types.Account, bool)
	GetBlockByHeight(height uint64) (*types.Block, bool)
	GetBlockByHash(hash types.Hash) (*types.Block, bool)
	GetTransaction(id types.Hash) (*types.Transaction, bool)
	Validators() []consensus.Validator
}

// TxSubmitter accepts a signed transaction into the mempool.
type TxSubmitter interface {
	Submit(tx *types.Transaction) error
}

// CreditOffer is one lender's standing offer a borrower can accept to
// open a credit escrow.
type CreditOffer struct {
	LenderAddress   types.Address
	MaxPrincipal    uint64
	InterestRateBps uint32
}

// CreditOfferProvider looks up standing credit offers available to
// addr for roughly amount. A node with no credit-offer book wired
// simply returns an empty slice.
type CreditOfferProvider interface {
	CreditOffers(addr types.Address, amount uint64) []CreditOffer
}

// Backend bundles everything the nova_* methods read from or write to.
type Backend struct {
	Chain   ChainReader
	Mempool TxSubmitter
	Offers  CreditOfferProvider

	// AddressPrefix is the network's human-readable address prefix
	//, used to encode/decode addresses in
	// method params and results.
	AddressPrefix string
}
