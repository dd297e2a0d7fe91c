package model

import "strconv"

// Vault event kinds.
const (
	EventDeposit      = "Deposit"
	EventWithdraw     = "Withdraw"
	EventVaultCreated = "VaultCreated"
)

// VaultEvent is a decoded vault or factory log prepared for storage.
type VaultEvent struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Contract    string `json:"contract"`
	Kind        string `json:"kind"`
	Vault       string `json:"vault"`
	Sender      string `json:"sender,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Receiver    string `json:"receiver,omitempty"`
	Assets      string `json:"assets,omitempty"`
	Shares      string `json:"shares,omitempty"`
	Strategy    string `json:"strategy,omitempty"`
	RiskTier    uint8  `json:"risk_tier,omitempty"`
	Timestamp   uint64 `json:"timestamp"`
	IngestedAt  string `json:"ingested_at"`
}

// ID identifies an event uniquely within a chain.
func (e VaultEvent) ID() string {
	return e.TxHash + ":" + strconv.FormatUint(e.LogIndex, 10)
}

