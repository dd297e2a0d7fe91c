package model

import "time"

// VaultWindowMetrics stores aggregated deposit/withdraw flows for a vault window.
type VaultWindowMetrics struct {
	ChainID        uint64
	VaultAddress   string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	DepositCount   uint64
	WithdrawCount  uint64
	Deposited      string
	Withdrawn      string
	NetFlow        string
	SharesMinted   string
	SharesBurned   string
	TotalAssets    *string
	TVLMethod      string
}
