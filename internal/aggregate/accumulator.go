package aggregate

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"praxos/internal/model"
)

// Accumulator holds aggregate flows for a vault window.
type Accumulator struct {
	ChainID       uint64
	VaultAddress  string
	WindowStart   uint64
	WindowEnd     uint64
	DepositCount  uint64
	WithdrawCount uint64
	Deposited     *big.Int
	Withdrawn     *big.Int
	SharesMinted  *big.Int
	SharesBurned  *big.Int
	LastBlock     uint64
	LastTS        uint64
	FirstBlock    uint64
}

func NewAccumulator(event model.VaultEvent, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:      event.ChainID,
		VaultAddress: event.Vault,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Deposited:    big.NewInt(0),
		Withdrawn:    big.NewInt(0),
		SharesMinted: big.NewInt(0),
		SharesBurned: big.NewInt(0),
		LastBlock:    event.BlockNumber,
		LastTS:       event.Timestamp,
		FirstBlock:   event.BlockNumber,
	}
}

func (a *Accumulator) AddEvent(event model.VaultEvent) error {
	if event.Timestamp >= a.LastTS {
		a.LastTS = event.Timestamp
		a.LastBlock = event.BlockNumber
	}
	if a.FirstBlock == 0 || event.BlockNumber < a.FirstBlock {
		a.FirstBlock = event.BlockNumber
	}

	switch event.Kind {
	case model.EventDeposit:
		assets, shares, err := parseAmounts(event)
		if err != nil {
			return err
		}
		a.Deposited.Add(a.Deposited, assets)
		a.SharesMinted.Add(a.SharesMinted, shares)
		a.DepositCount++
	case model.EventWithdraw:
		assets, shares, err := parseAmounts(event)
		if err != nil {
			return err
		}
		a.Withdrawn.Add(a.Withdrawn, assets)
		a.SharesBurned.Add(a.SharesBurned, shares)
		a.WithdrawCount++
	}
	return nil
}

// NetFlow is deposits minus withdrawals in base-asset units.
func (a *Accumulator) NetFlow() *big.Int {
	return new(big.Int).Sub(a.Deposited, a.Withdrawn)
}

func parseAmounts(event model.VaultEvent) (*big.Int, *big.Int, error) {
	assets, err := parseBigInt(event.Assets)
	if err != nil {
		return nil, nil, fmt.Errorf("%s assets: %w", event.Kind, err)
	}
	shares, err := parseBigInt(event.Shares)
	if err != nil {
		return nil, nil, fmt.Errorf("%s shares: %w", event.Kind, err)
	}
	return assets, shares, nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}

// formatAmount renders a base-unit amount with exactly decimals fractional digits.
func formatAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).StringFixed(int32(decimals))
}
