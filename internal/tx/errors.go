package tx

import (
	"errors"

	"praxos/internal/chain"
)

var (
	ErrWalletNotConfigured   = errors.New("wallet not configured")
	ErrWrongNetwork          = chain.ErrWrongNetwork
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrTxRejected            = errors.New("transaction rejected")
	ErrTxReverted            = chain.ErrTxReverted
	ErrInvalidAmount         = errors.New("invalid amount")
)
