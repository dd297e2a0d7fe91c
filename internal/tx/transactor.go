package tx

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"praxos/internal/chain"
	"praxos/internal/contracts"
	"praxos/internal/vault"
)

// gasHeadroomPct is added on top of every gas estimate.
const gasHeadroomPct = 20

// Backend is the chain surface a Transactor needs.
type Backend interface {
	contracts.Caller
	chain.ReceiptFetcher
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Config controls signing and confirmation.
type Config struct {
	ChainID      uint64
	PollInterval time.Duration
	AutoApprove  bool
}

// Transactor signs and submits transactions from one key.
type Transactor struct {
	backend Backend
	reader  *vault.Reader
	key     *ecdsa.PrivateKey
	from    common.Address
	cfg     Config
	logger  *zap.Logger
}

// NewTransactor parses privateKey (hex, optional 0x prefix) and binds it to backend.
func NewTransactor(backend Backend, reader *vault.Reader, privateKey string, cfg Config, logger *zap.Logger) (*Transactor, error) {
	privateKey = strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")
	if privateKey == "" {
		return nil, ErrWalletNotConfigured
	}
	key, err := crypto.HexToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key", ErrWalletNotConfigured)
	}
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if reader == nil {
		reader = vault.NewReader(backend, nil, vault.Options{}, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transactor{
		backend: backend,
		reader:  reader,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// From returns the signer address.
func (t *Transactor) From() common.Address {
	return t.from
}

// Approve lets spender move amount of token on behalf of the signer.
func (t *Transactor) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	parsed, err := t.tokenABI(token)
	if err != nil {
		return nil, err
	}
	return t.Transact(ctx, token, parsed, "approve", spender, amount)
}

// Mint mints mock tokens to recipient.
func (t *Transactor) Mint(ctx context.Context, token, to common.Address, amount *big.Int) (*types.Receipt, error) {
	parsed, err := t.tokenABI(token)
	if err != nil {
		return nil, err
	}
	return t.Transact(ctx, token, parsed, "mint", to, amount)
}

// Deposit deposits amount of the vault's base asset. A zero receiver means the signer.
func (t *Transactor) Deposit(ctx context.Context, vaultAddr common.Address, amount *big.Int, receiver common.Address) (*types.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if receiver == (common.Address{}) {
		receiver = t.from
	}

	if err := t.ensureChain(ctx); err != nil {
		return nil, err
	}
	if err := t.preflightDeposit(ctx, vaultAddr, amount); err != nil {
		return nil, err
	}

	parsed, err := t.reader.Registry().VaultABI()
	if err != nil {
		return nil, err
	}
	return t.Transact(ctx, vaultAddr, parsed, "deposit", amount, receiver)
}

func (t *Transactor) preflightDeposit(ctx context.Context, vaultAddr common.Address, amount *big.Int) error {
	asset, err := t.reader.BaseAsset(ctx, vaultAddr)
	if err != nil {
		return fmt.Errorf("read vault asset: %w", err)
	}
	decimals := t.reader.Decimals(ctx, asset)

	balance, err := t.reader.TokenBalance(ctx, asset, t.from)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance,
			FormatAmount(balance, decimals), FormatAmount(amount, decimals))
	}

	allowance, err := t.reader.Allowance(ctx, asset, t.from, vaultAddr)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}
	if !t.cfg.AutoApprove {
		return fmt.Errorf("%w: approved %s, need %s", ErrInsufficientAllowance,
			FormatAmount(allowance, decimals), FormatAmount(amount, decimals))
	}

	t.logger.Info("approving vault before deposit",
		zap.String("token", asset.Hex()),
		zap.String("vault", vaultAddr.Hex()),
		zap.String("amount", FormatAmount(amount, decimals)),
	)
	if _, err := t.Approve(ctx, asset, vaultAddr, amount); err != nil {
		return fmt.Errorf("auto approve: %w", err)
	}
	return nil
}

// Withdraw redeems amount of assets. Zero receiver or owner mean the signer.
func (t *Transactor) Withdraw(ctx context.Context, vaultAddr common.Address, amount *big.Int, receiver, owner common.Address) (*types.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if receiver == (common.Address{}) {
		receiver = t.from
	}
	if owner == (common.Address{}) {
		owner = t.from
	}
	parsed, err := t.reader.Registry().VaultABI()
	if err != nil {
		return nil, err
	}
	return t.Transact(ctx, vaultAddr, parsed, "withdraw", amount, receiver, owner)
}

// CreateVault calls createVault on factory and returns the new vault address
// taken from the VaultCreated log.
func (t *Transactor) CreateVault(ctx context.Context, factory common.Address, factoryABI abi.ABI, config map[string]interface{}) (common.Address, *types.Receipt, error) {
	receipt, err := t.Transact(ctx, factory, factoryABI, "createVault", config)
	if err != nil {
		return common.Address{}, receipt, err
	}
	addr, err := VaultFromReceipt(receipt, factory)
	if err != nil {
		return common.Address{}, receipt, err
	}
	return addr, receipt, nil
}

// VaultFromReceipt extracts the vault address from a VaultCreated log emitted by factory.
func VaultFromReceipt(receipt *types.Receipt, factory common.Address) (common.Address, error) {
	parsed, err := contracts.FactoryABI()
	if err != nil {
		return common.Address{}, err
	}
	topic := parsed.Events["VaultCreated"].ID
	for _, log := range receipt.Logs {
		if log == nil || log.Address != factory || len(log.Topics) < 2 {
			continue
		}
		if log.Topics[0] == topic {
			return common.BytesToAddress(log.Topics[1].Bytes()), nil
		}
	}
	return common.Address{}, fmt.Errorf("VaultCreated event not found in tx %s", receipt.TxHash.Hex())
}

// Deploy creates a contract from bytecode and constructor args.
func (t *Transactor) Deploy(ctx context.Context, parsed abi.ABI, bytecode []byte, args ...interface{}) (common.Address, *types.Receipt, error) {
	if len(bytecode) == 0 {
		return common.Address{}, nil, fmt.Errorf("empty bytecode")
	}
	coerced, err := contracts.CoerceArgs(parsed.Constructor.Inputs, args)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("constructor args: %w", err)
	}
	packed, err := parsed.Pack("", coerced...)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("pack constructor: %w", err)
	}

	data := append(append([]byte{}, bytecode...), packed...)
	receipt, err := t.send(ctx, nil, data)
	if err != nil {
		return common.Address{}, receipt, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, receipt, fmt.Errorf("no contract address in receipt %s", receipt.TxHash.Hex())
	}
	return receipt.ContractAddress, receipt, nil
}

// Transact packs method with args and submits it to to.
func (t *Transactor) Transact(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*types.Receipt, error) {
	m, ok := parsed.Methods[method]
	if !ok {
		return nil, fmt.Errorf("method %s not found in abi", method)
	}
	coerced, err := contracts.CoerceArgs(m.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("%s args: %w", method, err)
	}
	data, err := parsed.Pack(method, coerced...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	receipt, err := t.send(ctx, &to, data)
	if err != nil {
		return receipt, fmt.Errorf("%s: %w", method, err)
	}
	return receipt, nil
}

func (t *Transactor) send(ctx context.Context, to *common.Address, data []byte) (*types.Receipt, error) {
	chainID, err := t.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if err := t.checkChain(chainID); err != nil {
		return nil, err
	}

	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{From: t.from, To: to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%w: estimate gas: %v", ErrTxRejected, err)
	}
	gas += gas * gasHeadroomPct / 100

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       to,
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := types.SignTx(unsigned, types.NewEIP155Signer(chainID), t.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTxRejected, err)
	}

	t.logger.Info("transaction sent", zap.String("tx_hash", signed.Hash().Hex()), zap.Uint64("nonce", nonce), zap.Uint64("gas", gas))
	receipt, err := chain.WaitMined(ctx, t.backend, signed.Hash(), t.cfg.PollInterval)
	if err != nil {
		return receipt, err
	}
	t.logger.Info("transaction mined", zap.String("tx_hash", signed.Hash().Hex()), zap.Stringer("block", receipt.BlockNumber), zap.Uint64("gas_used", receipt.GasUsed))
	return receipt, nil
}

func (t *Transactor) ensureChain(ctx context.Context) error {
	if t.cfg.ChainID == 0 {
		return nil
	}
	got, err := t.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	return t.checkChain(got)
}

func (t *Transactor) checkChain(got *big.Int) error {
	if t.cfg.ChainID == 0 {
		return nil
	}
	if !got.IsUint64() || got.Uint64() != t.cfg.ChainID {
		return fmt.Errorf("%w: rpc reports chain %s, expected %d", ErrWrongNetwork, got, t.cfg.ChainID)
	}
	return nil
}

func (t *Transactor) tokenABI(token common.Address) (abi.ABI, error) {
	registry := t.reader.Registry()
	if usdc, ok := registry.USDCAddress(); ok && usdc == token {
		return registry.USDCABI()
	}
	return contracts.ERC20ABI()
}
