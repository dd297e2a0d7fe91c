package indexer

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"praxos/internal/contracts"
	"praxos/internal/model"
)

// ErrUnknownEvent is returned for logs whose topic0 is not a vault or factory event.
var ErrUnknownEvent = errors.New("unknown event")

// Decoder turns raw vault and factory logs into VaultEvents.
type Decoder struct {
	vault   abi.ABI
	factory abi.ABI
}

func NewDecoder() (*Decoder, error) {
	vaultABI, err := contracts.VaultABI()
	if err != nil {
		return nil, err
	}
	factoryABI, err := contracts.FactoryABI()
	if err != nil {
		return nil, err
	}
	return &Decoder{vault: vaultABI, factory: factoryABI}, nil
}

// Topics returns the topic0 hashes of every event the decoder understands.
func (d *Decoder) Topics() []common.Hash {
	return []common.Hash{
		d.vault.Events[model.EventDeposit].ID,
		d.vault.Events[model.EventWithdraw].ID,
		d.factory.Events[model.EventVaultCreated].ID,
	}
}

// Decode converts log into a VaultEvent stamped with chainID and timestamp.
func (d *Decoder) Decode(chainID uint64, log types.Log, timestamp uint64, ingestedAt time.Time) (model.VaultEvent, error) {
	if len(log.Topics) == 0 {
		return model.VaultEvent{}, ErrUnknownEvent
	}

	event := model.VaultEvent{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Contract:    log.Address.Hex(),
		Vault:       log.Address.Hex(),
		Timestamp:   timestamp,
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
	}

	switch log.Topics[0] {
	case d.vault.Events[model.EventDeposit].ID:
		if len(log.Topics) < 3 {
			return model.VaultEvent{}, fmt.Errorf("deposit: expected 3 topics, got %d", len(log.Topics))
		}
		event.Kind = model.EventDeposit
		event.Sender = topicAddress(log.Topics[1])
		event.Owner = topicAddress(log.Topics[2])
		if err := d.amounts(d.vault, model.EventDeposit, log.Data, &event); err != nil {
			return model.VaultEvent{}, err
		}
	case d.vault.Events[model.EventWithdraw].ID:
		if len(log.Topics) < 4 {
			return model.VaultEvent{}, fmt.Errorf("withdraw: expected 4 topics, got %d", len(log.Topics))
		}
		event.Kind = model.EventWithdraw
		event.Sender = topicAddress(log.Topics[1])
		event.Receiver = topicAddress(log.Topics[2])
		event.Owner = topicAddress(log.Topics[3])
		if err := d.amounts(d.vault, model.EventWithdraw, log.Data, &event); err != nil {
			return model.VaultEvent{}, err
		}
	case d.factory.Events[model.EventVaultCreated].ID:
		if len(log.Topics) < 3 {
			return model.VaultEvent{}, fmt.Errorf("vault created: expected 3 topics, got %d", len(log.Topics))
		}
		event.Kind = model.EventVaultCreated
		event.Vault = topicAddress(log.Topics[1])
		event.Sender = topicAddress(log.Topics[2])

		values := make(map[string]interface{})
		if err := d.factory.UnpackIntoMap(values, model.EventVaultCreated, log.Data); err != nil {
			return model.VaultEvent{}, fmt.Errorf("unpack vault created: %w", err)
		}
		strategy, err := contracts.AsString(values["strategy"])
		if err != nil {
			return model.VaultEvent{}, err
		}
		tier, err := contracts.AsUint8(values["riskTier"])
		if err != nil {
			return model.VaultEvent{}, err
		}
		event.Strategy = strategy
		event.RiskTier = tier
	default:
		return model.VaultEvent{}, ErrUnknownEvent
	}

	return event, nil
}

func (d *Decoder) amounts(parsed abi.ABI, name string, data []byte, event *model.VaultEvent) error {
	values := make(map[string]interface{})
	if err := parsed.UnpackIntoMap(values, name, data); err != nil {
		return fmt.Errorf("unpack %s: %w", name, err)
	}
	assets, err := contracts.AsBigInt(values["assets"])
	if err != nil {
		return fmt.Errorf("%s assets: %w", name, err)
	}
	shares, err := contracts.AsBigInt(values["shares"])
	if err != nil {
		return fmt.Errorf("%s shares: %w", name, err)
	}
	event.Assets = bigString(assets)
	event.Shares = bigString(shares)
	return nil
}

func topicAddress(topic common.Hash) string {
	return common.BytesToAddress(topic.Bytes()).Hex()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
