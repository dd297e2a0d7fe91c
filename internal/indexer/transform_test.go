package indexer

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"praxos/internal/contracts"
	"praxos/internal/model"
)

var (
	vaultAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	alice       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob         = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func mustABI(t *testing.T, load func() (abi.ABI, error)) abi.ABI {
	t.Helper()
	parsed, err := load()
	if err != nil {
		t.Fatalf("load abi: %v", err)
	}
	return parsed
}

func eventLog(t *testing.T, parsed abi.ABI, name string, address common.Address, indexed []common.Address, values ...interface{}) types.Log {
	t.Helper()
	event := parsed.Events[name]
	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", name, err)
	}
	topics := []common.Hash{event.ID}
	for _, addr := range indexed {
		topics = append(topics, common.BytesToHash(addr.Bytes()))
	}
	return types.Log{
		Address:     address,
		Topics:      topics,
		Data:        data,
		BlockNumber: 10,
		TxHash:      common.HexToHash("0x01"),
		Index:       2,
	}
}

func TestDecodeDeposit(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	log := eventLog(t, mustABI(t, contracts.VaultABI), model.EventDeposit, vaultAddr,
		[]common.Address{alice, bob}, big.NewInt(1_000_000), big.NewInt(990_000))

	event, err := decoder.Decode(123123, log, 1700000000, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event.Kind != model.EventDeposit || event.Vault != vaultAddr.Hex() {
		t.Fatalf("event mismatch: %+v", event)
	}
	if event.Sender != alice.Hex() || event.Owner != bob.Hex() {
		t.Fatalf("participants mismatch: %+v", event)
	}
	if event.Assets != "1000000" || event.Shares != "990000" || event.ChainID != 123123 || event.Timestamp != 1700000000 {
		t.Fatalf("amounts mismatch: %+v", event)
	}
	if event.ID() != log.TxHash.Hex()+":2" {
		t.Fatalf("id mismatch: %s", event.ID())
	}
}

func TestDecodeWithdraw(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	log := eventLog(t, mustABI(t, contracts.VaultABI), model.EventWithdraw, vaultAddr,
		[]common.Address{alice, bob, alice}, big.NewInt(500), big.NewInt(450))

	event, err := decoder.Decode(1, log, 1, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event.Kind != model.EventWithdraw || event.Receiver != bob.Hex() || event.Owner != alice.Hex() {
		t.Fatalf("withdraw mismatch: %+v", event)
	}
	if event.Assets != "500" || event.Shares != "450" {
		t.Fatalf("amounts mismatch: %+v", event)
	}
}

func TestDecodeVaultCreated(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	log := eventLog(t, mustABI(t, contracts.FactoryABI), model.EventVaultCreated, factoryAddr,
		[]common.Address{vaultAddr, alice}, "balanced-diversified", uint8(3))

	event, err := decoder.Decode(1, log, 1, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event.Vault != vaultAddr.Hex() || event.Contract != factoryAddr.Hex() || event.Sender != alice.Hex() {
		t.Fatalf("vault created mismatch: %+v", event)
	}
	if event.Strategy != "balanced-diversified" || event.RiskTier != 3 {
		t.Fatalf("strategy mismatch: %+v", event)
	}
}

func TestDecodeUnknownTopic(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	_, err = decoder.Decode(1, types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}}, 0, time.Unix(0, 0))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
	if len(decoder.Topics()) != 3 {
		t.Fatalf("expected 3 topics")
	}
}
