package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestCoerceCreateVaultConfig(t *testing.T) {
	parsed, err := FactoryABI()
	if err != nil {
		t.Fatalf("factory abi: %v", err)
	}

	config := map[string]interface{}{
		"baseAsset":      "0x00000000000000000000000000000000000000a1",
		"name":           "Balanced Diversified Vault",
		"symbol":         "BAL-VAULT",
		"strategy":       "balanced-diversified",
		"riskTier":       3,
		"targetDuration": big.NewInt(1095 * 86400),
		"assets":         []string{"0x00000000000000000000000000000000000000b1", "0x00000000000000000000000000000000000000b2"},
		"weights":        []uint64{6000, 4000},
	}

	args, err := CoerceArgs(parsed.Methods["createVault"].Inputs, []interface{}{config})
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	if _, err := parsed.Pack("createVault", args...); err != nil {
		t.Fatalf("pack: %v", err)
	}
}

func TestCoerceMissingTupleField(t *testing.T) {
	parsed, err := FactoryABI()
	if err != nil {
		t.Fatalf("factory abi: %v", err)
	}
	_, err = CoerceArgs(parsed.Methods["createVault"].Inputs, []interface{}{map[string]interface{}{"name": "x"}})
	if err == nil {
		t.Fatalf("expected missing field error")
	}
}

func TestCoerceScalars(t *testing.T) {
	parsed, err := ERC20ABI()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	inputs := parsed.Methods["approve"].Inputs

	args, err := CoerceArgs(inputs, []interface{}{"0x00000000000000000000000000000000000000c1", "1000000"})
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	if args[0].(common.Address) != common.HexToAddress("0xc1") {
		t.Fatalf("address mismatch: %v", args[0])
	}
	if args[1].(*big.Int).Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("amount mismatch: %v", args[1])
	}

	if _, err := CoerceArgs(inputs, []interface{}{"nope", 1}); err == nil {
		t.Fatalf("expected invalid address error")
	}
	if _, err := CoerceArgs(inputs, []interface{}{common.Address{}, -1}); err == nil {
		t.Fatalf("expected negative uint error")
	}
	if _, err := CoerceArgs(inputs, []interface{}{common.Address{}}); err == nil {
		t.Fatalf("expected arity error")
	}
}

func TestAsUint8Overflow(t *testing.T) {
	if _, err := AsUint8(big.NewInt(300)); err == nil {
		t.Fatalf("expected overflow")
	}
	v, err := AsUint8(uint8(5))
	if err != nil || v != 5 {
		t.Fatalf("unexpected %d %v", v, err)
	}
}
