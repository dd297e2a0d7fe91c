package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller executes read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Call packs method with args, executes an eth_call against to, and unpacks the result.
func Call(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	m, ok := parsed.Methods[method]
	if !ok {
		return nil, fmt.Errorf("method %s not found in abi", method)
	}

	coerced, err := CoerceArgs(m.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("%s args: %w", method, err)
	}
	data, err := parsed.Pack(method, coerced...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// AsAddress converts an unpacked ABI value into an address.
func AsAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

// AsAddresses converts an unpacked ABI value into an address slice.
func AsAddresses(value interface{}) ([]common.Address, error) {
	switch v := value.(type) {
	case []common.Address:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported address slice type %T", value)
	}
}

// AsBigInt converts an unpacked ABI integer into a new *big.Int.
func AsBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

// AsBigInts converts an unpacked ABI integer slice.
func AsBigInts(value interface{}) ([]*big.Int, error) {
	switch v := value.(type) {
	case []*big.Int:
		return v, nil
	case []uint8, []uint16, []uint32, []uint64:
		return nil, fmt.Errorf("narrow integer slices are not supported (%T)", value)
	default:
		return nil, fmt.Errorf("unsupported int slice type %T", value)
	}
}

// AsUint8 converts an unpacked ABI integer into uint8.
func AsUint8(value interface{}) (uint8, error) {
	b, err := AsBigInt(value)
	if err != nil {
		return 0, err
	}
	if b.Sign() < 0 || b.BitLen() > 8 {
		return 0, fmt.Errorf("uint8 overflow: %s", b)
	}
	return uint8(b.Uint64()), nil
}

// AsString converts an unpacked ABI string.
func AsString(value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unsupported string type %T", value)
	}
	return s, nil
}

// AsBool converts an unpacked ABI bool.
func AsBool(value interface{}) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("unsupported bool type %T", value)
	}
	return b, nil
}
