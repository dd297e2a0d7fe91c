package contracts

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var bigIntType = reflect.TypeOf(new(big.Int))

// CoerceArgs converts loosely typed values into the Go types the ABI packer expects.
// Integers may be given as *big.Int, Go ints, or decimal strings; addresses as
// common.Address or hex strings; tuples as map[string]interface{} keyed by the
// Solidity field name. Values already of the right type pass through.
func CoerceArgs(args abi.Arguments, values []interface{}) ([]interface{}, error) {
	if len(args) != len(values) {
		return nil, fmt.Errorf("argument count mismatch: abi wants %d, got %d", len(args), len(values))
	}
	out := make([]interface{}, len(values))
	for i, arg := range args {
		v, err := CoerceValue(arg.Type, values[i])
		if err != nil {
			name := arg.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("argument %s: %w", name, err)
		}
		out[i] = v
	}
	return out, nil
}

// CoerceValue converts v into the Go representation of t.
func CoerceValue(t abi.Type, v interface{}) (interface{}, error) {
	if v != nil && t.T != abi.TupleTy && reflect.TypeOf(v) == t.GetType() {
		return v, nil
	}

	switch t.T {
	case abi.IntTy, abi.UintTy:
		b, err := toBig(v)
		if err != nil {
			return nil, err
		}
		return fitInt(t, b)
	case abi.AddressTy:
		return toAddress(v)
	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case abi.SliceTy, abi.ArrayTy:
		return coerceList(t, v)
	case abi.TupleTy:
		return coerceTuple(t, v)
	default:
		return v, nil
	}
}

func coerceList(t abi.Type, v interface{}) (interface{}, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	if t.T == abi.ArrayTy && rv.Len() != t.Size {
		return nil, fmt.Errorf("expected %d elements, got %d", t.Size, rv.Len())
	}

	goType := t.GetType()
	var out reflect.Value
	if t.T == abi.SliceTy {
		out = reflect.MakeSlice(goType, rv.Len(), rv.Len())
	} else {
		out = reflect.New(goType).Elem()
	}
	for i := 0; i < rv.Len(); i++ {
		elem, err := CoerceValue(*t.Elem, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(reflect.ValueOf(elem))
	}
	return out.Interface(), nil
}

func coerceTuple(t abi.Type, v interface{}) (interface{}, error) {
	fields, ok := v.(map[string]interface{})
	if !ok {
		if v != nil && reflect.TypeOf(v).Kind() == reflect.Struct {
			return v, nil
		}
		return nil, fmt.Errorf("expected map for tuple, got %T", v)
	}

	out := reflect.New(t.TupleType).Elem()
	for i, name := range t.TupleRawNames {
		raw, ok := fields[name]
		if !ok {
			return nil, fmt.Errorf("tuple field %s missing", name)
		}
		val, err := CoerceValue(*t.TupleElems[i], raw)
		if err != nil {
			return nil, fmt.Errorf("tuple field %s: %w", name, err)
		}
		out.Field(i).Set(reflect.ValueOf(val))
	}
	return out.Interface(), nil
}

func fitInt(t abi.Type, b *big.Int) (interface{}, error) {
	if t.T == abi.UintTy && b.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s for uint%d", b, t.Size)
	}
	if b.BitLen() > t.Size {
		return nil, fmt.Errorf("value %s overflows %d bits", b, t.Size)
	}

	goType := t.GetType()
	if goType == bigIntType {
		return new(big.Int).Set(b), nil
	}
	out := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		out.SetUint(b.Uint64())
	} else {
		out.SetInt(b.Int64())
	}
	return out.Interface(), nil
}

func toBig(v interface{}) (*big.Int, error) {
	switch x := v.(type) {
	case string:
		b, ok := new(big.Int).SetString(x, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", x)
		}
		return b, nil
	case int:
		return big.NewInt(int64(x)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	default:
		return AsBigInt(v)
	}
}

func toAddress(v interface{}) (common.Address, error) {
	if s, ok := v.(string); ok {
		if !common.IsHexAddress(s) {
			return common.Address{}, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	}
	return AsAddress(v)
}
