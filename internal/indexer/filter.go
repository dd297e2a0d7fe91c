package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseAddresses validates hex contract addresses, skipping blanks.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		if input = strings.TrimSpace(input); input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		out = append(out, common.HexToAddress(input))
	}
	return out, nil
}

// EventTopics resolves a topic0 filter. Each entry is either an event name the decoder
// knows (Deposit, Withdraw, VaultCreated) or a 32-byte hex hash.
func (d *Decoder) EventTopics(inputs []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		if input = strings.TrimSpace(input); input == "" {
			continue
		}
		if id, ok := d.topicByName(input); ok {
			out = append(out, id)
			continue
		}
		raw, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("unknown event or topic: %s", input)
		}
		if len(raw) != common.HashLength {
			return nil, fmt.Errorf("invalid topic0 length: %s", input)
		}
		out = append(out, common.BytesToHash(raw))
	}
	return out, nil
}

func (d *Decoder) topicByName(name string) (common.Hash, bool) {
	if ev, ok := d.vault.Events[name]; ok {
		return ev.ID, true
	}
	if ev, ok := d.factory.Events[name]; ok {
		return ev.ID, true
	}
	return common.Hash{}, false
}
