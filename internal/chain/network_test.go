package chain

import "testing"

func TestLookupNetwork(t *testing.T) {
	n, err := LookupNetwork(" Rayls_Devnet ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.ChainID != 123123 {
		t.Fatalf("chain id mismatch: %d", n.ChainID)
	}
	if n.NativeCurrency.Symbol != "USDgas" || n.NativeCurrency.Decimals != 18 {
		t.Fatalf("native currency mismatch: %+v", n.NativeCurrency)
	}

	if _, err := LookupNetwork("mainnet"); err == nil {
		t.Fatalf("expected error for unknown network")
	}
}

func TestExplorerLinks(t *testing.T) {
	n := Network{ExplorerURL: "https://explorer.example/"}
	if got := n.AddressURL("0xabc"); got != "https://explorer.example/address/0xabc" {
		t.Fatalf("address url mismatch: %s", got)
	}
	if got := n.TxURL("0xdef"); got != "https://explorer.example/tx/0xdef" {
		t.Fatalf("tx url mismatch: %s", got)
	}
	if got := Hardhat.TxURL("0xdef"); got != "" {
		t.Fatalf("expected empty url without explorer, got %s", got)
	}
}
