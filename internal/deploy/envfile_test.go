package deploy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUpsertEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	original := "# rpc settings\nRAYLS_RPC_URL=https://devnet-rpc.rayls.com\nMOCK_USDC_ADDRESS=0xold\n\nPRIVATE_KEY=abc\n"
	if err := os.WriteFile(path, []byte(original), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := UpsertEnvFile(path, []EnvVar{
		{Key: "MOCK_USDC_ADDRESS", Value: "0xnew"},
		{Key: "PRAXOS_FACTORY_ADDRESS", Value: "0xfactory"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "# rpc settings\nRAYLS_RPC_URL=https://devnet-rpc.rayls.com\nMOCK_USDC_ADDRESS=0xnew\n\nPRIVATE_KEY=abc\nPRAXOS_FACTORY_ADDRESS=0xfactory\n"
	if string(got) != want {
		t.Fatalf("env mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestUpsertEnvFileCreates(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := UpsertEnvFile(path, []EnvVar{{Key: "A", Value: "1"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "A=1\n" {
		t.Fatalf("unexpected content %q", got)
	}
}
