package deploy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact is a compiled contract as emitted by Hardhat.
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// Parsed returns the artifact ABI.
func (a Artifact) Parsed() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse %s abi: %w", a.ContractName, err)
	}
	return parsed, nil
}

// Code returns the creation bytecode.
func (a Artifact) Code() ([]byte, error) {
	code, err := hexutil.Decode(a.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("decode %s bytecode: %w", a.ContractName, err)
	}
	return code, nil
}

// Artifacts indexes compiled contracts by name.
type Artifacts struct {
	byName map[string]Artifact
}

// LoadArtifacts walks <dir>/contracts for Hardhat artifact files.
// Debug files (*.dbg.json) and build-info are ignored.
func LoadArtifacts(dir string) (*Artifacts, error) {
	root := filepath.Join(dir, "contracts")
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("artifacts dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifacts path %s is not a directory", root)
	}

	out := &Artifacts{byName: make(map[string]Artifact)}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".dbg.json") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read artifact %s: %w", path, err)
		}
		var artifact Artifact
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return fmt.Errorf("parse artifact %s: %w", path, err)
		}
		if artifact.ContractName == "" {
			artifact.ContractName = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		out.byName[artifact.ContractName] = artifact
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NewArtifacts builds an index from already-loaded artifacts.
func NewArtifacts(list ...Artifact) *Artifacts {
	out := &Artifacts{byName: make(map[string]Artifact, len(list))}
	for _, a := range list {
		out.byName[a.ContractName] = a
	}
	return out
}

// Get returns the artifact for a contract name.
func (a *Artifacts) Get(name string) (Artifact, error) {
	artifact, ok := a.byName[name]
	if !ok {
		return Artifact{}, fmt.Errorf("artifact %s not found", name)
	}
	return artifact, nil
}
