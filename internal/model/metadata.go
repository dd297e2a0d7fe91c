package model

// VaultMetadata is off-chain descriptive data attached to a vault address.
type VaultMetadata struct {
	VaultAddress string       `json:"vaultAddress"`
	Description  string       `json:"description"`
	APR          float64      `json:"apr"`
	IsNew        bool         `json:"isNew"`
	Assets       []AssetEntry `json:"assets"`
}

// AssetEntry describes one underlying real-world asset.
type AssetEntry struct {
	Address     string `json:"address,omitempty"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Provider    string `json:"provider"`
	Country     string `json:"country"`
	Rating      string `json:"rating"`
	Description string `json:"description"`
}
