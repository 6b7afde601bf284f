package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Metadata is the content of a metadata.json file of a corpus item, e.g.
//
//	{"ContractName":"Vyper_contract","CompilerVersion":"vyper:0.3.1","Runs":0,"OptimizationUsed":false,"BytecodeHash":"8321..."}
type Metadata struct {
	ContractName     string `json:"ContractName"`
	CompilerVersion  string `json:"CompilerVersion"`
	Runs             int64  `json:"Runs"`
	OptimizationUsed bool   `json:"OptimizationUsed"`
	BytecodeHash     string `json:"BytecodeHash"`
}

func decodeMetadata(r io.Reader) (Metadata, error) {
	var m Metadata
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return Metadata{}, fmt.Errorf("decoding metadata: %w", err)
	}
	if m.BytecodeHash == "" {
		return Metadata{}, fmt.Errorf("decoding metadata: empty BytecodeHash")
	}
	return m, nil
}

// CompilerSupported reports whether the item was compiled by a solc version with
// the given prefix. Vyper contracts are never supported.
func (m Metadata) CompilerSupported(prefix string) bool {
	return strings.HasPrefix(m.CompilerVersion, prefix) && !strings.Contains(m.CompilerVersion, "vyper")
}
