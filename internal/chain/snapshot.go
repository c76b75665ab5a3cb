package chain

import (
	"encoding/json"
	"sort"
)

// Snapshot 链状态的可序列化快照（审计/落盘用，只读导出）。
// 余额和供应量用十进制字符串表达，避免 JSON 数字精度问题。
type Snapshot struct {
	Block  uint64          `json:"block"`
	Tokens []TokenSnapshot `json:"tokens"`
	NFTs   []NFTSnapshot   `json:"nfts"`
}

// TokenSnapshot 单个代币账本的快照
type TokenSnapshot struct {
	Address     string            `json:"address"`
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	TotalSupply string            `json:"total_supply"`
	Balances    map[string]string `json:"balances"` // 账户 hex -> 余额
}

// NFTSnapshot 单个 NFT 系列的快照
type NFTSnapshot struct {
	Address string            `json:"address"`
	Name    string            `json:"name"`
	Owners  map[string]string `json:"owners"` // 资产 ID -> 持有人 hex
}

// ExportSnapshot 导出当前状态快照。仅在事务内调用。
func (s *State) ExportSnapshot() Snapshot {
	snap := Snapshot{Block: s.block}

	for addr, t := range s.tokens {
		ts := TokenSnapshot{
			Address:     addr.Hex(),
			Name:        t.name,
			Symbol:      t.symbol,
			TotalSupply: t.totalSupply.String(),
			Balances:    make(map[string]string, len(t.balances)),
		}
		for acct, bal := range t.balances {
			if bal.Sign() == 0 {
				continue
			}
			ts.Balances[acct.Hex()] = bal.String()
		}
		snap.Tokens = append(snap.Tokens, ts)
	}
	sort.Slice(snap.Tokens, func(i, j int) bool { return snap.Tokens[i].Address < snap.Tokens[j].Address })

	for addr, ns := range s.nftSeries {
		n := NFTSnapshot{
			Address: addr.Hex(),
			Name:    ns.name,
			Owners:  make(map[string]string, len(ns.owners)),
		}
		for id, owner := range ns.owners {
			n.Owners[id] = owner.Hex()
		}
		snap.NFTs = append(snap.NFTs, n)
	}
	sort.Slice(snap.NFTs, func(i, j int) bool { return snap.NFTs[i].Address < snap.NFTs[j].Address })

	return snap
}

// Snapshot 导出当前状态快照（独占读）
func (c *Chain) Snapshot() Snapshot {
	var snap Snapshot
	c.View(func(s *State) {
		snap = s.ExportSnapshot()
	})
	return snap
}

// MarshalSnapshot 快照 -> JSON
func MarshalSnapshot(snap Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

// UnmarshalSnapshot JSON -> 快照
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	err := json.Unmarshal(data, &snap)
	return snap, err
}
