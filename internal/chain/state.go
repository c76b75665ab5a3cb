package chain

import (
	"github.com/dinofi/godino/internal/domain"
	"github.com/dinofi/godino/internal/events"
)

// State 链的可变状态。所有方法都假定调用发生在 Chain.Exec/View 事务内，
// 自身不加锁；模块（registry/auction/offering）在事务内直接操作 State。
type State struct {
	block      uint64
	params     Params
	tokens     map[domain.Account]*Token
	nftSeries  map[domain.Account]*NFTSeries
	tokenNonce uint64
	nftNonce   uint64
	journal    *events.Journal
}

// BlockNumber 当前逻辑时钟（单调非减）
func (s *State) BlockNumber() uint64 {
	return s.block
}

// AdvanceBlock 推进逻辑时钟 n 格，返回新块高
func (s *State) AdvanceBlock(n uint64) uint64 {
	s.block += n
	s.emit(events.BlockAdvancedEvent{Block: s.block})
	return s.block
}

func (s *State) emit(payload any) {
	if s.journal != nil {
		s.journal.Emit(payload)
	}
}

// Emit 在当前事务内发出一个协议事件（供模块使用）
func (s *State) Emit(payload any) {
	s.emit(payload)
}
