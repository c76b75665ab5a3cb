package registry

import (
	"bytes"
	"math/big"

	"github.com/dinofi/godino/internal/chain"
	"github.com/dinofi/godino/internal/domain"
	"github.com/dinofi/godino/internal/events"
	"github.com/dinofi/godino/pkg/logger"
)

// Mapper 份额注册表：维护 资产 <-> 份额代币 的双向映射，并从份额代币的
// 余额分布持续派生唯一"控制人"。
//
// 控制人是派生值，不是权威存储：每次触及份额代币余额的转账都会在同一
// 串行事务内通过 OnBalanceChanged 回调重算，任何其他操作都观察不到
// "余额已变、控制人未更新"的中间状态。
type Mapper struct {
	chain   *chain.Chain
	account domain.Account // 注册表模块账户（NFT 托管方、份额代币属主）

	positions map[string]*Position             // AssetRef.Key() -> Position
	byToken   map[domain.Account]domain.AssetRef // 份额代币 -> 资产（反向索引）
	holders   map[domain.Account]map[domain.Account]bool // 份额代币 -> 非零余额持有人
}

// Position 注册表的核心记录
type Position struct {
	Asset      domain.AssetRef
	ClaimToken domain.Account
	Controller domain.Account // 派生值；无人达到阈值时为零地址
}

// ClaimTokenSpec 份额代币创建参数
type ClaimTokenSpec struct {
	Name   string
	Symbol string
	Supply *big.Int // 总供应量，代表 100% 控制权
}

// New 创建注册表
func New(c *chain.Chain) *Mapper {
	m := &Mapper{
		chain:     c,
		positions: make(map[string]*Position),
		byToken:   make(map[domain.Account]domain.AssetRef),
		holders:   make(map[domain.Account]map[domain.Account]bool),
	}
	m.account = c.Params().Registry
	return m
}

// Account 注册表模块账户
func (m *Mapper) Account() domain.Account {
	return m.account
}

// Register 注册资产：锁定资产托管权，铸造全新份额代币（全部供应量记入
// initialController），建立 Position 与反向索引。
//
// 前置条件：资产尚未注册（否则 ErrAlreadyRegistered），且 caller 已将
// 资产授权给注册表账户。
func (m *Mapper) Register(caller domain.Account, asset domain.AssetRef, spec ClaimTokenSpec, initialController domain.Account) (domain.Account, error) {
	var token domain.Account
	err := m.chain.Exec(func(s *chain.State) error {
		if _, exists := m.positions[asset.Key()]; exists {
			return domain.ErrAlreadyRegistered
		}

		// 资产托管权从 caller 转入注册表（需要事先 approve）
		if err := s.TransferNFTFrom(asset.Custodian, m.account, caller, m.account, asset.ID); err != nil {
			return err
		}

		token = s.CreateToken(m.account, spec.Name, spec.Symbol, m)

		pos := &Position{
			Asset:      asset,
			ClaimToken: token,
			Controller: domain.ZeroAccount,
		}
		m.positions[asset.Key()] = pos
		m.byToken[token] = asset

		// 铸造会触发 OnBalanceChanged，initialController 持有全部供应量，
		// 只要阈值 <= 100% 就会立即成为控制人。铸造特权属于注册表自身，
		// 代币也刚刚创建，这里的 Mint 不可能失败
		if err := s.Mint(m.account, token, initialController, spec.Supply); err != nil {
			return err
		}

		s.Emit(events.PositionOpenedEvent{Asset: asset, ClaimToken: token, Controller: pos.Controller})
		logger.Infof("[registry] 注册资产 %s -> 份额代币 %s, 控制人 %s", asset, token.Hex(), pos.Controller.Hex())
		return nil
	})
	return token, err
}

// OnBalanceChanged 份额代币余额变化回调（chain.TransferHook 实现）。
//
// 与触发转账同属一个原子步骤；对格式良好的份额代币绝不失败。
// 先用触及账户维护持有人集合，再重新派生控制人。
func (m *Mapper) OnBalanceChanged(s *chain.State, token domain.Account, touched []domain.Account) {
	asset, ok := m.byToken[token]
	if !ok {
		return // 不是在册份额代币（exit 后的尾随回调），忽略
	}
	set := m.holders[token]
	if set == nil {
		set = make(map[domain.Account]bool)
		m.holders[token] = set
	}
	for _, a := range touched {
		if domain.IsZero(a) {
			continue
		}
		if s.BalanceOf(token, a).Sign() > 0 {
			set[a] = true
		} else {
			delete(set, a)
		}
	}
	pos := m.positions[asset.Key()]
	m.refreshController(s, pos, touched)
}

// refreshController 重新派生控制人。
//
// 阈值判定：余额 >= ownPercentage × totalSupply（向下取整）。
// 并列裁决：原控制人仍达标则原控制人保留（阈值 > 50% 时不可能出现
// 多账户同时达标，但设计不做此假设）；否则新近跨越阈值的账户当选，
// 触及列表从后向前扫描使收款方优先；触及账户均未达标时回退到
// 全体持有人集合（阈值 <= 50% 时达标者可能根本没被本次转账触及）。
// 无人达标则为零地址。
func (m *Mapper) refreshController(s *chain.State, pos *Position, touched []domain.Account) {
	supply := s.TotalSupply(pos.ClaimToken)
	threshold := domain.PortionOf(supply, s.OwnPercentage())

	old := pos.Controller

	next := domain.ZeroAccount
	if !domain.IsZero(old) && supply.Sign() > 0 &&
		s.BalanceOf(pos.ClaimToken, old).Cmp(threshold) >= 0 {
		next = old
	} else if supply.Sign() > 0 {
		for i := len(touched) - 1; i >= 0; i-- {
			c := touched[i]
			if domain.IsZero(c) {
				continue
			}
			if s.BalanceOf(pos.ClaimToken, c).Cmp(threshold) >= 0 {
				next = c
				break
			}
		}
		if domain.IsZero(next) {
			next = m.bestQualifiedHolder(s, pos.ClaimToken, threshold)
		}
	}

	if next != old {
		pos.Controller = next
		s.Emit(events.ControllerChangedEvent{
			ClaimToken: pos.ClaimToken,
			Asset:      pos.Asset,
			Old:        old,
			New:        next,
		})
		logger.Debugf("[registry] 控制人变更 %s: %s -> %s", pos.Asset, old.Hex(), next.Hex())
	}
}

// bestQualifiedHolder 在全体持有人中查找达标账户。阈值 <= 50% 时可能
// 同时有多个达标者：取余额最大者，余额相同取地址较小者，结果确定。
func (m *Mapper) bestQualifiedHolder(s *chain.State, token domain.Account, threshold *big.Int) domain.Account {
	best := domain.ZeroAccount
	var bestBal *big.Int
	for a := range m.holders[token] {
		bal := s.BalanceOf(token, a)
		if bal.Cmp(threshold) < 0 {
			continue
		}
		if bestBal == nil || bal.Cmp(bestBal) > 0 ||
			(bal.Cmp(bestBal) == 0 && bytes.Compare(a[:], best[:]) < 0) {
			best, bestBal = a, bal
		}
	}
	return best
}

// Exit 份额全部回收后退出：销毁全部供应量，资产托管权归还 caller，
// 删除 Position 与反向索引。要求 caller 余额等于全部供应量
// （100%，而不仅是 majority 阈值），否则 ErrNotSoleHolder。
func (m *Mapper) Exit(caller, claimToken domain.Account) error {
	return m.chain.Exec(func(s *chain.State) error {
		asset, ok := m.byToken[claimToken]
		if !ok {
			return domain.ErrUnknownToken
		}
		supply := s.TotalSupply(claimToken)
		if supply.Sign() == 0 || s.BalanceOf(claimToken, caller).Cmp(supply) != 0 {
			return domain.ErrNotSoleHolder
		}

		if err := s.Burn(m.account, claimToken, caller, supply); err != nil {
			return err
		}
		if err := s.TransferNFTFrom(asset.Custodian, m.account, m.account, caller, asset.ID); err != nil {
			return err
		}

		delete(m.positions, asset.Key())
		delete(m.byToken, claimToken)
		delete(m.holders, claimToken)

		s.Emit(events.PositionClosedEvent{Asset: asset, ClaimToken: claimToken, To: caller})
		logger.Infof("[registry] 资产 %s 已退出, 归还 %s", asset, caller.Hex())
		return nil
	})
}

// Query 只读查询 Position
func (m *Mapper) Query(asset domain.AssetRef) (Position, bool) {
	var (
		out Position
		ok  bool
	)
	m.chain.View(func(s *chain.State) {
		out, ok = m.find(asset)
	})
	return out, ok
}

// QueryByToken 按份额代币反查 Position
func (m *Mapper) QueryByToken(token domain.Account) (Position, bool) {
	var (
		out Position
		ok  bool
	)
	m.chain.View(func(s *chain.State) {
		if asset, found := m.byToken[token]; found {
			out, ok = m.find(asset)
		}
	})
	return out, ok
}

// find 事务内查找（返回副本）。仅在链事务内调用。
func (m *Mapper) find(asset domain.AssetRef) (Position, bool) {
	pos, ok := m.positions[asset.Key()]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Find 事务内查找 Position 副本。仅供其他模块在链事务内调用。
func (m *Mapper) Find(asset domain.AssetRef) (Position, bool) {
	return m.find(asset)
}

// FindByToken 事务内按份额代币反查。仅供其他模块在链事务内调用。
func (m *Mapper) FindByToken(token domain.Account) (Position, bool) {
	asset, ok := m.byToken[token]
	if !ok {
		return Position{}, false
	}
	return m.find(asset)
}

// Positions 返回全部 Position 副本（网关列表接口用）
func (m *Mapper) Positions() []Position {
	var out []Position
	m.chain.View(func(s *chain.State) {
		for _, pos := range m.positions {
			out = append(out, *pos)
		}
	})
	return out
}
