package auction

import (
	"math/big"

	"github.com/dinofi/godino/internal/chain"
	"github.com/dinofi/godino/internal/domain"
	"github.com/dinofi/godino/internal/events"
	"github.com/dinofi/godino/internal/registry"
	"github.com/dinofi/godino/pkg/logger"
)

// Engine 拍卖引擎：英式递增拍卖，押金全程由引擎账户独占托管，
// 退款走 pull 账本，结算按角色 exactly-once。
//
// 每个 lot 的状态机：Open/Bidding -> Matured -> Settled。
// Matured 没有显式转换调用，是每个操作都检查的时间闸
// （逻辑时钟 >= maturity）；Settled 在 winner 与 seller 双方领取后达成。
type Engine struct {
	chain   *chain.Chain
	mapper  *registry.Mapper
	account domain.Account // 引擎模块账户（押金与托管的独占持有方）

	lots   map[uint64]*Lot
	nextID uint64
}

// Lot 一次拍卖实例
type Lot struct {
	ID           uint64
	PaymentToken domain.Account
	Asset        domain.AssetRef
	Seller       domain.Account
	Maturity     uint64   // 逻辑时钟；到达后停止接受出价
	ReservePrice *big.Int // 最低首次出价（可为零）
	HighBidder   domain.Account
	HighBid      *big.Int

	// refundOwed 被超出价方的 pull 退款账本。
	// 绝不在第三方出价的事务里同步向任意账户推送价值——
	// "标记欠款"与"领取"解耦是本模块的安全关键点。
	RefundOwed map[domain.Account]*big.Int

	// settled 已完成领取的角色账户集合（winner 领资产一次、
	// seller 领款一次），保证每角色 exactly-once。
	Settled map[domain.Account]bool

	// escrowedClaim 包装资产场景下引擎实际托管的份额数量
	// （创建时刻的 ownPercentage × totalSupply）；外部资产场景为 nil。
	escrowedClaim *big.Int
	claimToken    domain.Account
	external      bool
}

// LotView lot 只读快照
type LotView struct {
	ID           uint64
	PaymentToken domain.Account
	Asset        domain.AssetRef
	Seller       domain.Account
	Maturity     uint64
	ReservePrice *big.Int
	HighBidder   domain.Account
	HighBid      *big.Int
	RefundOwed   map[domain.Account]*big.Int
	Settled      []domain.Account
	External     bool
}

// New 创建拍卖引擎
func New(c *chain.Chain, m *registry.Mapper) *Engine {
	e := &Engine{
		chain:  c,
		mapper: m,
		lots:   make(map[uint64]*Lot),
	}
	e.account = c.Params().Auction
	return e
}

// Account 引擎模块账户
func (e *Engine) Account() domain.Account {
	return e.account
}

// CreateLot 开启一次拍卖。
//
// 包装资产：caller 必须是注册表当前控制人；引擎按 ownPercentage ×
// totalSupply 从 caller 划走份额（走和普通转账完全相同的
// OnBalanceChanged 路径），拍卖期间引擎自身成为注册表认定的控制人。
// 外部资产：caller 必须直接持有该资产；引擎取得直接托管权。
func (e *Engine) CreateLot(caller domain.Account, paymentToken domain.Account, asset domain.AssetRef, seller domain.Account, maturity uint64, reservePrice *big.Int) (uint64, error) {
	var lotID uint64
	err := e.chain.Exec(func(s *chain.State) error {
		if maturity <= s.BlockNumber() {
			return domain.ErrMaturityInPast
		}

		lot := &Lot{
			PaymentToken: paymentToken,
			Asset:        asset,
			Seller:       seller,
			Maturity:     maturity,
			ReservePrice: new(big.Int).Set(reservePrice),
			HighBidder:   domain.ZeroAccount,
			HighBid:      new(big.Int).Set(reservePrice),
			RefundOwed:   make(map[domain.Account]*big.Int),
			Settled:      make(map[domain.Account]bool),
		}

		if pos, ok := e.mapper.Find(asset); ok {
			// 包装资产：按阈值押入份额，引擎经由同一回调路径接任控制人
			if pos.Controller != caller {
				return domain.ErrNotController
			}
			supply := s.TotalSupply(pos.ClaimToken)
			threshold := domain.PortionOf(supply, s.OwnPercentage())
			if err := s.TransferFrom(pos.ClaimToken, e.account, caller, e.account, threshold); err != nil {
				return err
			}
			lot.claimToken = pos.ClaimToken
			lot.escrowedClaim = threshold
		} else {
			// 外部资产：直接托管
			owner, ok := s.NFTOwnerOf(asset.Custodian, asset.ID)
			if !ok || owner != caller {
				return domain.ErrNotOwner
			}
			if err := s.TransferNFTFrom(asset.Custodian, e.account, caller, e.account, asset.ID); err != nil {
				return err
			}
			lot.external = true
		}

		e.nextID++
		lot.ID = e.nextID
		e.lots[lot.ID] = lot
		lotID = lot.ID

		s.Emit(events.LotCreatedEvent{
			LotID:        lot.ID,
			Asset:        asset,
			Seller:       seller,
			PaymentToken: paymentToken,
			Maturity:     maturity,
			ReservePrice: new(big.Int).Set(reservePrice),
		})
		logger.Infof("[auction] 创建 lot %d: 资产=%s 卖方=%s 到期=%d 保留价=%s",
			lot.ID, asset, seller.Hex(), maturity, reservePrice.String())
		return nil
	})
	return lotID, err
}

// Bid 出价。仅在逻辑时钟 < maturity 时有效；必须严格高于当前最高价
// （首次出价必须严格高于保留价）。全额押入新出价；原最高出价方的押金
// 记入 pull 退款账本，绝不同步推送。当前最高出价方再次出价视为一次
// 全新的独立出价：旧押金照常转为可退款，新押金全额押入（不做净额）。
func (e *Engine) Bid(caller domain.Account, lotID uint64, amount *big.Int) error {
	return e.chain.Exec(func(s *chain.State) error {
		lot, ok := e.lots[lotID]
		if !ok {
			return domain.ErrUnknownLot
		}
		if s.BlockNumber() >= lot.Maturity {
			return domain.ErrAuctionOver
		}
		if amount.Cmp(lot.HighBid) <= 0 {
			return domain.ErrBidTooLow
		}
		if err := s.TransferFrom(lot.PaymentToken, e.account, caller, e.account, amount); err != nil {
			return err
		}

		if !domain.IsZero(lot.HighBidder) {
			owed, ok := lot.RefundOwed[lot.HighBidder]
			if !ok {
				owed = big.NewInt(0)
				lot.RefundOwed[lot.HighBidder] = owed
			}
			owed.Add(owed, lot.HighBid)
			s.Emit(events.RefundQueuedEvent{LotID: lotID, Bidder: lot.HighBidder, Amount: new(big.Int).Set(lot.HighBid)})
		}

		lot.HighBidder = caller
		lot.HighBid = new(big.Int).Set(amount)

		s.Emit(events.BidPlacedEvent{LotID: lotID, Bidder: caller, Amount: new(big.Int).Set(amount)})
		logger.Debugf("[auction] lot %d 新高价: %s -> %s", lotID, caller.Hex(), amount.String())
		return nil
	})
}

// Claim 按调用方角色与时钟状态分派：
//   - 有退款欠账的被超出价方：任何时刻可领，领取后清零；
//   - 到期后的最高出价方：领取资产控制权，一次为限；
//   - 到期后的卖方：领取成交款扣除协议费（费路由给 Receiver）；
//     若从未有合格出价则收回押入的资产/份额；一次为限；
//   - 其余组合按到期与否返回 ErrAuctionNotOver / ErrAlreadySettled /
//     ErrNothingToClaim。
func (e *Engine) Claim(caller domain.Account, lotID uint64) error {
	return e.chain.Exec(func(s *chain.State) error {
		lot, ok := e.lots[lotID]
		if !ok {
			return domain.ErrUnknownLot
		}

		// 退款没有时间闸：到期前后都可领
		if owed, ok := lot.RefundOwed[caller]; ok && owed.Sign() > 0 {
			amount := new(big.Int).Set(owed)
			if err := s.Transfer(lot.PaymentToken, e.account, caller, amount); err != nil {
				return err
			}
			delete(lot.RefundOwed, caller)
			s.Emit(events.RefundPaidEvent{LotID: lotID, Bidder: caller, Amount: amount})
			logger.Debugf("[auction] lot %d 退款 %s -> %s", lotID, amount.String(), caller.Hex())
			return nil
		}

		matured := s.BlockNumber() >= lot.Maturity

		switch {
		case caller == lot.HighBidder && !domain.IsZero(lot.HighBidder):
			if !matured {
				return domain.ErrAuctionNotOver
			}
			if lot.Settled[caller] {
				return domain.ErrAlreadySettled
			}
			if err := e.releaseEscrow(s, lot, caller); err != nil {
				return err
			}
			lot.Settled[caller] = true
			s.Emit(events.LotSettledEvent{LotID: lotID, Role: "winner", Party: caller})
			logger.Infof("[auction] lot %d 成交: 资产归 %s", lotID, caller.Hex())
			return nil

		case caller == lot.Seller:
			if !matured {
				return domain.ErrAuctionNotOver
			}
			if lot.Settled[caller] {
				return domain.ErrAlreadySettled
			}
			if domain.IsZero(lot.HighBidder) {
				// 流拍：收回押入的份额/资产，而不是收款
				if err := e.releaseEscrow(s, lot, caller); err != nil {
					return err
				}
				lot.Settled[caller] = true
				s.Emit(events.LotSettledEvent{LotID: lotID, Role: "reclaim", Party: caller})
				logger.Infof("[auction] lot %d 流拍, 资产收回 %s", lotID, caller.Hex())
				return nil
			}
			fee := domain.PortionOf(lot.HighBid, s.FeePercentage())
			proceeds := new(big.Int).Sub(lot.HighBid, fee)
			if fee.Sign() > 0 {
				if err := s.Transfer(lot.PaymentToken, e.account, s.Receiver(), fee); err != nil {
					return err
				}
			}
			if err := s.Transfer(lot.PaymentToken, e.account, caller, proceeds); err != nil {
				return err
			}
			lot.Settled[caller] = true
			s.Emit(events.LotSettledEvent{LotID: lotID, Role: "seller", Party: caller, Amount: proceeds})
			logger.Infof("[auction] lot %d 卖方结算: %s (费 %s)", lotID, proceeds.String(), fee.String())
			return nil

		default:
			return domain.ErrNothingToClaim
		}
	})
}

// releaseEscrow 把押入的控制权交给 to：包装资产走与创建时相同的份额
// 转移路径（回调里 to 可能随之成为控制人），外部资产直接划转托管权。
func (e *Engine) releaseEscrow(s *chain.State, lot *Lot, to domain.Account) error {
	if lot.external {
		return s.TransferNFTFrom(lot.Asset.Custodian, e.account, e.account, to, lot.Asset.ID)
	}
	return s.Transfer(lot.claimToken, e.account, to, lot.escrowedClaim)
}

// Lot 只读查询
func (e *Engine) Lot(lotID uint64) (LotView, bool) {
	var (
		out LotView
		ok  bool
	)
	e.chain.View(func(s *chain.State) {
		lot, found := e.lots[lotID]
		if !found {
			return
		}
		out = lot.view()
		ok = true
	})
	return out, ok
}

// Lots 列出全部 lot 快照（网关列表接口用）
func (e *Engine) Lots() []LotView {
	var out []LotView
	e.chain.View(func(s *chain.State) {
		for _, lot := range e.lots {
			out = append(out, lot.view())
		}
	})
	return out
}

func (l *Lot) view() LotView {
	v := LotView{
		ID:           l.ID,
		PaymentToken: l.PaymentToken,
		Asset:        l.Asset,
		Seller:       l.Seller,
		Maturity:     l.Maturity,
		ReservePrice: new(big.Int).Set(l.ReservePrice),
		HighBidder:   l.HighBidder,
		HighBid:      new(big.Int).Set(l.HighBid),
		RefundOwed:   make(map[domain.Account]*big.Int, len(l.RefundOwed)),
		External:     l.external,
	}
	for a, owed := range l.RefundOwed {
		v.RefundOwed[a] = new(big.Int).Set(owed)
	}
	for a := range l.Settled {
		v.Settled = append(v.Settled, a)
	}
	return v
}
