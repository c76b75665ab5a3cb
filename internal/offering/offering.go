package offering

import (
	"math/big"

	"github.com/dinofi/godino/internal/chain"
	"github.com/dinofi/godino/internal/domain"
	"github.com/dinofi/godino/internal/events"
	"github.com/dinofi/godino/pkg/logger"
)

// Book 认购模块：每个份额代币一个认购池。
//
// 认购是"锁仓权重"式的：用户在截止块前存入价值代币作为权重，
// 截止后按权重比例领取认购份额，本金扣除协议费后退回；
// 池主在认购结束后清扫剩余份额（保留 ownPercentage 的控制权部分，
// 其余按受益人比例分配）。
type Book struct {
	chain   *chain.Chain
	account domain.Account // 认购模块账户（份额与本金的托管方）

	pools map[domain.Account]*Pool // 份额代币 -> 认购池
}

// BeneficiarySlots 受益人槽位数（与原始协议一致固定为 4）
const BeneficiarySlots = 4

// Pool 认购池
type Pool struct {
	Token          domain.Account // 认购标的（份额代币）
	PaymentToken   domain.Account // 用户存入的价值代币
	Owner          domain.Account // 池主（资产发起人）
	EndBlock       uint64
	EscrowAmount   *big.Int // 创建时押入池中的份额总量
	OfferingAmount *big.Int // 仍可被认购领取的份额量（随领取递减）
	TotalAmount    *big.Int // 当前存入的价值代币总量（随领取/提取递减）

	Beneficiaries [BeneficiarySlots]domain.Account
	Percentages   [BeneficiarySlots]*big.Int // 1e18 定点，作用于清扫时的剩余份额

	userAmounts map[domain.Account]*big.Int
	ownerSwept  bool
}

// PoolView 认购池只读快照
type PoolView struct {
	Token          domain.Account
	PaymentToken   domain.Account
	Owner          domain.Account
	EndBlock       uint64
	OfferingAmount *big.Int
	TotalAmount    *big.Int
}

// New 创建认购模块
func New(c *chain.Chain) *Book {
	b := &Book{
		chain: c,
		pools: make(map[domain.Account]*Pool),
	}
	b.account = c.Params().Offering
	return b
}

// Account 认购模块账户
func (b *Book) Account() domain.Account {
	return b.account
}

// NewOffering 开池。仅前门账户（params.Controller）可调用；
// 从 caller 押入 escrowAmount 的份额代币，其中 offeringAmount 可被认购。
func (b *Book) NewOffering(caller, token, paymentToken, owner domain.Account, endBlock uint64, escrowAmount, offeringAmount *big.Int, beneficiaries [BeneficiarySlots]domain.Account, percentages [BeneficiarySlots]*big.Int) error {
	return b.chain.Exec(func(s *chain.State) error {
		if caller != s.ParamsView().Controller {
			return domain.ErrForbidden
		}
		if _, exists := b.pools[token]; exists {
			return domain.ErrPoolExists
		}
		// 受益人比例之和不得超过 100%，否则清扫时会侵占池主份额
		total := new(big.Int)
		for _, p := range percentages {
			if p == nil {
				continue
			}
			if p.Sign() < 0 {
				return domain.ErrBadPercentage
			}
			total.Add(total, p)
		}
		if total.Cmp(domain.One18) > 0 {
			return domain.ErrBadPercentage
		}
		if err := s.TransferFrom(token, b.account, caller, b.account, escrowAmount); err != nil {
			return err
		}

		pool := &Pool{
			Token:          token,
			PaymentToken:   paymentToken,
			Owner:          owner,
			EndBlock:       endBlock,
			EscrowAmount:   new(big.Int).Set(escrowAmount),
			OfferingAmount: new(big.Int).Set(offeringAmount),
			TotalAmount:    big.NewInt(0),
			Beneficiaries:  beneficiaries,
			userAmounts:    make(map[domain.Account]*big.Int),
		}
		for i, p := range percentages {
			if p == nil {
				p = big.NewInt(0)
			}
			pool.Percentages[i] = new(big.Int).Set(p)
		}
		b.pools[token] = pool
		logger.Infof("[offering] 开池 %s: 池主=%s 截止=%d 认购量=%s", token.Hex(), owner.Hex(), endBlock, offeringAmount.String())
		return nil
	})
}

// Deposit 截止块前存入价值代币作为认购权重
func (b *Book) Deposit(caller, token domain.Account, amount *big.Int) error {
	return b.chain.Exec(func(s *chain.State) error {
		pool, ok := b.pools[token]
		if !ok {
			return domain.ErrUnknownPool
		}
		if s.BlockNumber() >= pool.EndBlock {
			return domain.ErrAuctionOver
		}
		if err := s.TransferFrom(pool.PaymentToken, b.account, caller, b.account, amount); err != nil {
			return err
		}
		ua, ok := pool.userAmounts[caller]
		if !ok {
			ua = big.NewInt(0)
			pool.userAmounts[caller] = ua
		}
		ua.Add(ua, amount)
		pool.TotalAmount.Add(pool.TotalAmount, amount)
		return nil
	})
}

// Withdraw 截止块前撤回部分或全部权重
func (b *Book) Withdraw(caller, token domain.Account, amount *big.Int) error {
	return b.chain.Exec(func(s *chain.State) error {
		pool, ok := b.pools[token]
		if !ok {
			return domain.ErrUnknownPool
		}
		if s.BlockNumber() >= pool.EndBlock {
			return domain.ErrAuctionOver
		}
		ua, ok := pool.userAmounts[caller]
		if !ok || ua.Cmp(amount) < 0 {
			return domain.ErrInsufficientBalance
		}
		if err := s.Transfer(pool.PaymentToken, b.account, caller, amount); err != nil {
			return err
		}
		ua.Sub(ua, amount)
		pool.TotalAmount.Sub(pool.TotalAmount, amount)
		return nil
	})
}

// Claim 截止块后按权重领取认购份额；本金扣除协议费后退回，
// 费路由给 Receiver。份额 = 剩余认购量 × 用户权重 / 剩余权重总量
// （随领取逐步递减保证比例精确）。
func (b *Book) Claim(caller, token domain.Account) error {
	return b.chain.Exec(func(s *chain.State) error {
		pool, ok := b.pools[token]
		if !ok {
			return domain.ErrUnknownPool
		}
		if s.BlockNumber() < pool.EndBlock {
			return domain.ErrAuctionNotOver
		}
		ua, ok := pool.userAmounts[caller]
		if !ok || ua.Sign() == 0 {
			return domain.ErrNothingToClaim
		}

		shares := new(big.Int).Mul(pool.OfferingAmount, ua)
		shares.Div(shares, pool.TotalAmount)

		fee := domain.PortionOf(ua, s.FeePercentage())
		refund := new(big.Int).Sub(ua, fee)

		if shares.Sign() > 0 {
			if err := s.Transfer(pool.Token, b.account, caller, shares); err != nil {
				return err
			}
		}
		if fee.Sign() > 0 {
			if err := s.Transfer(pool.PaymentToken, b.account, s.Receiver(), fee); err != nil {
				return err
			}
		}
		if refund.Sign() > 0 {
			if err := s.Transfer(pool.PaymentToken, b.account, caller, refund); err != nil {
				return err
			}
		}

		pool.OfferingAmount.Sub(pool.OfferingAmount, shares)
		pool.TotalAmount.Sub(pool.TotalAmount, ua)
		delete(pool.userAmounts, caller)

		s.Emit(events.OfferingClaimedEvent{Token: token, User: caller, Shares: shares, Refund: refund, Fee: fee})
		logger.Debugf("[offering] %s 领取 %s 份额, 退回 %s (费 %s)", caller.Hex(), shares.String(), refund.String(), fee.String())
		return nil
	})
}

// ClaimOwner 截止块后池主清扫：保留 ownPercentage × 份额供应量的控制权
// 部分给池主，剩余按受益人比例分配，其余（含未售出的认购量）归池主。
// 一次为限。
func (b *Book) ClaimOwner(caller, token domain.Account) error {
	return b.chain.Exec(func(s *chain.State) error {
		pool, ok := b.pools[token]
		if !ok {
			return domain.ErrUnknownPool
		}
		if s.BlockNumber() < pool.EndBlock {
			return domain.ErrAuctionNotOver
		}
		if caller != pool.Owner {
			return domain.ErrNotOwner
		}
		if pool.ownerSwept {
			return domain.ErrAlreadySettled
		}

		held := s.BalanceOf(pool.Token, b.account)
		supply := s.TotalSupply(pool.Token)
		ownReserve := domain.PortionOf(supply, s.OwnPercentage())

		// 剩余份额 = 持有量 - 控制权保留 - 未被领取的认购量
		remainder := new(big.Int).Sub(held, ownReserve)
		remainder.Sub(remainder, pool.OfferingAmount)
		if remainder.Sign() < 0 {
			remainder = big.NewInt(0)
		}

		paidOut := big.NewInt(0)
		for i, beneficiary := range pool.Beneficiaries {
			if domain.IsZero(beneficiary) || pool.Percentages[i].Sign() == 0 {
				continue
			}
			cut := domain.PortionOf(remainder, pool.Percentages[i])
			if cut.Sign() == 0 {
				continue
			}
			if err := s.Transfer(pool.Token, b.account, beneficiary, cut); err != nil {
				return err
			}
			paidOut.Add(paidOut, cut)
		}

		// 其余全部归池主（控制权保留 + 剩余份额扣除受益人分成 + 未售认购量）
		ownerShare := new(big.Int).Sub(held, paidOut)
		if ownerShare.Sign() > 0 {
			if err := s.Transfer(pool.Token, b.account, pool.Owner, ownerShare); err != nil {
				return err
			}
		}
		pool.ownerSwept = true
		logger.Infof("[offering] 池 %s 清扫: 池主得 %s, 受益人合计 %s", token.Hex(), ownerShare.String(), paidOut.String())
		return nil
	})
}

// Query 只读查询认购池
func (b *Book) Query(token domain.Account) (PoolView, bool) {
	var (
		out PoolView
		ok  bool
	)
	b.chain.View(func(s *chain.State) {
		pool, found := b.pools[token]
		if !found {
			return
		}
		out = PoolView{
			Token:          pool.Token,
			PaymentToken:   pool.PaymentToken,
			Owner:          pool.Owner,
			EndBlock:       pool.EndBlock,
			OfferingAmount: new(big.Int).Set(pool.OfferingAmount),
			TotalAmount:    new(big.Int).Set(pool.TotalAmount),
		}
		ok = true
	})
	return out, ok
}

// UserAmount 查询用户当前权重
func (b *Book) UserAmount(token, user domain.Account) *big.Int {
	out := big.NewInt(0)
	b.chain.View(func(s *chain.State) {
		pool, ok := b.pools[token]
		if !ok {
			return
		}
		if ua, ok := pool.userAmounts[user]; ok {
			out = new(big.Int).Set(ua)
		}
	})
	return out
}
