package chain

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dinofi/godino/internal/domain"
	"github.com/dinofi/godino/internal/events"
	"github.com/dinofi/godino/pkg/logger"
)

// Chain 协议的共享状态存储。
//
// 执行模型：没有内部线程、没有协作式调度。每个公共操作（转账、注册、出价、
// 领取……）都通过 Exec 以独占方式执行，是一个不可分割的串行事务：
// 要么完整成功（所有不变量重建完毕），要么在任何状态变更前失败返回。
// 不同调用方的操作由锁完全排序，绝不会交错到一半。
type Chain struct {
	mu    sync.Mutex
	state State
}

// Config 链引导配置
type Config struct {
	Admin      domain.Account
	Receiver   domain.Account // 协议费接收账户（staker）
	Controller domain.Account // 前门账户（允许创建认购池）

	OwnPercentage      *big.Int // majority 阈值（1e18 定点，默认 51%）
	FeePercentage      *big.Int // 协议费比例（1e18 定点，默认 0.1%）
	OfferingPercentage *big.Int // 认购比例（1e18 定点，默认 10%）
	ExitPercentage     *big.Int // 退出比例（1e18 定点，默认 100%）
	NewNFTFee          *big.Int // 创建资产费用（默认 0）

	Journal *events.Journal // 可选事件日志
}

// New 引导一条新链：初始化参数、派生模块账户、创建枢纽价值代币（DINO）
// 与内部 NFT 系列（Dino721）。
func New(cfg Config) *Chain {
	c := &Chain{}
	s := &c.state

	s.tokens = make(map[domain.Account]*Token)
	s.nftSeries = make(map[domain.Account]*NFTSeries)
	s.journal = cfg.Journal

	p := &s.params
	p.Admin = cfg.Admin
	p.Receiver = cfg.Receiver
	p.Controller = cfg.Controller
	p.Minters = make(map[domain.Account]bool)

	p.OwnPercentage = orDefault(cfg.OwnPercentage, domain.Pct(51, 100))
	p.FeePercentage = orDefault(cfg.FeePercentage, domain.Pct(1, 1000))
	p.OfferingPercentage = orDefault(cfg.OfferingPercentage, domain.Pct(10, 100))
	p.ExitPercentage = orDefault(cfg.ExitPercentage, domain.Pct(100, 100))
	p.NewNFTFee = orDefault(cfg.NewNFTFee, big.NewInt(0))

	// 模块账户从管理员地址确定性派生（与合约部署地址的派生方式一致）
	p.Registry = crypto.CreateAddress(cfg.Admin, 1)
	p.Auction = crypto.CreateAddress(cfg.Admin, 2)
	p.Offering = crypto.CreateAddress(cfg.Admin, 3)

	p.ValueToken = s.createToken(cfg.Admin, "Dino", "DINO", nil)

	p.NFTSeries = s.createNFTSeries(cfg.Admin, "Dino721")

	logger.Infof("[chain] 链已引导: admin=%s valueToken=%s registry=%s auction=%s offering=%s",
		p.Admin.Hex(), p.ValueToken.Hex(), p.Registry.Hex(), p.Auction.Hex(), p.Offering.Hex())
	return c
}

func orDefault(v *big.Int, def *big.Int) *big.Int {
	if v == nil {
		return def
	}
	return new(big.Int).Set(v)
}

// Exec 以独占方式执行一个操作。fn 返回错误时要求自身未做任何状态变更
// （检查先于变更），因此错误即整体回绝。
func (c *Chain) Exec(fn func(s *State) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(&c.state)
}

// View 以独占方式执行一个只读查询
func (c *Chain) View(fn func(s *State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
}

// 以下是面向外部调用方（用户钱包 / 网关）的便捷事务封装。

// Transfer 代币转账
func (c *Chain) Transfer(token, from, to domain.Account, amount *big.Int) error {
	return c.Exec(func(s *State) error {
		return s.Transfer(token, from, to, amount)
	})
}

// Approve 设置额度
func (c *Chain) Approve(token, owner, spender domain.Account, amount *big.Int) error {
	return c.Exec(func(s *State) error {
		return s.Approve(token, owner, spender, amount)
	})
}

// Mint 铸造（仅限 minter / 代币属主模块）
func (c *Chain) Mint(caller, token, to domain.Account, amount *big.Int) error {
	return c.Exec(func(s *State) error {
		return s.Mint(caller, token, to, amount)
	})
}

// BalanceOf 查询余额
func (c *Chain) BalanceOf(token, account domain.Account) *big.Int {
	var out *big.Int
	c.View(func(s *State) {
		out = s.BalanceOf(token, account)
	})
	return out
}

// TotalSupply 查询总供应量
func (c *Chain) TotalSupply(token domain.Account) *big.Int {
	var out *big.Int
	c.View(func(s *State) {
		out = s.TotalSupply(token)
	})
	return out
}

// BlockNumber 当前逻辑时钟
func (c *Chain) BlockNumber() uint64 {
	var out uint64
	c.View(func(s *State) {
		out = s.BlockNumber()
	})
	return out
}

// AdvanceBlock 推进逻辑时钟 n 格
func (c *Chain) AdvanceBlock(n uint64) uint64 {
	var out uint64
	_ = c.Exec(func(s *State) error {
		out = s.AdvanceBlock(n)
		return nil
	})
	return out
}

// Params 返回当前参数快照
func (c *Chain) Params() ParamsView {
	var out ParamsView
	c.View(func(s *State) {
		out = s.ParamsView()
	})
	return out
}
