package main

import (
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dinofi/godino/internal/auction"
	"github.com/dinofi/godino/internal/chain"
	"github.com/dinofi/godino/internal/domain"
	"github.com/dinofi/godino/internal/events"
	"github.com/dinofi/godino/internal/registry"
	"github.com/dinofi/godino/pkg/logger"
)

// 一条链上的完整剧本：注册资产 -> 份额流转 -> 控制人变更 -> 拍卖 -> 结算。
// 用来人肉验证各模块的交互，不是自动化测试。
func main() {
	if err := logger.Init(logger.Config{Level: "debug"}); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	admin := common.HexToAddress("0x00000000000000000000000000000000000000a0")
	alice := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000a2")
	carol := common.HexToAddress("0x00000000000000000000000000000000000000a3")

	journal := events.NewJournal(0)
	c := chain.New(chain.Config{Admin: admin, Receiver: admin, Controller: admin, Journal: journal})
	mapper := registry.New(c)
	engine := auction.New(c, mapper)

	p := c.Params()
	dino := p.ValueToken
	series := p.NFTSeries

	// 铸造价值代币与一件资产
	for _, acct := range []domain.Account{alice, bob, carol} {
		must(c.Mint(admin, dino, acct, big.NewInt(1_000_000)))
	}
	assetID := big.NewInt(1)
	must(c.Exec(func(s *chain.State) error {
		return s.MintNFT(admin, series, assetID, alice)
	}))
	asset := domain.NewAssetRef(series, assetID)

	// alice 注册资产，拿到全部份额并成为控制人
	must(c.Exec(func(s *chain.State) error {
		return s.ApproveNFT(series, alice, p.Registry, assetID)
	}))
	token, err := mapper.Register(alice, asset, registry.ClaimTokenSpec{
		Name: "Dino Asset 1", Symbol: "DA1", Supply: big.NewInt(100),
	}, alice)
	must(err)
	pos, _ := mapper.Query(asset)
	fmt.Printf("注册完成: claimToken=%s 控制人=%s\n", token.Hex(), pos.Controller.Hex())

	// 份额流转：alice 跌破阈值，bob 跨越阈值
	must(c.Transfer(token, alice, bob, big.NewInt(60)))
	pos, _ = mapper.Query(asset)
	fmt.Printf("转让 60%% 份额后控制人: %s (bob=%s)\n", pos.Controller.Hex(), bob.Hex())

	// bob 以控制人身份开拍卖
	must(c.Exec(func(s *chain.State) error {
		return s.Approve(token, bob, p.Auction, big.NewInt(100))
	}))
	maturity := c.BlockNumber() + 10
	lotID, err := engine.CreateLot(bob, dino, asset, bob, maturity, big.NewInt(0))
	must(err)
	fmt.Printf("lot %d 创建, 到期块 %d\n", lotID, maturity)

	// carol 与 alice 轮流出价
	for _, bid := range []struct {
		who    domain.Account
		amount int64
	}{{carol, 1000}, {alice, 2000}, {carol, 3000}} {
		must(c.Exec(func(s *chain.State) error {
			return s.Approve(dino, bid.who, p.Auction, big.NewInt(bid.amount))
		}))
		must(engine.Bid(bid.who, lotID, big.NewInt(bid.amount)))
	}

	// alice 随时可领退款
	must(engine.Claim(alice, lotID))

	// 到期后双方结算
	c.AdvanceBlock(10)
	must(engine.Claim(carol, lotID)) // winner 领份额
	must(engine.Claim(bob, lotID))   // seller 领款

	pos, _ = mapper.Query(asset)
	fmt.Printf("结算完成: 控制人=%s (carol=%s)\n", pos.Controller.Hex(), carol.Hex())
	fmt.Printf("bob 余额: %s, 协议费接收方余额: %s\n",
		c.BalanceOf(dino, bob).String(), c.BalanceOf(dino, admin).String())
	fmt.Printf("共记录 %d 条事件\n", len(journal.Recent(0)))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
