package registry

import (
	"errors"
	"math/big"
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dinofi/godino/internal/chain"
	"github.com/dinofi/godino/internal/domain"
)

var (
	testAdmin = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	testAlice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testBob   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	testCarol = common.HexToAddress("0x00000000000000000000000000000000000000a3")
)

// setup 创建链与注册表，铸造一件资产给 alice 并授权注册表
func setup(t *testing.T) (*chain.Chain, *Mapper, domain.AssetRef) {
	t.Helper()
	c := chain.New(chain.Config{Admin: testAdmin, Receiver: testAdmin, Controller: testAdmin})
	m := New(c)

	series := c.Params().NFTSeries
	id := big.NewInt(1)
	err := c.Exec(func(s *chain.State) error {
		if err := s.MintNFT(testAdmin, series, id, testAlice); err != nil {
			return err
		}
		return s.ApproveNFT(series, testAlice, c.Params().Registry, id)
	})
	if err != nil {
		t.Fatalf("准备资产失败: %v", err)
	}
	return c, m, domain.NewAssetRef(series, id)
}

func register(t *testing.T, c *chain.Chain, m *Mapper, asset domain.AssetRef, supply int64) domain.Account {
	t.Helper()
	token, err := m.Register(testAlice, asset, ClaimTokenSpec{
		Name: "Claim", Symbol: "CLM", Supply: big.NewInt(supply),
	}, testAlice)
	if err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	return token
}

func TestRegisterEstablishesPosition(t *testing.T) {
	c, m, asset := setup(t)
	token := register(t, c, m, asset, 100)

	pos, ok := m.Query(asset)
	if !ok {
		t.Fatal("注册后查询不到 Position")
	}
	if pos.ClaimToken != token {
		t.Fatalf("份额代币不一致: got=%s want=%s", pos.ClaimToken.Hex(), token.Hex())
	}
	// 初始持有人持有 100% 供应量，立即成为控制人
	if pos.Controller != testAlice {
		t.Fatalf("初始控制人错误: got=%s want=%s", pos.Controller.Hex(), testAlice.Hex())
	}
	if got := c.BalanceOf(token, testAlice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("初始份额余额错误: got=%s want=100", got)
	}

	// 资产托管权已转入注册表
	c.View(func(s *chain.State) {
		owner, _ := s.NFTOwnerOf(asset.Custodian, asset.ID)
		if owner != c.Params().Registry {
			t.Fatalf("资产应由注册表托管: got=%s", owner.Hex())
		}
	})

	// 反向索引
	if back, ok := m.QueryByToken(token); !ok || back.Asset.Key() != asset.Key() {
		t.Fatal("按份额代币反查失败")
	}

	// 重复注册
	if _, err := m.Register(testAlice, asset, ClaimTokenSpec{Name: "X", Symbol: "X", Supply: big.NewInt(1)}, testAlice); !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("重复注册应返回 ErrAlreadyRegistered, got=%v", err)
	}
}

func TestControllerFollowsMajority(t *testing.T) {
	c, m, asset := setup(t)
	token := register(t, c, m, asset, 100)

	// alice 100 -> bob 60: alice 跌破 51, bob 跨越 51
	if err := c.Transfer(token, testAlice, testBob, big.NewInt(60)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}
	if pos, _ := m.Query(asset); pos.Controller != testBob {
		t.Fatalf("bob 持有 60%% 应为控制人: got=%s", pos.Controller.Hex())
	}

	// bob 60 -> carol 51: 控制权再次移交
	if err := c.Transfer(token, testBob, testCarol, big.NewInt(51)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}
	if pos, _ := m.Query(asset); pos.Controller != testCarol {
		t.Fatalf("carol 持有 51%% 应为控制人: got=%s", pos.Controller.Hex())
	}

	// 不跨越阈值的小额转账不改变控制人
	if err := c.Transfer(token, testAlice, testBob, big.NewInt(10)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}
	if pos, _ := m.Query(asset); pos.Controller != testCarol {
		t.Fatalf("控制人不应变化: got=%s", pos.Controller.Hex())
	}
}

func TestNoMajorityMeansNoController(t *testing.T) {
	c, m, asset := setup(t)
	token := register(t, c, m, asset, 100)

	// 最终分布 A:45 B:15 C:40 —— 无人达到 51
	if err := c.Transfer(token, testAlice, testBob, big.NewInt(15)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}
	if err := c.Transfer(token, testAlice, testCarol, big.NewInt(40)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}

	pos, _ := m.Query(asset)
	if !domain.IsZero(pos.Controller) {
		t.Fatalf("无人过半时控制人应为零地址: got=%s", pos.Controller.Hex())
	}
}

// 阈值 <= 50% 时可能同时有多个达标账户，且达标者未必被触发转账触及
func TestLowThresholdControllerFallback(t *testing.T) {
	c, m, asset := setup(t)
	err := c.Exec(func(s *chain.State) error {
		return s.SetOwnPercentage(testAdmin, domain.Pct(40, 100))
	})
	if err != nil {
		t.Fatalf("设置阈值失败: %v", err)
	}
	token := register(t, c, m, asset, 100)

	// alice 100 -> bob 50: 两人都达到 40，并列时原控制人保留
	if err := c.Transfer(token, testAlice, testBob, big.NewInt(50)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}
	if pos, _ := m.Query(asset); pos.Controller != testAlice {
		t.Fatalf("并列时原控制人应保留: got=%s", pos.Controller.Hex())
	}

	// alice 50 -> carol 20: alice=30 bob=50 carol=20，只有 bob 达标，
	// 但 bob 没被本次转账触及，必须从持有人集合中找到他
	if err := c.Transfer(token, testAlice, testCarol, big.NewInt(20)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}
	if pos, _ := m.Query(asset); pos.Controller != testBob {
		t.Fatalf("原控制人跌破后应选达标者: got=%s want=%s", pos.Controller.Hex(), testBob.Hex())
	}

	// bob 50 -> carol 40: bob=10 carol=60，控制权经触及账户正常移交
	if err := c.Transfer(token, testBob, testCarol, big.NewInt(40)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}
	if pos, _ := m.Query(asset); pos.Controller != testCarol {
		t.Fatalf("控制权移交错误: got=%s", pos.Controller.Hex())
	}

	// carol 60 -> alice 30: alice=60 carol=30，唯一达标者是 alice
	if err := c.Transfer(token, testCarol, testAlice, big.NewInt(30)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}
	if pos, _ := m.Query(asset); pos.Controller != testAlice {
		t.Fatalf("控制权移交错误: got=%s", pos.Controller.Hex())
	}
}

func TestExitRequiresSoleHolder(t *testing.T) {
	c, m, asset := setup(t)
	token := register(t, c, m, asset, 100)

	if err := c.Transfer(token, testAlice, testBob, big.NewInt(40)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}

	// 60% 不够：退出要求 100%
	if err := m.Exit(testAlice, token); !errors.Is(err, domain.ErrNotSoleHolder) {
		t.Fatalf("非全额持有退出应返回 ErrNotSoleHolder, got=%v", err)
	}

	// 集齐全部份额后退出
	if err := c.Transfer(token, testBob, testAlice, big.NewInt(40)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}
	if err := m.Exit(testAlice, token); err != nil {
		t.Fatalf("全额持有退出失败: %v", err)
	}

	// 份额销毁、资产归还、映射删除
	if got := c.TotalSupply(token); got.Sign() != 0 {
		t.Fatalf("退出后供应量应为零: got=%s", got)
	}
	c.View(func(s *chain.State) {
		owner, _ := s.NFTOwnerOf(asset.Custodian, asset.ID)
		if owner != testAlice {
			t.Fatalf("资产应归还 alice: got=%s", owner.Hex())
		}
	})
	if _, ok := m.Query(asset); ok {
		t.Fatal("退出后 Position 应被删除")
	}

	// 同一资产可以再次注册（新的生命周期）
	err := c.Exec(func(s *chain.State) error {
		return s.ApproveNFT(asset.Custodian, testAlice, c.Params().Registry, asset.ID)
	})
	if err != nil {
		t.Fatalf("再次授权失败: %v", err)
	}
	if _, err := m.Register(testAlice, asset, ClaimTokenSpec{Name: "C2", Symbol: "C2", Supply: big.NewInt(10)}, testAlice); err != nil {
		t.Fatalf("退出后再次注册失败: %v", err)
	}
}

// 属性：任意转账序列后，控制人为零地址 当且仅当 无人达到阈值；
// 控制人非零时其余额必 >= ownPercentage × totalSupply
func TestPropertyControllerConsistency(t *testing.T) {
	accounts := []domain.Account{testAlice, testBob, testCarol}

	property := func(seed int64, steps int) bool {
		c := chain.New(chain.Config{Admin: testAdmin, Receiver: testAdmin, Controller: testAdmin})
		m := New(c)
		series := c.Params().NFTSeries
		id := big.NewInt(1)
		err := c.Exec(func(s *chain.State) error {
			if err := s.MintNFT(testAdmin, series, id, testAlice); err != nil {
				return err
			}
			return s.ApproveNFT(series, testAlice, c.Params().Registry, id)
		})
		if err != nil {
			return false
		}
		asset := domain.NewAssetRef(series, id)
		token, err := m.Register(testAlice, asset, ClaimTokenSpec{Name: "P", Symbol: "P", Supply: big.NewInt(100)}, testAlice)
		if err != nil {
			return false
		}

		rng := rand.New(rand.NewSource(seed))
		threshold := domain.PortionOf(big.NewInt(100), c.Params().OwnPercentage)

		for i := 0; i < steps; i++ {
			from := accounts[rng.Intn(len(accounts))]
			to := accounts[rng.Intn(len(accounts))]
			_ = c.Transfer(token, from, to, big.NewInt(rng.Int63n(60)))

			pos, ok := m.Query(asset)
			if !ok {
				return false
			}

			var holder domain.Account
			for _, a := range accounts {
				if c.BalanceOf(token, a).Cmp(threshold) >= 0 {
					holder = a
					break // 阈值 > 50%，至多一个账户达标
				}
			}
			if pos.Controller != holder {
				t.Logf("控制人与余额分布不一致: controller=%s holder=%s",
					pos.Controller.Hex(), holder.Hex())
				return false
			}
		}
		return true
	}

	cfg := &quick.Config{
		MaxCount: 40,
		Values: func(values []reflect.Value, rng *rand.Rand) {
			values[0] = reflect.ValueOf(rng.Int63())
			values[1] = reflect.ValueOf(1 + rng.Intn(25))
		},
	}
	if err := quick.Check(property, cfg); err != nil {
		t.Fatalf("属性检验失败: %v", err)
	}
}
