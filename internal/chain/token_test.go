package chain

import (
	"errors"
	"math/big"
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dinofi/godino/internal/domain"
)

var (
	testAdmin = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	testAlice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testBob   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	testCarol = common.HexToAddress("0x00000000000000000000000000000000000000a3")
)

func newTestChain(t *testing.T) *Chain {
	t.Helper()
	return New(Config{Admin: testAdmin, Receiver: testAdmin, Controller: testAdmin})
}

func TestMintAndTransfer(t *testing.T) {
	c := newTestChain(t)
	dino := c.Params().ValueToken

	if err := c.Mint(testAdmin, dino, testAlice, big.NewInt(1000)); err != nil {
		t.Fatalf("管理员铸造失败: %v", err)
	}
	if got := c.BalanceOf(dino, testAlice); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("铸造后余额错误: got=%s want=1000", got)
	}
	if got := c.TotalSupply(dino); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("铸造后总供应量错误: got=%s want=1000", got)
	}

	if err := c.Transfer(dino, testAlice, testBob, big.NewInt(300)); err != nil {
		t.Fatalf("转账失败: %v", err)
	}
	if got := c.BalanceOf(dino, testAlice); got.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("转出方余额错误: got=%s want=700", got)
	}
	if got := c.BalanceOf(dino, testBob); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("转入方余额错误: got=%s want=300", got)
	}

	// 余额不足必须整体回绝，不能只扣一半
	if err := c.Transfer(dino, testBob, testAlice, big.NewInt(301)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("余额不足应返回 ErrInsufficientBalance, got=%v", err)
	}
	if got := c.BalanceOf(dino, testBob); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("失败的转账不应改变余额: got=%s want=300", got)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	c := newTestChain(t)
	dino := c.Params().ValueToken

	if err := c.Mint(testAdmin, dino, testAlice, big.NewInt(1000)); err != nil {
		t.Fatalf("铸造失败: %v", err)
	}
	if err := c.Approve(dino, testAlice, testBob, big.NewInt(500)); err != nil {
		t.Fatalf("授权失败: %v", err)
	}

	err := c.Exec(func(s *State) error {
		return s.TransferFrom(dino, testBob, testAlice, testCarol, big.NewInt(200))
	})
	if err != nil {
		t.Fatalf("凭额度划转失败: %v", err)
	}

	var allowance *big.Int
	c.View(func(s *State) { allowance = s.Allowance(dino, testAlice, testBob) })
	if allowance.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("划转后额度错误: got=%s want=300", allowance)
	}

	// 超出剩余额度
	err = c.Exec(func(s *State) error {
		return s.TransferFrom(dino, testBob, testAlice, testCarol, big.NewInt(301))
	})
	if !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Fatalf("超额划转应返回 ErrInsufficientAllowance, got=%v", err)
	}

	// 本人划转不消耗额度
	err = c.Exec(func(s *State) error {
		return s.TransferFrom(dino, testAlice, testAlice, testBob, big.NewInt(100))
	})
	if err != nil {
		t.Fatalf("本人划转失败: %v", err)
	}
	c.View(func(s *State) { allowance = s.Allowance(dino, testAlice, testBob) })
	if allowance.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("本人划转不应消耗额度: got=%s want=300", allowance)
	}
}

func TestMintBurnGate(t *testing.T) {
	c := newTestChain(t)
	dino := c.Params().ValueToken

	if err := c.Mint(testAlice, dino, testAlice, big.NewInt(1)); !errors.Is(err, domain.ErrNotMinter) {
		t.Fatalf("非属主铸造应返回 ErrNotMinter, got=%v", err)
	}

	// 管理员授予铸造权后放行
	err := c.Exec(func(s *State) error {
		return s.SetMinter(testAdmin, testAlice)
	})
	if err != nil {
		t.Fatalf("授予铸造权失败: %v", err)
	}
	if err := c.Mint(testAlice, dino, testAlice, big.NewInt(1)); err != nil {
		t.Fatalf("持有铸造权后铸造失败: %v", err)
	}

	err = c.Exec(func(s *State) error {
		return s.Burn(testBob, dino, testAlice, big.NewInt(1))
	})
	if !errors.Is(err, domain.ErrNotMinter) {
		t.Fatalf("非属主销毁应返回 ErrNotMinter, got=%v", err)
	}
}

func TestParamsAdminGate(t *testing.T) {
	c := newTestChain(t)

	err := c.Exec(func(s *State) error {
		return s.SetOwnPercentage(testAlice, domain.Pct(60, 100))
	})
	if !errors.Is(err, domain.ErrNotAdmin) {
		t.Fatalf("非管理员改参数应返回 ErrNotAdmin, got=%v", err)
	}

	err = c.Exec(func(s *State) error {
		return s.SetOwnPercentage(testAdmin, domain.Pct(60, 100))
	})
	if err != nil {
		t.Fatalf("管理员改参数失败: %v", err)
	}
	if got := c.Params().OwnPercentage; got.Cmp(domain.Pct(60, 100)) != 0 {
		t.Fatalf("参数未生效: got=%s", got)
	}
}

func TestNFTCustody(t *testing.T) {
	c := newTestChain(t)
	series := c.Params().NFTSeries
	id := big.NewInt(7)

	err := c.Exec(func(s *State) error {
		return s.MintNFT(testAdmin, series, id, testAlice)
	})
	if err != nil {
		t.Fatalf("铸造资产失败: %v", err)
	}

	// 重复 ID
	err = c.Exec(func(s *State) error {
		return s.MintNFT(testAdmin, series, id, testBob)
	})
	if !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("重复铸造应返回 ErrAlreadyRegistered, got=%v", err)
	}

	// 未授权的第三方不能划转
	err = c.Exec(func(s *State) error {
		return s.TransferNFTFrom(series, testBob, testAlice, testBob, id)
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("未授权划转应返回 ErrForbidden, got=%v", err)
	}

	// 授权后放行，且划转清除旧授权
	err = c.Exec(func(s *State) error {
		if err := s.ApproveNFT(series, testAlice, testBob, id); err != nil {
			return err
		}
		return s.TransferNFTFrom(series, testBob, testAlice, testBob, id)
	})
	if err != nil {
		t.Fatalf("授权划转失败: %v", err)
	}
	c.View(func(s *State) {
		owner, ok := s.NFTOwnerOf(series, id)
		if !ok || owner != testBob {
			t.Fatalf("划转后持有人错误: got=%s want=%s", owner.Hex(), testBob.Hex())
		}
	})
	err = c.Exec(func(s *State) error {
		return s.TransferNFTFrom(series, testAlice, testBob, testAlice, id)
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("旧授权应在划转后失效, got=%v", err)
	}
}

func TestMintNFTFee(t *testing.T) {
	c := newTestChain(t)
	dino := c.Params().ValueToken
	series := c.Params().NFTSeries

	err := c.Exec(func(s *State) error {
		if err := s.SetNewNFTFee(testAdmin, big.NewInt(10)); err != nil {
			return err
		}
		return s.SetMinter(testAdmin, testAlice)
	})
	if err != nil {
		t.Fatalf("准备参数失败: %v", err)
	}

	// 余额不足时整笔铸造回绝
	err = c.Exec(func(s *State) error {
		return s.MintNFT(testAlice, series, big.NewInt(1), testAlice)
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("付不起费用应返回 ErrInsufficientBalance, got=%v", err)
	}
	c.View(func(s *State) {
		if _, ok := s.NFTOwnerOf(series, big.NewInt(1)); ok {
			t.Fatal("失败的铸造不应留下资产")
		}
	})

	if err := c.Mint(testAdmin, dino, testAlice, big.NewInt(100)); err != nil {
		t.Fatalf("铸造价值代币失败: %v", err)
	}
	err = c.Exec(func(s *State) error {
		return s.MintNFT(testAlice, series, big.NewInt(1), testAlice)
	})
	if err != nil {
		t.Fatalf("付费铸造失败: %v", err)
	}
	if got := c.BalanceOf(dino, testAlice); got.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("铸造费未扣除: got=%s want=90", got)
	}
	if got := c.BalanceOf(dino, testAdmin); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("铸造费未到账: got=%s want=10", got)
	}

	// 管理员免收铸造费
	err = c.Exec(func(s *State) error {
		return s.MintNFT(testAdmin, series, big.NewInt(2), testBob)
	})
	if err != nil {
		t.Fatalf("管理员铸造失败: %v", err)
	}
	if got := c.BalanceOf(dino, testAdmin); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("管理员不应被收费: got=%s", got)
	}
}

// 属性：任何成功的转账序列都保持总供应量不变，且余额之和等于总供应量
func TestPropertyTransferPreservesSupply(t *testing.T) {
	accounts := []domain.Account{testAlice, testBob, testCarol}

	property := func(seed int64, moves []uint8) bool {
		c := New(Config{Admin: testAdmin, Receiver: testAdmin, Controller: testAdmin})
		dino := c.Params().ValueToken
		if err := c.Mint(testAdmin, dino, testAlice, big.NewInt(10000)); err != nil {
			return false
		}

		rng := rand.New(rand.NewSource(seed))
		for _, m := range moves {
			from := accounts[int(m)%len(accounts)]
			to := accounts[rng.Intn(len(accounts))]
			amount := big.NewInt(rng.Int63n(3000))
			// 余额不足的转账允许失败，但失败必须不改变任何余额
			before := c.BalanceOf(dino, from)
			if err := c.Transfer(dino, from, to, amount); err != nil {
				if c.BalanceOf(dino, from).Cmp(before) != 0 {
					t.Logf("失败的转账改变了余额")
					return false
				}
			}
		}

		sum := big.NewInt(0)
		for _, a := range accounts {
			sum.Add(sum, c.BalanceOf(dino, a))
		}
		if sum.Cmp(big.NewInt(10000)) != 0 {
			t.Logf("余额之和偏离总供应量: sum=%s", sum)
			return false
		}
		return c.TotalSupply(dino).Cmp(big.NewInt(10000)) == 0
	}

	cfg := &quick.Config{
		MaxCount: 50,
		Values: func(values []reflect.Value, rng *rand.Rand) {
			values[0] = reflect.ValueOf(rng.Int63())
			moves := make([]uint8, 1+rng.Intn(30))
			for i := range moves {
				moves[i] = uint8(rng.Intn(256))
			}
			values[1] = reflect.ValueOf(moves)
		},
	}
	if err := quick.Check(property, cfg); err != nil {
		t.Fatalf("属性检验失败: %v", err)
	}
}
