package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dinofi/godino/internal/domain"
	"github.com/dinofi/godino/internal/events"
)

// TransferHook 转账回调能力接口。
//
// 每次触及某个代币余额的操作（transfer/transferFrom/mint/burn）在返回前
// 同步调用该代币的 hook，并传入受影响账户。注册表借此在"触发转账的同一
// 原子步骤内"重新派生控制人——其他任何操作都不可能观察到余额已变而
// 控制人未重算的中间状态。
//
// 回调对格式良好的代币绝不允许失败，因此没有错误返回值。
type TransferHook interface {
	OnBalanceChanged(s *State, token domain.Account, touched []domain.Account)
}

// Token 一个同质化余额账本实例（价值代币或份额代币）
type Token struct {
	name        string
	symbol      string
	owner       domain.Account // 创建者模块账户，拥有铸造/销毁特权
	totalSupply *big.Int
	balances    map[domain.Account]*big.Int
	allowances  map[domain.Account]map[domain.Account]*big.Int
	hook        TransferHook // 可选：余额变化同步回调
}

// Name 代币名称
func (t *Token) Name() string { return t.name }

// Symbol 代币符号
func (t *Token) Symbol() string { return t.symbol }

// createToken 创建新代币账本。地址由创建者地址 + 递增 nonce 确定性派生。
func (s *State) createToken(creator domain.Account, name, symbol string, hook TransferHook) domain.Account {
	s.tokenNonce++
	addr := crypto.CreateAddress(creator, s.tokenNonce)
	s.tokens[addr] = &Token{
		name:        name,
		symbol:      symbol,
		owner:       creator,
		totalSupply: big.NewInt(0),
		balances:    make(map[domain.Account]*big.Int),
		allowances:  make(map[domain.Account]map[domain.Account]*big.Int),
		hook:        hook,
	}
	return addr
}

// CreateToken 创建新代币账本（供注册表等模块在事务内调用）
func (s *State) CreateToken(creator domain.Account, name, symbol string, hook TransferHook) domain.Account {
	return s.createToken(creator, name, symbol, hook)
}

// TokenExists 代币是否存在
func (s *State) TokenExists(token domain.Account) bool {
	_, ok := s.tokens[token]
	return ok
}

// TokenMeta 返回代币名称与符号
func (s *State) TokenMeta(token domain.Account) (name, symbol string, ok bool) {
	t, ok := s.tokens[token]
	if !ok {
		return "", "", false
	}
	return t.name, t.symbol, true
}

// BalanceOf 账户余额（副本）
func (s *State) BalanceOf(token, account domain.Account) *big.Int {
	t, ok := s.tokens[token]
	if !ok {
		return big.NewInt(0)
	}
	b, ok := t.balances[account]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(b)
}

// TotalSupply 总供应量（副本）
func (s *State) TotalSupply(token domain.Account) *big.Int {
	t, ok := s.tokens[token]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(t.totalSupply)
}

// Allowance 查询额度（副本）
func (s *State) Allowance(token, owner, spender domain.Account) *big.Int {
	t, ok := s.tokens[token]
	if !ok {
		return big.NewInt(0)
	}
	m, ok := t.allowances[owner]
	if !ok {
		return big.NewInt(0)
	}
	a, ok := m[spender]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a)
}

// Approve 设置 spender 可从 owner 划转的额度
func (s *State) Approve(token, owner, spender domain.Account, amount *big.Int) error {
	t, ok := s.tokens[token]
	if !ok {
		return domain.ErrUnknownToken
	}
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[domain.Account]*big.Int)
		t.allowances[owner] = m
	}
	m[spender] = new(big.Int).Set(amount)
	return nil
}

// Transfer from 本人转账
func (s *State) Transfer(token, from, to domain.Account, amount *big.Int) error {
	return s.transfer(token, from, to, amount)
}

// TransferFrom spender 凭额度从 from 划转。spender == from 时不消耗额度。
func (s *State) TransferFrom(token, spender, from, to domain.Account, amount *big.Int) error {
	t, ok := s.tokens[token]
	if !ok {
		return domain.ErrUnknownToken
	}
	if spender != from {
		allowance := s.Allowance(token, from, spender)
		if allowance.Cmp(amount) < 0 {
			return domain.ErrInsufficientAllowance
		}
		// 额度校验与余额校验都通过后才一起扣减
		if s.BalanceOf(token, from).Cmp(amount) < 0 {
			return domain.ErrInsufficientBalance
		}
		t.allowances[from][spender] = allowance.Sub(allowance, amount)
	}
	return s.transfer(token, from, to, amount)
}

// transfer 余额移动的唯一路径；成功后同步触发 hook 回调
func (s *State) transfer(token, from, to domain.Account, amount *big.Int) error {
	t, ok := s.tokens[token]
	if !ok {
		return domain.ErrUnknownToken
	}
	fromBal, ok := t.balances[from]
	if !ok || fromBal.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	fromBal.Sub(fromBal, amount)

	toBal, ok := t.balances[to]
	if !ok {
		toBal = big.NewInt(0)
		t.balances[to] = toBal
	}
	toBal.Add(toBal, amount)

	s.emit(events.TransferEvent{Token: token, From: from, To: to, Amount: new(big.Int).Set(amount)})

	if t.hook != nil {
		t.hook.OnBalanceChanged(s, token, []domain.Account{from, to})
	}
	return nil
}

// Mint 铸造。仅代币属主模块或持有铸造权的账户可调用。
func (s *State) Mint(caller, token, to domain.Account, amount *big.Int) error {
	t, ok := s.tokens[token]
	if !ok {
		return domain.ErrUnknownToken
	}
	if caller != t.owner && !s.IsMinter(caller) {
		return domain.ErrNotMinter
	}
	t.totalSupply.Add(t.totalSupply, amount)
	toBal, ok := t.balances[to]
	if !ok {
		toBal = big.NewInt(0)
		t.balances[to] = toBal
	}
	toBal.Add(toBal, amount)

	s.emit(events.TransferEvent{Token: token, From: domain.ZeroAccount, To: to, Amount: new(big.Int).Set(amount)})

	if t.hook != nil {
		t.hook.OnBalanceChanged(s, token, []domain.Account{to})
	}
	return nil
}

// Burn 销毁。仅代币属主模块或持有铸造权的账户可调用。
func (s *State) Burn(caller, token, from domain.Account, amount *big.Int) error {
	t, ok := s.tokens[token]
	if !ok {
		return domain.ErrUnknownToken
	}
	if caller != t.owner && !s.IsMinter(caller) {
		return domain.ErrNotMinter
	}
	fromBal, ok := t.balances[from]
	if !ok || fromBal.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	fromBal.Sub(fromBal, amount)
	t.totalSupply.Sub(t.totalSupply, amount)

	s.emit(events.TransferEvent{Token: token, From: from, To: domain.ZeroAccount, Amount: new(big.Int).Set(amount)})

	if t.hook != nil {
		t.hook.OnBalanceChanged(s, token, []domain.Account{from})
	}
	return nil
}
