package domain

import "math/big"

// 百分比统一使用 1e18 定点小数表示（0.51 == 51e16），与原始合约一致。

// One18 1e18，定点小数的分母
var One18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// PortionOf 计算 amount * pct / 1e18（向下取整）
func PortionOf(amount, pct *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, pct)
	return out.Div(out, One18)
}

// Pct 从整数基点快捷构造 1e18 定点百分比（便于测试：Pct(51, 100) = 51%）
func Pct(num, den int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(num), One18)
	return out.Div(out, big.NewInt(den))
}
