package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// Account 链上账户地址（复用 go-ethereum 的地址类型）。
// 模块账户（registry/auction/offering）与普通用户账户同为一类地址。
type Account = common.Address

// ZeroAccount 哨兵地址：表示"无控制人"/"无最高出价人"。
var ZeroAccount = common.Address{}

// IsZero 判断是否为哨兵地址
func IsZero(a Account) bool {
	return a == ZeroAccount
}
