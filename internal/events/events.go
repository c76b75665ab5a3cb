package events

import (
	"math/big"
	"time"

	"github.com/dinofi/godino/internal/domain"
)

// 协议事件。事件只是状态变化的只读快照，由链在同一串行事务内发出，
// 网关/审计订阅消费；事件本身不承载任何控制流。

// TransferEvent 同质化代币转账事件
type TransferEvent struct {
	Token  domain.Account
	From   domain.Account
	To     domain.Account
	Amount *big.Int
}

// ControllerChangedEvent 控制人变更事件（majority 派生结果变化时发出）
type ControllerChangedEvent struct {
	ClaimToken domain.Account
	Asset      domain.AssetRef
	Old        domain.Account
	New        domain.Account
}

// PositionOpenedEvent 资产注册事件（资产进入注册表托管）
type PositionOpenedEvent struct {
	Asset      domain.AssetRef
	ClaimToken domain.Account
	Controller domain.Account
}

// PositionClosedEvent 资产退出事件（份额全部回收，资产归还）
type PositionClosedEvent struct {
	Asset      domain.AssetRef
	ClaimToken domain.Account
	To         domain.Account
}

// LotCreatedEvent 拍卖创建事件
type LotCreatedEvent struct {
	LotID        uint64
	Asset        domain.AssetRef
	Seller       domain.Account
	PaymentToken domain.Account
	Maturity     uint64
	ReservePrice *big.Int
}

// BidPlacedEvent 出价事件
type BidPlacedEvent struct {
	LotID  uint64
	Bidder domain.Account
	Amount *big.Int
}

// RefundQueuedEvent 退款入账事件（被超出价方的押金转入 pull 退款账本）
type RefundQueuedEvent struct {
	LotID  uint64
	Bidder domain.Account
	Amount *big.Int
}

// RefundPaidEvent 退款领取事件
type RefundPaidEvent struct {
	LotID  uint64
	Bidder domain.Account
	Amount *big.Int
}

// LotSettledEvent 拍卖结算事件（winner/seller 各自领取时各发一次）
type LotSettledEvent struct {
	LotID  uint64
	Role   string // "winner" / "seller" / "reclaim"
	Party  domain.Account
	Amount *big.Int // winner 结算时为 nil
}

// OfferingClaimedEvent 认购领取事件
type OfferingClaimedEvent struct {
	Token  domain.Account
	User   domain.Account
	Shares *big.Int
	Refund *big.Int
	Fee    *big.Int
}

// BlockAdvancedEvent 逻辑时钟推进事件
type BlockAdvancedEvent struct {
	Block uint64
}

// Entry 事件日志条目
type Entry struct {
	ID      string
	Type    string
	At      time.Time
	Payload any
}
