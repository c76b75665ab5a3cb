package domain

import "errors"

// 协议错误。全部是前置条件类错误：检查一律在任何状态变更之前完成，
// 失败即整个操作原子丢弃，调用方需修正参数或等待状态变化后重新提交，
// 协议内部不做任何重试。
var (
	// 注册表（mapper）前置条件
	ErrAlreadyRegistered = errors.New("dino: already registered")
	ErrNotSoleHolder     = errors.New("dino: not sole holder")

	// 拍卖创建前置条件
	ErrNotController  = errors.New("dino: not controller")
	ErrNotOwner       = errors.New("dino: not owner")
	ErrMaturityInPast = errors.New("dino: maturity in past")

	// 出价 / 领取前置条件
	ErrBidTooLow      = errors.New("dino: bid amount")
	ErrAuctionOver    = errors.New("dino: over")
	ErrAuctionNotOver = errors.New("dino: not over")
	ErrAlreadySettled = errors.New("dino: only once")
	ErrNothingToClaim = errors.New("dino: nothing to claim")

	// 账本层错误（按原样向上传播）
	ErrInsufficientBalance   = errors.New("dino: insufficient balance")
	ErrInsufficientAllowance = errors.New("dino: insufficient allowance")

	// 权限类错误
	ErrNotAdmin  = errors.New("dino: not admin")
	ErrNotMinter = errors.New("dino: not minter")
	ErrForbidden = errors.New("dino: forbidden")

	// 实体不存在
	ErrUnknownToken = errors.New("dino: unknown token")
	ErrUnknownAsset = errors.New("dino: unknown asset")
	ErrUnknownLot   = errors.New("dino: unknown lot")
	ErrUnknownPool  = errors.New("dino: unknown pool")
	ErrPoolExists   = errors.New("dino: pool exists")

	// 认购池参数前置条件
	ErrBadPercentage = errors.New("dino: bad percentage")
)
