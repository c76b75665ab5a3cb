package chain

import (
	"math/big"

	"github.com/dinofi/godino/internal/domain"
)

// Params 枢纽参数。管理员可变，注册表/拍卖引擎在使用时刻读取，绝不缓存。
type Params struct {
	Admin      domain.Account
	Receiver   domain.Account
	Controller domain.Account

	// 模块账户（承担托管与押金的"合约地址"）
	Registry domain.Account
	Auction  domain.Account
	Offering domain.Account

	// 枢纽价值代币与内部 NFT 系列
	ValueToken domain.Account
	NFTSeries  domain.Account

	// 1e18 定点百分比
	OwnPercentage      *big.Int
	FeePercentage      *big.Int
	OfferingPercentage *big.Int
	ExitPercentage     *big.Int
	NewNFTFee          *big.Int

	Minters map[domain.Account]bool
}

// ParamsView 参数只读快照（big.Int 均为副本）
type ParamsView struct {
	Admin      domain.Account
	Receiver   domain.Account
	Controller domain.Account
	Registry   domain.Account
	Auction    domain.Account
	Offering   domain.Account
	ValueToken domain.Account
	NFTSeries  domain.Account

	OwnPercentage      *big.Int
	FeePercentage      *big.Int
	OfferingPercentage *big.Int
	ExitPercentage     *big.Int
	NewNFTFee          *big.Int
}

// ParamsView 返回参数快照
func (s *State) ParamsView() ParamsView {
	p := &s.params
	return ParamsView{
		Admin:      p.Admin,
		Receiver:   p.Receiver,
		Controller: p.Controller,
		Registry:   p.Registry,
		Auction:    p.Auction,
		Offering:   p.Offering,
		ValueToken: p.ValueToken,
		NFTSeries:  p.NFTSeries,

		OwnPercentage:      new(big.Int).Set(p.OwnPercentage),
		FeePercentage:      new(big.Int).Set(p.FeePercentage),
		OfferingPercentage: new(big.Int).Set(p.OfferingPercentage),
		ExitPercentage:     new(big.Int).Set(p.ExitPercentage),
		NewNFTFee:          new(big.Int).Set(p.NewNFTFee),
	}
}

// OwnPercentage majority 阈值（使用时刻读取）
func (s *State) OwnPercentage() *big.Int {
	return new(big.Int).Set(s.params.OwnPercentage)
}

// FeePercentage 协议费比例
func (s *State) FeePercentage() *big.Int {
	return new(big.Int).Set(s.params.FeePercentage)
}

// Receiver 协议费接收账户
func (s *State) Receiver() domain.Account {
	return s.params.Receiver
}

// RegistryAccount 注册表模块账户
func (s *State) RegistryAccount() domain.Account {
	return s.params.Registry
}

// AuctionAccount 拍卖引擎模块账户
func (s *State) AuctionAccount() domain.Account {
	return s.params.Auction
}

// OfferingAccount 认购模块账户
func (s *State) OfferingAccount() domain.Account {
	return s.params.Offering
}

// ValueToken 枢纽价值代币地址
func (s *State) ValueToken() domain.Account {
	return s.params.ValueToken
}

// NFTSeriesAccount 内部 NFT 系列地址
func (s *State) NFTSeriesAccount() domain.Account {
	return s.params.NFTSeries
}

func (s *State) requireAdmin(caller domain.Account) error {
	if caller != s.params.Admin {
		return domain.ErrNotAdmin
	}
	return nil
}

// SetOwnPercentage 管理员设置 majority 阈值
func (s *State) SetOwnPercentage(caller domain.Account, v *big.Int) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	s.params.OwnPercentage = new(big.Int).Set(v)
	return nil
}

// SetFeePercentage 管理员设置协议费比例
func (s *State) SetFeePercentage(caller domain.Account, v *big.Int) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	s.params.FeePercentage = new(big.Int).Set(v)
	return nil
}

// SetOfferingPercentage 管理员设置认购比例
func (s *State) SetOfferingPercentage(caller domain.Account, v *big.Int) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	s.params.OfferingPercentage = new(big.Int).Set(v)
	return nil
}

// SetExitPercentage 管理员设置退出比例
func (s *State) SetExitPercentage(caller domain.Account, v *big.Int) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	s.params.ExitPercentage = new(big.Int).Set(v)
	return nil
}

// SetNewNFTFee 管理员设置创建资产费用
func (s *State) SetNewNFTFee(caller domain.Account, v *big.Int) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	s.params.NewNFTFee = new(big.Int).Set(v)
	return nil
}

// SetReceiver 管理员设置协议费接收账户
func (s *State) SetReceiver(caller, receiver domain.Account) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	s.params.Receiver = receiver
	return nil
}

// SetController 管理员设置前门账户
func (s *State) SetController(caller, controller domain.Account) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	s.params.Controller = controller
	return nil
}

// SetAdmin 管理员移交管理权
func (s *State) SetAdmin(caller, admin domain.Account) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	s.params.Admin = admin
	return nil
}

// SetMinter 管理员授予铸造权
func (s *State) SetMinter(caller, minter domain.Account) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	s.params.Minters[minter] = true
	return nil
}

// IsMinter 查询铸造权
func (s *State) IsMinter(a domain.Account) bool {
	return s.params.Minters[a]
}
