package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dinofi/godino/internal/domain"
)

// NFTSeries 一个非同质化资产系列的托管账本（ownerOf/approve/transferFrom 语义）。
// 内部包装资产（Dino721）和测试/外部 NFT 都用同一结构表达。
type NFTSeries struct {
	name     string
	owner    domain.Account            // 系列创建者，拥有铸造特权
	owners   map[string]domain.Account // 资产 ID -> 持有人
	approved map[string]domain.Account // 资产 ID -> 被授权人
}

// createNFTSeries 创建 NFT 系列，地址确定性派生
func (s *State) createNFTSeries(creator domain.Account, name string) domain.Account {
	s.nftNonce++
	addr := crypto.CreateAddress2(creator, [32]byte{byte(s.nftNonce)}, []byte(name))
	s.nftSeries[addr] = &NFTSeries{
		name:     name,
		owner:    creator,
		owners:   make(map[string]domain.Account),
		approved: make(map[string]domain.Account),
	}
	return addr
}

// CreateNFTSeries 创建 NFT 系列（供测试与网关使用）
func (s *State) CreateNFTSeries(creator domain.Account, name string) domain.Account {
	return s.createNFTSeries(creator, name)
}

// MintNFT 铸造一个新资产。仅系列创建者或持有铸造权的账户可调用。
// newNFTFee 非零时按价值代币向 Receiver 收取铸造费（管理员免收）。
func (s *State) MintNFT(caller, series domain.Account, id *big.Int, to domain.Account) error {
	ns, ok := s.nftSeries[series]
	if !ok {
		return domain.ErrUnknownAsset
	}
	if caller != ns.owner && !s.IsMinter(caller) {
		return domain.ErrNotMinter
	}
	key := id.String()
	if _, exists := ns.owners[key]; exists {
		return domain.ErrAlreadyRegistered
	}
	if fee := s.params.NewNFTFee; fee.Sign() > 0 && caller != s.params.Admin {
		if err := s.Transfer(s.params.ValueToken, caller, s.params.Receiver, fee); err != nil {
			return err
		}
	}
	ns.owners[key] = to
	return nil
}

// NFTOwnerOf 查询资产持有人
func (s *State) NFTOwnerOf(series domain.Account, id *big.Int) (domain.Account, bool) {
	ns, ok := s.nftSeries[series]
	if !ok {
		return domain.ZeroAccount, false
	}
	owner, ok := ns.owners[id.String()]
	return owner, ok
}

// ApproveNFT 持有人授权 to 划转某个资产
func (s *State) ApproveNFT(series, caller, to domain.Account, id *big.Int) error {
	ns, ok := s.nftSeries[series]
	if !ok {
		return domain.ErrUnknownAsset
	}
	key := id.String()
	if ns.owners[key] != caller {
		return domain.ErrNotOwner
	}
	ns.approved[key] = to
	return nil
}

// TransferNFTFrom 划转资产托管权。caller 必须是持有人本人或被授权人。
func (s *State) TransferNFTFrom(series, caller, from, to domain.Account, id *big.Int) error {
	ns, ok := s.nftSeries[series]
	if !ok {
		return domain.ErrUnknownAsset
	}
	key := id.String()
	owner, ok := ns.owners[key]
	if !ok || owner != from {
		return domain.ErrNotOwner
	}
	if caller != owner && ns.approved[key] != caller {
		return domain.ErrForbidden
	}
	ns.owners[key] = to
	delete(ns.approved, key) // 划转后清除旧授权
	return nil
}
