package domain

import (
	"fmt"
	"math/big"
)

// AssetRef 非同质化资产引用：托管方地址 + 资产 ID。
// 既可以指向内部铸造的包装资产（Dino721 系列），也可以指向任意外部 NFT。
// 创建后不可变。
type AssetRef struct {
	Custodian Account
	ID        *big.Int
}

// NewAssetRef 创建资产引用（ID 会被复制，调用方可以继续使用原值）
func NewAssetRef(custodian Account, id *big.Int) AssetRef {
	return AssetRef{Custodian: custodian, ID: new(big.Int).Set(id)}
}

// Key 返回 map 键（custodian:id）
func (a AssetRef) Key() string {
	return fmt.Sprintf("%s:%s", a.Custodian.Hex(), a.ID.String())
}

func (a AssetRef) String() string {
	return a.Key()
}
