package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config 运行时配置（已解析、可直接使用的形式）
type Config struct {
	Admin    common.Address // 协议管理员账户
	Receiver common.Address // 协议费接收账户

	OwnPercentage      *big.Int // 控制权阈值，1e18 定点
	FeePercentage      *big.Int // 协议费率，1e18 定点
	OfferingPercentage *big.Int // 认购比例，1e18 定点
	ExitPercentage     *big.Int // 退出阈值，1e18 定点
	NewNFTFee          *big.Int // 注册新资产的费用（价值代币最小单位）

	Listen    string // 网关监听地址
	DBPath    string // sqlite 审计库路径
	StorePath string // badger 快照库路径
	LogLevel  string
	LogFile   string
}

// ConfigFile 配置文件结构（用于 YAML 解析）。
// 百分比字段写十进制小数（"0.51" 即 51%），内部转为 1e18 定点。
type ConfigFile struct {
	Admin    string `yaml:"admin"`
	Receiver string `yaml:"receiver"`

	OwnPercentage      string `yaml:"own_percentage"`
	FeePercentage      string `yaml:"fee_percentage"`
	OfferingPercentage string `yaml:"offering_percentage"`
	ExitPercentage     string `yaml:"exit_percentage"`
	NewNFTFee          string `yaml:"new_nft_fee"`

	Listen    string `yaml:"listen"`
	DBPath    string `yaml:"db_path"`
	StorePath string `yaml:"store_path"`
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
}

var one18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Default 返回协议默认参数
func Default() *Config {
	return &Config{
		OwnPercentage:      mustPercent("0.51"),
		FeePercentage:      mustPercent("0.001"),
		OfferingPercentage: mustPercent("0.10"),
		ExitPercentage:     mustPercent("1.00"),
		NewNFTFee:          big.NewInt(0),
		Listen:             ":8080",
		DBPath:             "data/audit.db",
		StorePath:          "data/state",
		LogLevel:           "info",
		LogFile:            "logs/dino.log",
	}
}

// Load 从文件加载配置，环境变量覆盖文件值。
// filePath 为空时只用默认值 + 环境变量。
func Load(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
		}
		var cf ConfigFile
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析配置文件失败 %s: %w", filePath, err)
		}
		if err := cfg.apply(&cf); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(cf *ConfigFile) error {
	if cf.Admin != "" {
		if !common.IsHexAddress(cf.Admin) {
			return fmt.Errorf("无效的 admin 地址: %s", cf.Admin)
		}
		c.Admin = common.HexToAddress(cf.Admin)
	}
	if cf.Receiver != "" {
		if !common.IsHexAddress(cf.Receiver) {
			return fmt.Errorf("无效的 receiver 地址: %s", cf.Receiver)
		}
		c.Receiver = common.HexToAddress(cf.Receiver)
	}

	var err error
	if c.OwnPercentage, err = pickPercent(cf.OwnPercentage, c.OwnPercentage, "own_percentage"); err != nil {
		return err
	}
	if c.FeePercentage, err = pickPercent(cf.FeePercentage, c.FeePercentage, "fee_percentage"); err != nil {
		return err
	}
	if c.OfferingPercentage, err = pickPercent(cf.OfferingPercentage, c.OfferingPercentage, "offering_percentage"); err != nil {
		return err
	}
	if c.ExitPercentage, err = pickPercent(cf.ExitPercentage, c.ExitPercentage, "exit_percentage"); err != nil {
		return err
	}
	if cf.NewNFTFee != "" {
		fee, ok := new(big.Int).SetString(cf.NewNFTFee, 10)
		if !ok {
			return fmt.Errorf("无效的 new_nft_fee: %s", cf.NewNFTFee)
		}
		c.NewNFTFee = fee
	}

	if cf.Listen != "" {
		c.Listen = cf.Listen
	}
	if cf.DBPath != "" {
		c.DBPath = cf.DBPath
	}
	if cf.StorePath != "" {
		c.StorePath = cf.StorePath
	}
	if cf.LogLevel != "" {
		c.LogLevel = cf.LogLevel
	}
	if cf.LogFile != "" {
		c.LogFile = cf.LogFile
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DINO_ADMIN"); v != "" {
		if !common.IsHexAddress(v) {
			return fmt.Errorf("无效的 DINO_ADMIN: %s", v)
		}
		c.Admin = common.HexToAddress(v)
	}
	if v := os.Getenv("DINO_RECEIVER"); v != "" {
		if !common.IsHexAddress(v) {
			return fmt.Errorf("无效的 DINO_RECEIVER: %s", v)
		}
		c.Receiver = common.HexToAddress(v)
	}
	if v := os.Getenv("DINO_OWN_PERCENTAGE"); v != "" {
		p, err := ParsePercent(v)
		if err != nil {
			return fmt.Errorf("无效的 DINO_OWN_PERCENTAGE: %w", err)
		}
		c.OwnPercentage = p
	}
	if v := os.Getenv("DINO_FEE_PERCENTAGE"); v != "" {
		p, err := ParsePercent(v)
		if err != nil {
			return fmt.Errorf("无效的 DINO_FEE_PERCENTAGE: %w", err)
		}
		c.FeePercentage = p
	}
	if v := os.Getenv("DINO_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("DINO_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("DINO_STORE_PATH"); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv("DINO_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DINO_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	return nil
}

// Validate 校验配置的自洽性
func (c *Config) Validate() error {
	if c.Admin == (common.Address{}) {
		return fmt.Errorf("admin 账户未配置")
	}
	if c.Receiver == (common.Address{}) {
		return fmt.Errorf("receiver 账户未配置")
	}
	for name, p := range map[string]*big.Int{
		"own_percentage":      c.OwnPercentage,
		"fee_percentage":      c.FeePercentage,
		"offering_percentage": c.OfferingPercentage,
		"exit_percentage":     c.ExitPercentage,
	} {
		if p == nil || p.Sign() < 0 || p.Cmp(one18) > 0 {
			return fmt.Errorf("%s 必须在 [0, 1] 区间内", name)
		}
	}
	if c.OwnPercentage.Sign() == 0 {
		return fmt.Errorf("own_percentage 不能为 0")
	}
	return nil
}

// ParsePercent 把十进制小数字符串（"0.51"）解析为 1e18 定点 big.Int
func ParsePercent(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("百分比不能为负: %s", s)
	}
	scaled := d.Mul(decimal.NewFromBigInt(one18, 0))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("百分比精度超过 1e-18: %s", s)
	}
	return scaled.BigInt(), nil
}

func mustPercent(s string) *big.Int {
	p, err := ParsePercent(s)
	if err != nil {
		panic(err)
	}
	return p
}

func pickPercent(raw string, fallback *big.Int, name string) (*big.Int, error) {
	if raw == "" {
		return fallback, nil
	}
	p, err := ParsePercent(raw)
	if err != nil {
		return nil, fmt.Errorf("无效的 %s: %w", name, err)
	}
	return p, nil
}
