package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestParsePercent(t *testing.T) {
	p, err := ParsePercent("0.51")
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("510000000000000000", 10)
	require.Equal(t, 0, p.Cmp(want), "0.51 应解析为 0.51e18")

	p, err = ParsePercent("0.001")
	require.NoError(t, err)
	want, _ = new(big.Int).SetString("1000000000000000", 10)
	require.Equal(t, 0, p.Cmp(want))

	p, err = ParsePercent("1")
	require.NoError(t, err)
	require.Equal(t, 0, p.Cmp(one18))

	_, err = ParsePercent("-0.1")
	require.Error(t, err, "负数应拒绝")

	_, err = ParsePercent("abc")
	require.Error(t, err)

	_, err = ParsePercent("0.0000000000000000001")
	require.Error(t, err, "超过 1e-18 精度应拒绝")
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dino.yaml")
	yaml := `
admin: "0x00000000000000000000000000000000000000a0"
receiver: "0x00000000000000000000000000000000000000af"
own_percentage: "0.60"
fee_percentage: "0.002"
listen: ":9090"
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000a0"), cfg.Admin)
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000af"), cfg.Receiver)

	want, _ := new(big.Int).SetString("600000000000000000", 10)
	require.Equal(t, 0, cfg.OwnPercentage.Cmp(want))
	want, _ = new(big.Int).SetString("2000000000000000", 10)
	require.Equal(t, 0, cfg.FeePercentage.Cmp(want))
	require.Equal(t, ":9090", cfg.Listen)
	require.Equal(t, "debug", cfg.LogLevel)

	// 未写的字段保持默认
	require.Equal(t, 0, cfg.OfferingPercentage.Cmp(mustPercent("0.10")))
	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dino.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`listen: ":9090"`), 0o600))

	t.Setenv("DINO_LISTEN", ":7070")
	t.Setenv("DINO_OWN_PERCENTAGE", "0.66")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.Listen)
	want, _ := new(big.Int).SetString("660000000000000000", 10)
	require.Equal(t, 0, cfg.OwnPercentage.Cmp(want))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate(), "缺少 admin 应拒绝")

	cfg.Admin = common.HexToAddress("0x01")
	cfg.Receiver = common.HexToAddress("0x02")
	require.NoError(t, cfg.Validate())

	cfg.OwnPercentage = big.NewInt(0)
	require.Error(t, cfg.Validate(), "own_percentage 为 0 应拒绝")

	cfg.OwnPercentage = new(big.Int).Add(one18, big.NewInt(1))
	require.Error(t, cfg.Validate(), "超过 100%% 应拒绝")
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load("/nonexistent/dino.yaml")
	require.Error(t, err)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`admin: "not-an-address"`), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
}
