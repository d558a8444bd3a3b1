package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, int64(7*24*60*60), cfg.DisputeTimeout)

	_, err = os.Stat(path)
	require.NoError(t, err)

	// The persisted default file loads back cleanly.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, reloaded.ListenAddress)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
StakeToken = "0x0101010101010101010101010101010101010101"
Authority = "0x0202020202020202020202020202020202020202"
FeeRecipient = "0x0303030303030303030303030303030303030303"
Arbitrator = "0x0404040404040404040404040404040404040404"
MinimumStake = "1000"
BurnBps = 2000
ProtocolFeeBps = 50
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, "./dagora-data", cfg.DataDir)
	require.Equal(t, uint64(2000), cfg.BurnBps)
	require.Equal(t, 50, cfg.RateLimitRPS)
}

func TestLoadRejectsBadAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`StakeToken = "nonsense"`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBpsOverflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
StakeToken = "0x0101010101010101010101010101010101010101"
Authority = "0x0101010101010101010101010101010101010101"
FeeRecipient = "0x0101010101010101010101010101010101010101"
Arbitrator = "0x0101010101010101010101010101010101010101"
BurnBps = 10001
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	require.Equal(t, byte(0x01), addr[0])
	require.Equal(t, byte(0x14), addr[19])

	_, err = ParseAddress("0x0102")
	require.Error(t, err)
	_, err = ParseAddress("zz")
	require.Error(t, err)

	// The prefix is optional.
	bare, err := ParseAddress("0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	require.Equal(t, addr, bare)
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("12345")
	require.NoError(t, err)
	require.Equal(t, int64(12345), amount.Int64())

	zero, err := ParseAmount("")
	require.NoError(t, err)
	require.Zero(t, zero.Sign())

	_, err = ParseAmount("-5")
	require.Error(t, err)
	_, err = ParseAmount("abc")
	require.Error(t, err)
}
