package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/adapters/minter"
	"github.com/bnema/evm-wallet-cli/internal/adapters/provider/rpc"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	providerKindRPC    = "rpc"
	providerKindBridge = "bridge"

	envPrefix      = "EW"
	configDirName  = ".ew"
	configFileName = "config.toml"
)

const (
	keyProviderKind           = "provider.kind"
	keyProviderURL            = "provider.url"
	keyProviderAccounts       = "provider.accounts"
	keyProviderPollInterval   = "provider.poll_interval"
	keyProviderRequestTimeout = "provider.request_timeout"
	keyBridgeListen           = "provider.bridge_listen"
	keyBridgeWait             = "provider.bridge_wait"
	keyMintBaseURL            = "mint.base_url"
	keyMintRPCURL             = "mint.rpc_url"
	keyMintContract           = "mint.contract"
	keyMintKeyRef             = "mint.key_ref"
	keyServerListen           = "server.listen"
	keyLogLevel               = "log.level"
	keyNetworks               = "networks"
)

type config struct {
	ProviderKind   string
	ProviderURL    string
	Accounts       []string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	BridgeListen   string
	BridgeWait     time.Duration

	MintBaseURL  string
	MintRPCURL   string
	MintContract string
	MintKeyRef   string

	ServerListen string
	LogLevel     string

	NetworkRPCs map[domain.NetworkKey][]string
}

// loadConfig reads ~/.ew/config.toml, a .env file in the working directory
// and EW_* environment variables, in increasing precedence.
func loadConfig(v *viper.Viper) (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("load .env: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return config{}, fmt.Errorf("resolve home directory: %w", err)
	}

	v.SetConfigFile(filepath.Join(homeDir, configDirName, configFileName))
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(keyMintRPCURL, "EW_MINT_RPC_URL", "ALCHEMY_API_KEY"); err != nil {
		return config{}, fmt.Errorf("bind %s: %w", keyMintRPCURL, err)
	}

	v.SetDefault(keyProviderKind, providerKindRPC)
	v.SetDefault(keyProviderURL, "http://127.0.0.1:8545")
	v.SetDefault(keyProviderPollInterval, rpc.DefaultPollInterval)
	v.SetDefault(keyProviderRequestTimeout, 2*time.Minute)
	v.SetDefault(keyBridgeListen, "127.0.0.1:8090")
	v.SetDefault(keyBridgeWait, 2*time.Minute)
	v.SetDefault(keyMintContract, minter.DefaultContract)
	v.SetDefault(keyMintKeyRef, "env:PRIVATE_KEY")
	v.SetDefault(keyServerListen, ":5000")
	v.SetDefault(keyLogLevel, "warn")

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
	}

	cfg := config{
		ProviderKind:   strings.ToLower(strings.TrimSpace(v.GetString(keyProviderKind))),
		ProviderURL:    v.GetString(keyProviderURL),
		Accounts:       v.GetStringSlice(keyProviderAccounts),
		PollInterval:   v.GetDuration(keyProviderPollInterval),
		RequestTimeout: v.GetDuration(keyProviderRequestTimeout),
		BridgeListen:   v.GetString(keyBridgeListen),
		BridgeWait:     v.GetDuration(keyBridgeWait),
		MintBaseURL:    v.GetString(keyMintBaseURL),
		MintRPCURL:     v.GetString(keyMintRPCURL),
		MintContract:   v.GetString(keyMintContract),
		MintKeyRef:     v.GetString(keyMintKeyRef),
		ServerListen:   v.GetString(keyServerListen),
		LogLevel:       v.GetString(keyLogLevel),
		NetworkRPCs:    map[domain.NetworkKey][]string{},
	}

	switch cfg.ProviderKind {
	case providerKindRPC, providerKindBridge:
	default:
		return config{}, fmt.Errorf("unsupported %s %q", keyProviderKind, cfg.ProviderKind)
	}

	for key := range v.GetStringMap(keyNetworks) {
		urls := v.GetStringSlice(keyNetworks + "." + key + ".rpc_urls")
		cfg.NetworkRPCs[domain.NetworkKey(key)] = urls
	}

	return cfg, nil
}
