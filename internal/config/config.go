package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/urfave/cli/v2"

	"github.com/orddefi-labs/inscribed/internal/core/application"
	"github.com/orddefi-labs/inscribed/internal/core/ports"
	"github.com/orddefi-labs/inscribed/internal/infrastructure/blockchain/esplora"
	txbuilder "github.com/orddefi-labs/inscribed/internal/infrastructure/tx-builder/taproot"
	"github.com/orddefi-labs/inscribed/internal/infrastructure/wallet"
	"github.com/orddefi-labs/inscribed/internal/infrastructure/wallet/cypher"
	"github.com/orddefi-labs/inscribed/internal/infrastructure/wallet/db"
	"github.com/orddefi-labs/inscribed/pkg/ordfi-lib/envelope"
)

var supportedNetworks = supportedType{
	"mainnet": {},
	"testnet": {},
	"signet":  {},
	"regtest": {},
}

type Config struct {
	Datadir  string
	Network  string
	LogLevel int

	EsploraURL string

	// Postage is the reveal output value in satoshis.
	Postage uint64
	// MinChange overrides the derived dust threshold for change when > 0.
	MinChange uint64
	// MaxStandardTxWeight bounds the reveal transaction weight in weight units.
	MaxStandardTxWeight int
	// MaxChunkSize caps each envelope data push, at most 520 bytes.
	MaxChunkSize int
	// MaxPayloadSize caps the whole encoded instruction payload.
	MaxPayloadSize int
	// VSizeTolerance is the accepted estimate drift per transaction in vbytes.
	VSizeTolerance int
	// AddressLookahead is how many wallet addresses per branch are derived
	// on unlock.
	AddressLookahead uint32

	svc       *application.Service
	walletSvc *wallet.Service
	scanner   ports.BlockchainScanner
	seedRepo  ports.SeedRepository
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	defaultDatadir             = btcutil.AppDataDir("inscribed", false)
	defaultNetwork             = "mainnet"
	defaultLogLevel            = 4
	defaultEsploraURL          = "https://blockstream.info/api"
	defaultPostage             = 10_000
	defaultMaxStandardTxWeight = 400_000
	defaultMaxChunkSize        = 520
	defaultMaxPayloadSize      = 8192
	defaultVSizeTolerance      = 2
	defaultAddressLookahead    = 100
)

// env returns a list of strings prefixed with `INSCRIBED_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))

	for i, value := range values {
		envs[i] = fmt.Sprintf("INSCRIBED_%s", value)
	}

	return envs
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store the encrypted wallet seed",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}

	Network = &cli.StringFlag{
		Usage: "Bitcoin network (mainnet, testnet, signet, regtest)",
		Name:  "network", EnvVars: env("NETWORK"),
		Value: defaultNetwork,
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}

	EsploraURL = &cli.StringFlag{
		Usage: "Esplora API URL",
		Name:  "esplora-url", EnvVars: env("ESPLORA_URL"),
		Value: defaultEsploraURL,
	}

	Postage = &cli.Uint64Flag{
		Usage: "Value in satoshis carried to the destination by the reveal",
		Name:  "postage", EnvVars: env("POSTAGE"),
		Value: uint64(defaultPostage),
	}

	MinChange = &cli.Uint64Flag{
		Usage: "Minimum change output value in satoshis, 0 derives it from the relay fee floor",
		Name:  "min-change", EnvVars: env("MIN_CHANGE"),
	}

	MaxStandardTxWeight = &cli.IntFlag{
		Usage: "Maximum reveal transaction weight in weight units",
		Name:  "max-standard-tx-weight", EnvVars: env("MAX_STANDARD_TX_WEIGHT"),
		Value: defaultMaxStandardTxWeight,
	}

	MaxChunkSize = &cli.IntFlag{
		Usage: "Maximum envelope data push size in bytes (at most 520)",
		Name:  "max-chunk-size", EnvVars: env("MAX_CHUNK_SIZE"),
		Value: defaultMaxChunkSize,
	}

	MaxPayloadSize = &cli.IntFlag{
		Usage: "Maximum encoded instruction payload size in bytes",
		Name:  "max-payload-size", EnvVars: env("MAX_PAYLOAD_SIZE"),
		Value: defaultMaxPayloadSize,
	}

	VSizeTolerance = &cli.IntFlag{
		Usage: "Accepted divergence between estimated and actual vsize, in vbytes",
		Name:  "vsize-tolerance", EnvVars: env("VSIZE_TOLERANCE"),
		Value: defaultVSizeTolerance,
	}

	AddressLookahead = &cli.Uint64Flag{
		Usage: "Number of wallet addresses per branch derived on unlock",
		Name:  "addr-lookahead", EnvVars: env("ADDR_LOOKAHEAD"),
		Value: uint64(defaultAddressLookahead),
	}
)

func Flags() []cli.Flag {
	return []cli.Flag{
		Datadir, Network, LogLevel, EsploraURL,
		Postage, MinChange, MaxStandardTxWeight,
		MaxChunkSize, MaxPayloadSize, VSizeTolerance, AddressLookahead,
	}
}

func LoadConfig(c *cli.Context) (*Config, error) {
	if err := initDatadir(c); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	return &Config{
		Datadir:             c.String(Datadir.Name),
		Network:             c.String(Network.Name),
		LogLevel:            c.Int(LogLevel.Name),
		EsploraURL:          c.String(EsploraURL.Name),
		Postage:             c.Uint64(Postage.Name),
		MinChange:           c.Uint64(MinChange.Name),
		MaxStandardTxWeight: c.Int(MaxStandardTxWeight.Name),
		MaxChunkSize:        c.Int(MaxChunkSize.Name),
		MaxPayloadSize:      c.Int(MaxPayloadSize.Name),
		VSizeTolerance:      c.Int(VSizeTolerance.Name),
		AddressLookahead:    uint32(c.Uint64(AddressLookahead.Name)),
	}, nil
}

func initDatadir(c *cli.Context) error {
	datadir := c.String(Datadir.Name)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0o755)
	}
	return nil
}

func (c *Config) Validate() error {
	if !supportedNetworks.supports(c.Network) {
		return fmt.Errorf(
			"network not supported, please select one of: %s", supportedNetworks,
		)
	}
	if c.Postage == 0 {
		return fmt.Errorf("postage must be positive")
	}
	if c.MaxChunkSize <= 0 || c.MaxChunkSize > 520 {
		return fmt.Errorf("max chunk size must be within (0, 520]")
	}
	if c.MaxPayloadSize <= 0 {
		return fmt.Errorf("max payload size must be positive")
	}
	if c.MaxStandardTxWeight <= 0 {
		return fmt.Errorf("max standard tx weight must be positive")
	}
	return nil
}

func (c *Config) ChainParams() *chaincfg.Params {
	switch c.Network {
	case "testnet":
		return &chaincfg.TestNet3Params
	case "signet":
		return &chaincfg.SigNetParams
	case "regtest":
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// AppService wires and returns the inscriber engine.
func (c *Config) AppService() (*application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

// WalletService wires and returns the embedded wallet.
func (c *Config) WalletService() (*wallet.Service, error) {
	if c.walletSvc == nil {
		if err := c.walletService(); err != nil {
			return nil, err
		}
	}
	return c.walletSvc, nil
}

func (c *Config) Close() {
	if c.walletSvc != nil {
		c.walletSvc.Close()
	}
}

func (c *Config) appService() error {
	walletSvc, err := c.WalletService()
	if err != nil {
		return err
	}

	c.svc = application.NewService(application.ServiceOptions{
		Wallet:      walletSvc,
		Broadcaster: c.scannerService(),
		Builder: txbuilder.NewBuilder(txbuilder.Config{
			ChainParams:         c.ChainParams(),
			Postage:             c.Postage,
			MinChange:           c.MinChange,
			MaxStandardTxWeight: c.MaxStandardTxWeight,
			VSizeTolerance:      c.VSizeTolerance,
		}),
		ChainParams: c.ChainParams(),
		EnvelopeOpts: envelope.Options{
			MaxChunkSize:   c.MaxChunkSize,
			MaxPayloadSize: c.MaxPayloadSize,
		},
	})
	return nil
}

func (c *Config) walletService() error {
	seedRepo, err := c.seedRepository()
	if err != nil {
		return err
	}

	c.walletSvc = wallet.NewService(wallet.ServiceOptions{
		SeedRepo:  seedRepo,
		Cypher:    cypher.New(),
		Scanner:   c.scannerService(),
		Network:   c.ChainParams(),
		Lookahead: c.AddressLookahead,
	})
	return nil
}

// scannerService returns the esplora client, which backs both the scanner
// and broadcaster ports.
func (c *Config) scannerService() *esplora.Client {
	if c.scanner == nil {
		c.scanner = esplora.New(c.EsploraURL)
	}
	return c.scanner.(*esplora.Client)
}

func (c *Config) seedRepository() (ports.SeedRepository, error) {
	if c.seedRepo == nil {
		repo, err := db.NewSeedRepository(filepath.Join(c.Datadir, "db"), nil)
		if err != nil {
			return nil, err
		}
		c.seedRepo = repo
	}
	return c.seedRepo, nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return fmt.Sprintf("%v", types)
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
