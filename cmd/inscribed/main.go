package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/orddefi-labs/inscribed/internal/config"
	"github.com/orddefi-labs/inscribed/internal/core/domain"
	"github.com/orddefi-labs/inscribed/internal/infrastructure/wallet"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "inscribed",
		Usage:   "inscribe protocol instructions with taproot commit/reveal pairs",
		Version: version,
		Flags:   config.Flags(),
		Commands: []*cli.Command{
			initCmd, statusCmd, addressCmd, balanceCmd, commitAddressCmd, inscribeCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		var tagged *domain.Error
		if errors.As(err, &tagged) {
			tagged.Log().Error(tagged.Error())
			os.Exit(1)
		}
		log.Fatal(err)
	}
}

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "create the wallet, generating a mnemonic unless one is provided",
	Flags: []cli.Flag{passwordFlag, mnemonicFlag},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		defer cfg.Close()

		walletSvc, err := cfg.WalletService()
		if err != nil {
			return err
		}

		mnemonic := c.String(mnemonicFlagName)
		generated := mnemonic == ""
		if generated {
			mnemonic, err = walletSvc.GenSeed(c.Context)
			if err != nil {
				return err
			}
		}

		if err := walletSvc.Create(c.Context, mnemonic, c.String(passwordFlagName)); err != nil {
			return err
		}

		if generated {
			fmt.Println("write down the mnemonic, it is shown only once:")
			fmt.Println(mnemonic)
		}
		fmt.Println("wallet initialized")
		return nil
	},
}

var statusCmd = &cli.Command{
	Name:  "status",
	Usage: "show the wallet state",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		defer cfg.Close()

		walletSvc, err := cfg.WalletService()
		if err != nil {
			return err
		}

		status := walletSvc.Status(c.Context)
		fmt.Println(status.String())
		return nil
	},
}

var addressCmd = &cli.Command{
	Name:  "address",
	Usage: "derive a fresh receive address",
	Flags: []cli.Flag{passwordFlag},
	Action: func(c *cli.Context) error {
		cfg, walletSvc, err := unlockedWallet(c)
		if err != nil {
			return err
		}
		defer cfg.Close()

		address, err := walletSvc.NewAddress(c.Context)
		if err != nil {
			return err
		}

		fmt.Println(address)
		return nil
	},
}

var balanceCmd = &cli.Command{
	Name:  "balance",
	Usage: "show the available and locked balance across derived addresses",
	Flags: []cli.Flag{passwordFlag},
	Action: func(c *cli.Context) error {
		cfg, walletSvc, err := unlockedWallet(c)
		if err != nil {
			return err
		}
		defer cfg.Close()

		available, locked, err := walletSvc.Balance(c.Context)
		if err != nil {
			return err
		}

		return printJSON(map[string]uint64{
			"available": available,
			"locked":    locked,
		})
	},
}

var commitAddressCmd = &cli.Command{
	Name:  "commit-address",
	Usage: "derive the commit address for an instruction without building transactions",
	Flags: []cli.Flag{instructionFlag},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		defer cfg.Close()

		svc, err := cfg.AppService()
		if err != nil {
			return err
		}

		raw, err := readInstruction(c.String(instructionFlagName))
		if err != nil {
			return err
		}

		address, recoveryKey, err := svc.CommitAddress(raw)
		if err != nil {
			return err
		}

		return printJSON(map[string]string{
			"commit_address": address,
			"recovery_key":   recoveryKey,
		})
	},
}

var inscribeCmd = &cli.Command{
	Name:  "inscribe",
	Usage: "build, sign and broadcast the commit/reveal pair for an instruction",
	Flags: []cli.Flag{
		passwordFlag, instructionFlag, originFlag, destinationFlag,
		changeFlag, feeRateFlag, dryRunFlag,
	},
	Action: func(c *cli.Context) error {
		cfg, _, err := unlockedWallet(c)
		if err != nil {
			return err
		}
		defer cfg.Close()

		svc, err := cfg.AppService()
		if err != nil {
			return err
		}

		raw, err := readInstruction(c.String(instructionFlagName))
		if err != nil {
			return err
		}

		destination := c.String(destinationFlagName)
		if destination == "" {
			destination = c.String(originFlagName)
		}

		result, err := svc.Inscribe(c.Context, domain.InscriptionRequest{
			FeeRate:        c.Uint64(feeRateFlagName),
			Origin:         c.String(originFlagName),
			Destination:    destination,
			Change:         c.String(changeFlagName),
			DryRun:         c.Bool(dryRunFlagName),
			RawInstruction: raw,
		})
		if err != nil {
			return err
		}

		return printJSON(result)
	},
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))
	return cfg, nil
}

// unlockedWallet loads the config and unlocks the wallet with the password
// flag of the invoked command.
func unlockedWallet(c *cli.Context) (*config.Config, *wallet.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	walletSvc, err := cfg.WalletService()
	if err != nil {
		cfg.Close()
		return nil, nil, err
	}
	if err := walletSvc.Unlock(c.Context, c.String(passwordFlagName)); err != nil {
		cfg.Close()
		return nil, nil, err
	}

	return cfg, walletSvc, nil
}

func readInstruction(arg string) ([]byte, error) {
	if strings.HasPrefix(arg, "@") {
		return os.ReadFile(strings.TrimPrefix(arg, "@"))
	}
	return []byte(arg), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

