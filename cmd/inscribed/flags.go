package main

import (
	"github.com/urfave/cli/v2"
)

const (
	passwordFlagName    = "password"
	mnemonicFlagName    = "mnemonic"
	instructionFlagName = "instruction"
	originFlagName      = "origin"
	destinationFlagName = "destination"
	changeFlagName      = "change"
	feeRateFlagName     = "fee-rate"
	dryRunFlagName      = "dry-run"
)

var (
	passwordFlag = &cli.StringFlag{
		Name:     passwordFlagName,
		Usage:    "wallet password",
		Required: true,
	}
	mnemonicFlag = &cli.StringFlag{
		Name:  mnemonicFlagName,
		Usage: "mnemonic from which to restore the wallet, generated when omitted",
	}
	instructionFlag = &cli.StringFlag{
		Name:     instructionFlagName,
		Usage:    "instruction document as JSON, or @path to read it from a file",
		Required: true,
	}
	originFlag = &cli.StringFlag{
		Name:     originFlagName,
		Usage:    "address owning the outputs to spend",
		Required: true,
	}
	destinationFlag = &cli.StringFlag{
		Name:  destinationFlagName,
		Usage: "address receiving the reveal output, defaults to the origin",
	}
	changeFlag = &cli.StringFlag{
		Name:  changeFlagName,
		Usage: "address receiving change, defaults to the origin",
	}
	feeRateFlag = &cli.Uint64Flag{
		Name:     feeRateFlagName,
		Usage:    "target fee rate in satoshis per vbyte",
		Required: true,
	}
	dryRunFlag = &cli.BoolFlag{
		Name:  dryRunFlagName,
		Usage: "build and sign both transactions without broadcasting",
	}
)
