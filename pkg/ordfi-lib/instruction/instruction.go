package instruction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Op is the variant discriminant of an instruction. The values are part of
// the canonical binary layout and must never be reordered.
type Op byte

const (
	OpMint            Op = 0x01
	OpAddLiquidity    Op = 0x02
	OpRemoveLiquidity Op = 0x03
	OpSwap            Op = 0x04
	OpTransfer        Op = 0x05
)

func (o Op) String() string {
	switch o {
	case OpMint:
		return "mint"
	case OpAddLiquidity:
		return "addlp"
	case OpRemoveLiquidity:
		return "rmlp"
	case OpSwap:
		return "swap"
	case OpTransfer:
		return "transfer"
	default:
		return fmt.Sprintf("unknown (%d)", byte(o))
	}
}

var tickRegex = regexp.MustCompile(`^[a-z0-9]{1,16}$`)

// Instruction is implemented by the five instruction variants.
type Instruction interface {
	Op() Op
	// Privileged reports whether the instruction acts on funds owned by the
	// inscribing address and therefore requires origin and destination to be
	// the same address.
	Privileged() bool
	validate() error
}

type Mint struct {
	Asset  string
	Amount uint64
}

func (m *Mint) Op() Op           { return OpMint }
func (m *Mint) Privileged() bool { return true }

func (m *Mint) validate() error {
	return validTick("asset", m.Asset)
}

type AddLiquidity struct {
	Pool    string
	Amount0 uint64
	Amount1 uint64
}

func (a *AddLiquidity) Op() Op           { return OpAddLiquidity }
func (a *AddLiquidity) Privileged() bool { return true }

func (a *AddLiquidity) validate() error {
	return validPool(a.Pool)
}

type RemoveLiquidity struct {
	Pool   string
	Amount uint64
}

func (r *RemoveLiquidity) Op() Op           { return OpRemoveLiquidity }
func (r *RemoveLiquidity) Privileged() bool { return true }

func (r *RemoveLiquidity) validate() error {
	return validPool(r.Pool)
}

type Swap struct {
	Pool   string
	Asset  string
	Amount uint64
	// MinOut is the slippage floor, zero means no floor.
	MinOut uint64
}

func (s *Swap) Op() Op           { return OpSwap }
func (s *Swap) Privileged() bool { return true }

func (s *Swap) validate() error {
	if err := validPool(s.Pool); err != nil {
		return err
	}
	if err := validTick("asset", s.Asset); err != nil {
		return err
	}
	if !strings.Contains("/"+s.Pool+"/", "/"+s.Asset+"/") {
		return fmt.Errorf("asset %s is not part of pool %s", s.Asset, s.Pool)
	}
	return nil
}

type Transfer struct {
	Asset  string
	Amount uint64
	// To is the receiving address. If empty, the transfer is a direct one and
	// the funds stay at the inscribing address.
	To string
}

func (t *Transfer) Op() Op { return OpTransfer }

// Privileged is true only for direct transfers. An indirect transfer names an
// explicit receiver and may be inscribed to any destination.
func (t *Transfer) Privileged() bool { return t.To == "" }

func (t *Transfer) validate() error {
	return validTick("asset", t.Asset)
}

func validTick(field, tick string) error {
	if tick == "" {
		return fmt.Errorf("missing required field %q", field)
	}
	if !tickRegex.MatchString(tick) {
		return fmt.Errorf("invalid %s %q, must match %s", field, tick, tickRegex)
	}
	return nil
}

func validPool(pool string) error {
	if pool == "" {
		return fmt.Errorf("missing required field %q", "pool")
	}
	parts := strings.Split(pool, "/")
	if len(parts) != 2 {
		return fmt.Errorf("invalid pool %q, must be <asset0>/<asset1>", pool)
	}
	for _, tick := range parts {
		if !tickRegex.MatchString(tick) {
			return fmt.Errorf("invalid pool asset %q, must match %s", tick, tickRegex)
		}
	}
	if parts[0] == parts[1] {
		return fmt.Errorf("invalid pool %q, assets must differ", pool)
	}
	return nil
}

// amount accepts both bare JSON integers and decimal strings.
type amount string

func (a *amount) UnmarshalJSON(buf []byte) error {
	var num json.Number
	if err := json.Unmarshal(buf, &num); err != nil {
		var str string
		if err := json.Unmarshal(buf, &str); err != nil {
			return fmt.Errorf("must be an integer or a decimal string")
		}
		num = json.Number(str)
	}
	*a = amount(num)
	return nil
}

// document is the external JSON shape of an instruction. Unknown fields are
// ignored.
type document struct {
	Type    string `json:"type"`
	Asset   string `json:"asset"`
	Pool    string `json:"pool"`
	Amount  amount `json:"amount"`
	Amount0 amount `json:"amount0"`
	Amount1 amount `json:"amount1"`
	MinOut  amount `json:"min_out"`
	To      string `json:"to"`
}

// Parse decodes and validates a raw instruction document.
func Parse(raw []byte) (Instruction, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("malformed instruction document: %s", err)
	}

	if doc.Type == "" {
		return nil, fmt.Errorf("missing required field %q", "type")
	}

	var ins Instruction
	switch doc.Type {
	case OpMint.String():
		amount, err := parseAmount("amount", doc.Amount, true)
		if err != nil {
			return nil, err
		}
		ins = &Mint{Asset: doc.Asset, Amount: amount}
	case OpAddLiquidity.String():
		amount0, err := parseAmount("amount0", doc.Amount0, true)
		if err != nil {
			return nil, err
		}
		amount1, err := parseAmount("amount1", doc.Amount1, true)
		if err != nil {
			return nil, err
		}
		ins = &AddLiquidity{Pool: doc.Pool, Amount0: amount0, Amount1: amount1}
	case OpRemoveLiquidity.String():
		amount, err := parseAmount("amount", doc.Amount, true)
		if err != nil {
			return nil, err
		}
		ins = &RemoveLiquidity{Pool: doc.Pool, Amount: amount}
	case OpSwap.String():
		amount, err := parseAmount("amount", doc.Amount, true)
		if err != nil {
			return nil, err
		}
		minOut, err := parseAmount("min_out", doc.MinOut, false)
		if err != nil {
			return nil, err
		}
		ins = &Swap{Pool: doc.Pool, Asset: doc.Asset, Amount: amount, MinOut: minOut}
	case OpTransfer.String():
		amount, err := parseAmount("amount", doc.Amount, true)
		if err != nil {
			return nil, err
		}
		ins = &Transfer{Asset: doc.Asset, Amount: amount, To: doc.To}
	default:
		return nil, fmt.Errorf("unknown instruction type %q", doc.Type)
	}

	if err := ins.validate(); err != nil {
		return nil, err
	}

	return ins, nil
}

func parseAmount(field string, raw amount, required bool) (uint64, error) {
	if raw == "" {
		if required {
			return 0, fmt.Errorf("missing required field %q", field)
		}
		return 0, nil
	}

	value, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q, must be a non-negative integer", field, raw)
	}

	return value, nil
}
