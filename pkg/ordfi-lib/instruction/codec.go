package instruction

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/wire"
)

// ProtocolTag prefixes every canonical instruction payload.
var ProtocolTag = []byte("odfi")

// Version is the canonical layout version. Decoders reject anything else.
const Version byte = 0x01

// Encode serializes an instruction into its canonical binary form:
// protocol tag, version byte, variant discriminant, then the variant fields
// in fixed order. String fields are var-bytes, amounts are bitcoin varints.
// The output is deterministic: the same instruction always encodes to the
// same bytes.
func Encode(ins Instruction) ([]byte, error) {
	if err := ins.validate(); err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(make([]byte, 0, 64))
	buf.Write(ProtocolTag)
	buf.WriteByte(Version)
	buf.WriteByte(byte(ins.Op()))

	var err error
	switch v := ins.(type) {
	case *Mint:
		err = writeFields(buf, str(v.Asset), num(v.Amount))
	case *AddLiquidity:
		err = writeFields(buf, str(v.Pool), num(v.Amount0), num(v.Amount1))
	case *RemoveLiquidity:
		err = writeFields(buf, str(v.Pool), num(v.Amount))
	case *Swap:
		err = writeFields(buf, str(v.Pool), str(v.Asset), num(v.Amount), num(v.MinOut))
	case *Transfer:
		err = writeFields(buf, str(v.Asset), num(v.Amount), str(v.To))
	default:
		err = fmt.Errorf("unhandled instruction variant %T", ins)
	}
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses canonical bytes back into an instruction. It is the exact
// inverse of Encode and rejects unknown versions, unknown discriminants and
// trailing garbage.
func Decode(payload []byte) (Instruction, error) {
	if !bytes.HasPrefix(payload, ProtocolTag) {
		return nil, fmt.Errorf("missing protocol tag")
	}

	r := bytes.NewReader(payload[len(ProtocolTag):])

	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("missing version byte")
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported version %d", version)
	}

	opByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("missing instruction discriminant")
	}

	var ins Instruction
	switch Op(opByte) {
	case OpMint:
		v := &Mint{}
		err = readFields(r, str(&v.Asset), num(&v.Amount))
		ins = v
	case OpAddLiquidity:
		v := &AddLiquidity{}
		err = readFields(r, str(&v.Pool), num(&v.Amount0), num(&v.Amount1))
		ins = v
	case OpRemoveLiquidity:
		v := &RemoveLiquidity{}
		err = readFields(r, str(&v.Pool), num(&v.Amount))
		ins = v
	case OpSwap:
		v := &Swap{}
		err = readFields(r, str(&v.Pool), str(&v.Asset), num(&v.Amount), num(&v.MinOut))
		ins = v
	case OpTransfer:
		v := &Transfer{}
		err = readFields(r, str(&v.Asset), num(&v.Amount), str(&v.To))
		ins = v
	default:
		return nil, fmt.Errorf("unknown instruction discriminant %d", opByte)
	}
	if err != nil {
		return nil, err
	}

	if r.Len() > 0 {
		return nil, fmt.Errorf("%d trailing bytes after instruction", r.Len())
	}

	if err := ins.validate(); err != nil {
		return nil, err
	}

	return ins, nil
}

const maxFieldLen = 1024

// field is a single canonical codec field, either a string or an amount.
// The non-nil pair member selects the direction-specific accessor.
type field struct {
	strVal *string
	numVal *uint64
}

func str(v any) field {
	switch p := v.(type) {
	case *string:
		return field{strVal: p}
	case string:
		return field{strVal: &p}
	}
	panic("str field must be a string")
}

func num(v any) field {
	switch p := v.(type) {
	case *uint64:
		return field{numVal: p}
	case uint64:
		return field{numVal: &p}
	}
	panic("num field must be a uint64")
}

func writeFields(w io.Writer, fields ...field) error {
	for _, f := range fields {
		if f.strVal != nil {
			if err := wire.WriteVarBytes(w, 0, []byte(*f.strVal)); err != nil {
				return err
			}
			continue
		}
		if err := wire.WriteVarInt(w, 0, *f.numVal); err != nil {
			return err
		}
	}
	return nil
}

func readFields(r io.Reader, fields ...field) error {
	for _, f := range fields {
		if f.strVal != nil {
			buf, err := wire.ReadVarBytes(r, 0, maxFieldLen, "field")
			if err != nil {
				return fmt.Errorf("truncated instruction field: %s", err)
			}
			*f.strVal = string(buf)
			continue
		}
		value, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return fmt.Errorf("truncated instruction amount: %s", err)
		}
		*f.numVal = value
	}
	return nil
}
