package instruction_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orddefi-labs/inscribed/pkg/ordfi-lib/instruction"
)

func TestCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ins  instruction.Instruction
	}{
		{"mint", &instruction.Mint{Asset: "ordi", Amount: 21_000_000}},
		{"addlp", &instruction.AddLiquidity{Pool: "ordi/sats", Amount0: 1, Amount1: 2}},
		{"rmlp", &instruction.RemoveLiquidity{Pool: "ordi/sats", Amount: 3}},
		{"swap", &instruction.Swap{Pool: "ordi/sats", Asset: "sats", Amount: 4, MinOut: 1}},
		{"swap zero floor", &instruction.Swap{Pool: "ordi/sats", Asset: "ordi", Amount: 4}},
		{"direct transfer", &instruction.Transfer{Asset: "ordi", Amount: 5}},
		{"indirect transfer", &instruction.Transfer{Asset: "ordi", Amount: 5, To: "bc1pexample"}},
		{"max amount", &instruction.Mint{Asset: "ordi", Amount: ^uint64(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := instruction.Encode(tt.ins)
			require.NoError(t, err)

			decoded, err := instruction.Decode(encoded)
			require.NoError(t, err)
			require.Equal(t, tt.ins, decoded)
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	ins := &instruction.Swap{Pool: "ordi/sats", Asset: "ordi", Amount: 7, MinOut: 6}

	first, err := instruction.Encode(ins)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := instruction.Encode(ins)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestEncodeLayout(t *testing.T) {
	encoded, err := instruction.Encode(&instruction.Mint{Asset: "ordi", Amount: 100})
	require.NoError(t, err)

	// tag | version | discriminant | varbytes("ordi") | varint(100)
	want := append([]byte("odfi"), 0x01, 0x01, 0x04)
	want = append(want, []byte("ordi")...)
	want = append(want, 0x64)
	require.Equal(t, want, encoded)
}

func TestEncodeRejectsInvalid(t *testing.T) {
	_, err := instruction.Encode(&instruction.Mint{Asset: "ORDI", Amount: 1})
	require.Error(t, err)
}

func TestDecodeRejects(t *testing.T) {
	valid, err := instruction.Encode(&instruction.Mint{Asset: "ordi", Amount: 100})
	require.NoError(t, err)

	unknownVersion := append([]byte{}, valid...)
	unknownVersion[4] = 0x02

	unknownOp := append([]byte{}, valid...)
	unknownOp[5] = 0x7f

	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"missing tag", []byte("xxxx")},
		{"tag only", []byte("odfi")},
		{"unknown version", unknownVersion},
		{"unknown discriminant", unknownOp},
		{"truncated fields", valid[:len(valid)-1]},
		{"trailing bytes", append(append([]byte{}, valid...), 0x00)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := instruction.Decode(tt.payload)
			require.Error(t, err)
		})
	}
}
