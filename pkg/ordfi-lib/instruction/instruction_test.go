package instruction_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orddefi-labs/inscribed/pkg/ordfi-lib/instruction"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want instruction.Instruction
	}{
		{
			name: "mint",
			raw:  `{"type":"mint","asset":"ordi","amount":100}`,
			want: &instruction.Mint{Asset: "ordi", Amount: 100},
		},
		{
			name: "mint with string amount",
			raw:  `{"type":"mint","asset":"ordi","amount":"100"}`,
			want: &instruction.Mint{Asset: "ordi", Amount: 100},
		},
		{
			name: "addlp",
			raw:  `{"type":"addlp","pool":"ordi/sats","amount0":500,"amount1":21000}`,
			want: &instruction.AddLiquidity{Pool: "ordi/sats", Amount0: 500, Amount1: 21000},
		},
		{
			name: "rmlp",
			raw:  `{"type":"rmlp","pool":"ordi/sats","amount":250}`,
			want: &instruction.RemoveLiquidity{Pool: "ordi/sats", Amount: 250},
		},
		{
			name: "swap",
			raw:  `{"type":"swap","pool":"ordi/sats","asset":"ordi","amount":10,"min_out":9}`,
			want: &instruction.Swap{Pool: "ordi/sats", Asset: "ordi", Amount: 10, MinOut: 9},
		},
		{
			name: "swap without slippage floor",
			raw:  `{"type":"swap","pool":"ordi/sats","asset":"sats","amount":10}`,
			want: &instruction.Swap{Pool: "ordi/sats", Asset: "sats", Amount: 10},
		},
		{
			name: "direct transfer",
			raw:  `{"type":"transfer","asset":"ordi","amount":42}`,
			want: &instruction.Transfer{Asset: "ordi", Amount: 42},
		},
		{
			name: "indirect transfer",
			raw:  `{"type":"transfer","asset":"ordi","amount":42,"to":"bc1qexample"}`,
			want: &instruction.Transfer{Asset: "ordi", Amount: 42, To: "bc1qexample"},
		},
		{
			name: "unknown fields ignored",
			raw:  `{"type":"mint","asset":"ordi","amount":1,"memo":"hello"}`,
			want: &instruction.Mint{Asset: "ordi", Amount: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := instruction.Parse([]byte(tt.raw))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `mint ordi 100`},
		{"missing type", `{"asset":"ordi","amount":100}`},
		{"unknown type", `{"type":"burn","asset":"ordi","amount":100}`},
		{"missing amount", `{"type":"mint","asset":"ordi"}`},
		{"negative amount", `{"type":"mint","asset":"ordi","amount":-5}`},
		{"fractional amount", `{"type":"mint","asset":"ordi","amount":1.5}`},
		{"boolean amount", `{"type":"mint","asset":"ordi","amount":true}`},
		{"missing asset", `{"type":"mint","amount":100}`},
		{"uppercase tick", `{"type":"mint","asset":"ORDI","amount":100}`},
		{"tick too long", `{"type":"mint","asset":"aaaaaaaaaaaaaaaaa","amount":100}`},
		{"missing pool", `{"type":"rmlp","amount":1}`},
		{"pool without separator", `{"type":"rmlp","pool":"ordisats","amount":1}`},
		{"pool with identical assets", `{"type":"rmlp","pool":"ordi/ordi","amount":1}`},
		{"swap asset outside pool", `{"type":"swap","pool":"ordi/sats","asset":"doge","amount":1}`},
		{"addlp missing amount1", `{"type":"addlp","pool":"ordi/sats","amount0":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := instruction.Parse([]byte(tt.raw))
			require.Error(t, err)
		})
	}
}

func TestPrivileged(t *testing.T) {
	require.True(t, (&instruction.Mint{Asset: "a", Amount: 1}).Privileged())
	require.True(t, (&instruction.AddLiquidity{Pool: "a/b"}).Privileged())
	require.True(t, (&instruction.RemoveLiquidity{Pool: "a/b"}).Privileged())
	require.True(t, (&instruction.Swap{Pool: "a/b", Asset: "a"}).Privileged())
	require.True(t, (&instruction.Transfer{Asset: "a", Amount: 1}).Privileged())
	require.False(t, (&instruction.Transfer{Asset: "a", Amount: 1, To: "bc1q..."}).Privileged())
}
