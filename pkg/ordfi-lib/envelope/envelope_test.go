package envelope_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/orddefi-labs/inscribed/pkg/ordfi-lib/envelope"
	"github.com/orddefi-labs/inscribed/pkg/ordfi-lib/instruction"
)

func testKey(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func testPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := instruction.Encode(&instruction.Mint{Asset: "ordi", Amount: 100})
	require.NoError(t, err)
	return payload
}

func TestNewRoundTrip(t *testing.T) {
	env, err := envelope.New(testPayload(t), testKey(t), envelope.DefaultOptions())
	require.NoError(t, err)

	parsed, err := envelope.ParseLeafScript(env.LeafScript)
	require.NoError(t, err)
	require.Equal(t, env.Payload, parsed)
}

func TestNewCommitsLeafToOutputKey(t *testing.T) {
	env, err := envelope.New(testPayload(t), testKey(t), envelope.DefaultOptions())
	require.NoError(t, err)

	ctrlBlock, err := txscript.ParseControlBlock(env.ControlBlock)
	require.NoError(t, err)

	err = txscript.VerifyTaprootLeafCommitment(
		ctrlBlock, schnorr.SerializePubKey(env.OutputKey), env.LeafScript,
	)
	require.NoError(t, err)
}

func TestNewIsDeterministic(t *testing.T) {
	key := testKey(t)
	payload := testPayload(t)

	first, err := envelope.New(payload, key, envelope.DefaultOptions())
	require.NoError(t, err)
	second, err := envelope.New(payload, key, envelope.DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, first.LeafScript, second.LeafScript)
	require.Equal(t, first.ControlBlock, second.ControlBlock)
	require.Equal(t, first.PkScript, second.PkScript)
}

func TestChunking(t *testing.T) {
	tests := []struct {
		name        string
		payloadSize int
		chunkSize   int
	}{
		{"single chunk", 100, 520},
		{"exactly one chunk", 520, 520},
		{"two chunks", 521, 520},
		{"many small chunks", 1000, 33},
		{"empty tail avoided", 1040, 520},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := bytes.Repeat([]byte{0xab}, tt.payloadSize)
			env, err := envelope.New(payload, testKey(t), envelope.Options{
				MaxChunkSize: tt.chunkSize,
			})
			require.NoError(t, err)

			// Every push in the guarded branch must respect the chunk cap.
			tokenizer := txscript.MakeScriptTokenizer(0, env.LeafScript)
			for tokenizer.Next() {
				require.LessOrEqual(t, len(tokenizer.Data()), tt.chunkSize)
			}
			require.NoError(t, tokenizer.Err())

			parsed, err := envelope.ParseLeafScript(env.LeafScript)
			require.NoError(t, err)
			require.Equal(t, payload, parsed)
		})
	}
}

func TestNewRejectsOversizedPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{0x01}, 1025)
	_, err := envelope.New(payload, testKey(t), envelope.Options{
		MaxChunkSize:   520,
		MaxPayloadSize: 1024,
	})
	require.ErrorIs(t, err, envelope.ErrPayloadTooLarge)
}

func TestNewRejectsInvalidChunkSize(t *testing.T) {
	for _, size := range []int{-1, 0, 521} {
		_, err := envelope.New(testPayload(t), testKey(t), envelope.Options{
			MaxChunkSize: size,
		})
		require.Error(t, err)
	}
}

func TestAddress(t *testing.T) {
	env, err := envelope.New(testPayload(t), testKey(t), envelope.DefaultOptions())
	require.NoError(t, err)

	addr, err := env.Address(&chaincfg.RegressionNetParams)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(addr.String(), "bcrt1p"))

	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	require.Equal(t, env.PkScript, script)
}

func TestRevealWitness(t *testing.T) {
	env, err := envelope.New(testPayload(t), testKey(t), envelope.DefaultOptions())
	require.NoError(t, err)

	sig := bytes.Repeat([]byte{0x01}, 64)
	witness := env.RevealWitness(sig)
	require.Len(t, witness, 3)
	require.Equal(t, sig, []byte(witness[0]))
	require.Equal(t, env.LeafScript, []byte(witness[1]))
	require.Equal(t, env.ControlBlock, []byte(witness[2]))
}

func TestParseLeafScriptRejectsForeignScripts(t *testing.T) {
	key := testKey(t)

	keyOnly, err := txscript.NewScriptBuilder().
		AddData(schnorr.SerializePubKey(key)).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	foreignTag, err := txscript.NewScriptBuilder().
		AddData(schnorr.SerializePubKey(key)).
		AddOp(txscript.OP_CHECKSIG).
		AddOp(txscript.OP_FALSE).
		AddOp(txscript.OP_IF).
		AddData([]byte("ord")).
		AddOp(txscript.OP_0).
		AddData([]byte("hello")).
		AddOp(txscript.OP_ENDIF).
		Script()
	require.NoError(t, err)

	for name, script := range map[string][]byte{
		"key only":    keyOnly,
		"foreign tag": foreignTag,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := envelope.ParseLeafScript(script)
			require.ErrorIs(t, err, envelope.ErrNotAnEnvelope)
		})
	}
}
