package esplora

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/orddefi-labs/inscribed/internal/core/domain"
)

type Client struct {
	url        string
	httpClient *http.Client
}

// New creates an esplora client against the given base URL. It serves both
// the scanner and broadcaster ports.
func New(url string) *Client {
	url = strings.TrimSuffix(url, "/")

	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type utxoStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height"`
	BlockHash   string `json:"block_hash"`
}

type utxoResponse struct {
	Txid   string     `json:"txid"`
	Vout   uint32     `json:"vout"`
	Value  uint64     `json:"value"`
	Status utxoStatus `json:"status"`
}

// GetAddressUtxos lists the unspent outputs of an address, mempool ones
// included, via /address/{address}/utxo.
func (e *Client) GetAddressUtxos(ctx context.Context, address string) ([]domain.Utxo, error) {
	data, err := e.makeRequest(ctx, http.MethodGet, fmt.Sprintf("/address/%s/utxo", address), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get utxos for %s: %w", address, err)
	}

	var resp []utxoResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal utxos: %w", err)
	}

	tipHeight, err := e.getTipHeight(ctx)
	if err != nil {
		return nil, err
	}

	utxos := make([]domain.Utxo, 0, len(resp))
	for _, utxo := range resp {
		hash, err := chainhash.NewHashFromStr(utxo.Txid)
		if err != nil {
			return nil, fmt.Errorf("failed to parse txid %s: %w", utxo.Txid, err)
		}

		script, err := e.getOutputScript(ctx, utxo.Txid, utxo.Vout)
		if err != nil {
			return nil, err
		}

		confirmations := int64(0)
		if utxo.Status.Confirmed {
			confirmations = tipHeight - utxo.Status.BlockHeight + 1
		}

		utxos = append(utxos, domain.Utxo{
			OutPoint:      wire.OutPoint{Hash: *hash, Index: utxo.Vout},
			Value:         utxo.Value,
			Address:       address,
			Script:        script,
			Confirmations: confirmations,
		})
	}

	return utxos, nil
}

// Broadcast submits a raw transaction via POST /tx and returns the txid
// echoed by the explorer.
func (e *Client) Broadcast(ctx context.Context, txHex string) (string, error) {
	data, err := e.makeRequest(ctx, http.MethodPost, "/tx", strings.NewReader(txHex))
	if err != nil {
		return "", domain.BroadcastError.Wrap(err)
	}

	return strings.TrimSpace(string(data)), nil
}

type txOutResponse struct {
	ScriptPubKey hexBytes `json:"scriptpubkey"`
	Value        uint64   `json:"value"`
}

type txResponse struct {
	Vout []txOutResponse `json:"vout"`
}

func (e *Client) getOutputScript(ctx context.Context, txid string, vout uint32) ([]byte, error) {
	data, err := e.makeRequest(ctx, http.MethodGet, fmt.Sprintf("/tx/%s", txid), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get tx %s: %w", txid, err)
	}

	var resp txResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tx %s: %w", txid, err)
	}
	if int(vout) >= len(resp.Vout) {
		return nil, fmt.Errorf("tx %s has no output %d", txid, vout)
	}

	return resp.Vout[vout].ScriptPubKey, nil
}

func (e *Client) getTipHeight(ctx context.Context) (int64, error) {
	data, err := e.makeRequest(ctx, http.MethodGet, "/blocks/tip/height", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get tip height: %w", err)
	}

	var height int64
	if err := json.Unmarshal(data, &height); err != nil {
		return 0, fmt.Errorf("failed to parse tip height: %w", err)
	}

	return height, nil
}

func (e *Client) makeRequest(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, e.url+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return bodyBytes, nil
}
