package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/photon-storage/bounty-hub/errs"
)

const requestTimeout = 5 * time.Second

// finalizedConfirmations is reported for transactions the RPC node no
// longer tracks individually because they reached finality.
const finalizedConfirmations = uint64(32)

// Client gets the required data according to the JSON-RPC request
// from a solana node.
type Client struct {
	endpoint  string
	programID string
}

// NewClient returns a new chain client instance. programID is the
// escrow program expected to own escrow accounts.
func NewClient(endpoint, programID string) *Client {
	return &Client{
		endpoint:  endpoint,
		programID: programID,
	}
}

// Tx is the verified view of an on-chain transaction.
type Tx struct {
	Slot         uint64
	BlockTime    int64
	Fee          uint64
	Failed       bool
	AccountKeys  []string
	PreBalances  []int64
	PostBalances []int64
}

// BalanceDelta returns the lamport balance change of the given wallet
// within the transaction.
func (t *Tx) BalanceDelta(wallet string) (int64, bool) {
	for i, key := range t.AccountKeys {
		if key != wallet {
			continue
		}

		if i >= len(t.PreBalances) || i >= len(t.PostBalances) {
			return 0, false
		}

		return t.PostBalances[i] - t.PreBalances[i], true
	}

	return 0, false
}

type signatureStatus struct {
	Slot          uint64          `json:"slot"`
	Confirmations *uint64         `json:"confirmations"`
	Err           json.RawMessage `json:"err"`
}

type signatureStatusesResp struct {
	Value []*signatureStatus `json:"value"`
}

// Confirmations requests the confirmation count of the given
// transaction signature. A finalized transaction reports
// finalizedConfirmations.
func (c *Client) Confirmations(ctx context.Context, signature string) (uint64, error) {
	resp := &signatureStatusesResp{}
	if err := c.rpcCall(
		ctx,
		"getSignatureStatuses",
		[]interface{}{
			[]string{signature},
			map[string]interface{}{"searchTransactionHistory": true},
		},
		resp,
	); err != nil {
		return 0, err
	}

	if len(resp.Value) == 0 || resp.Value[0] == nil {
		return 0, errs.ErrNotFound
	}

	status := resp.Value[0]
	if len(status.Err) > 0 && !bytes.Equal(status.Err, []byte("null")) {
		return 0, errors.Wrap(errs.ErrChainFailure, "transaction failed on chain")
	}

	if status.Confirmations == nil {
		return finalizedConfirmations, nil
	}

	return *status.Confirmations, nil
}

type transactionResp struct {
	Slot        uint64 `json:"slot"`
	BlockTime   int64  `json:"blockTime"`
	Transaction struct {
		Message struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
	Meta struct {
		Err          json.RawMessage `json:"err"`
		Fee          uint64          `json:"fee"`
		PreBalances  []int64         `json:"preBalances"`
		PostBalances []int64         `json:"postBalances"`
	} `json:"meta"`
}

// Transaction requests the confirmed transaction of the given
// signature.
func (c *Client) Transaction(ctx context.Context, signature string) (*Tx, error) {
	resp := &transactionResp{}
	if err := c.rpcCall(
		ctx,
		"getTransaction",
		[]interface{}{
			signature,
			map[string]interface{}{
				"encoding":                       "json",
				"commitment":                     "confirmed",
				"maxSupportedTransactionVersion": 0,
			},
		},
		resp,
	); err != nil {
		return nil, err
	}

	if resp.Slot == 0 && len(resp.Transaction.Message.AccountKeys) == 0 {
		return nil, errs.ErrNotFound
	}

	failed := len(resp.Meta.Err) > 0 && !bytes.Equal(resp.Meta.Err, []byte("null"))
	return &Tx{
		Slot:         resp.Slot,
		BlockTime:    resp.BlockTime,
		Fee:          resp.Meta.Fee,
		Failed:       failed,
		AccountKeys:  resp.Transaction.Message.AccountKeys,
		PreBalances:  resp.Meta.PreBalances,
		PostBalances: resp.Meta.PostBalances,
	}, nil
}

type balanceResp struct {
	Value int64 `json:"value"`
}

// Balance requests the lamport balance of the given wallet address.
func (c *Client) Balance(ctx context.Context, address string) (int64, error) {
	resp := &balanceResp{}
	if err := c.rpcCall(
		ctx,
		"getBalance",
		[]interface{}{address},
		resp,
	); err != nil {
		return 0, err
	}

	return resp.Value, nil
}

type accountInfoResp struct {
	Value *struct {
		Owner string   `json:"owner"`
		Data  []string `json:"data"`
	} `json:"value"`
}

// EscrowBalance requests the escrow account of the given address and
// returns the virtual amount stored in its state. The account layout
// is an 8-byte discriminator, a 32-byte owner key and a u64 amount.
func (c *Client) EscrowBalance(ctx context.Context, address string) (int64, error) {
	resp := &accountInfoResp{}
	if err := c.rpcCall(
		ctx,
		"getAccountInfo",
		[]interface{}{
			address,
			map[string]interface{}{"encoding": "base64"},
		},
		resp,
	); err != nil {
		return 0, err
	}

	if resp.Value == nil {
		return 0, errs.ErrNotFound
	}

	if resp.Value.Owner != c.programID {
		return 0, errors.Wrapf(errs.ErrChainFailure,
			"escrow account owned by wrong program %s", resp.Value.Owner)
	}

	if len(resp.Value.Data) == 0 {
		return 0, errors.Wrap(errs.ErrChainFailure, "missing escrow account data")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Value.Data[0])
	if err != nil {
		return 0, errors.Wrap(errs.ErrChainFailure, "decode escrow account data")
	}

	if len(data) < 48 {
		return 0, errors.Wrapf(errs.ErrChainFailure,
			"escrow account data too short: %d", len(data))
	}

	return int64(binary.LittleEndian.Uint64(data[40:48])), nil
}

// ValidAddress reports whether the given string is a well-formed
// base58 32-byte account address.
func ValidAddress(address string) bool {
	raw, err := base58.Decode(address)
	return err == nil && len(raw) == 32
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) rpcCall(
	ctx context.Context,
	method string,
	params []interface{},
	result interface{},
) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, err := json.Marshal(&rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.endpoint,
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	rr := &rpcResponse{}
	if err := json.Unmarshal(respBody, rr); err != nil {
		return err
	}

	if rr.Error != nil {
		return fmt.Errorf("request solana node failed, err:%s", rr.Error.Message)
	}

	if len(rr.Result) == 0 {
		return errs.ErrNotFound
	}

	return json.Unmarshal(rr.Result, result)
}
