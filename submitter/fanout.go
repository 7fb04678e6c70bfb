package submitter

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-epoch-trigger/contracts/rewarder"
	"github.com/rony4d/go-epoch-trigger/fees"
)

// DefaultRelayTimeout bounds each individual relay dispatch. Relays that
// answer slower than this have no chance of building the target block
// anyway.
const DefaultRelayTimeout = 3 * time.Second

// targetBlockOffset is how far past the current head the bundle aims.
// head+1 is usually already being built when the dispatch lands.
const targetBlockOffset = 2

// relayClient submits signed bundles to one builder relay endpoint,
// authenticating the request body with a keccak signature in the
// X-Flashbots-Signature header.
type relayClient struct {
	url     string
	authKey *ecdsa.PrivateKey
	authEOA string
	httpc   *http.Client
}

func newRelayClient(url, authKeyHex string, timeout time.Duration) (*relayClient, error) {
	h := strings.TrimPrefix(strings.TrimSpace(authKeyHex), "0x")
	if h == "" {
		return nil, fmt.Errorf("relay auth key is empty")
	}
	key, err := crypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("relay auth key parse: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultRelayTimeout
	}
	return &relayClient{
		url:     strings.TrimSpace(url),
		authKey: key,
		authEOA: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		httpc:   &http.Client{Timeout: timeout},
	}, nil
}

func (c *relayClient) signBody(body []byte) string {
	sig, err := crypto.Sign(crypto.Keccak256(body), c.authKey)
	if err != nil {
		return ""
	}
	return c.authEOA + ":0x" + hex.EncodeToString(sig)
}

// sendBundle dispatches {transactions, targetBlockNumber} as an
// eth_sendBundle call. Acceptance is HTTP 200 with no JSON-RPC error
// member; it is not an inclusion proof.
func (c *relayClient) sendBundle(ctx context.Context, rawTxs []string, targetBlock uint64) error {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_sendBundle",
		"params": []interface{}{
			map[string]interface{}{
				"txs":         rawTxs,
				"blockNumber": hexutil.EncodeUint64(targetBlock),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Flashbots-Signature", c.signBody(body))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay answered http %d", resp.StatusCode)
	}
	var wrap struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(buf.Bytes(), &wrap); err == nil && wrap.Error != nil {
		return fmt.Errorf("relay rpc error: %s", wrap.Error.Message)
	}
	return nil
}

// Fanout signs the trigger once and races it across every configured
// relay. Overall success needs just one acceptance; partial relay
// failures are expected and land in the outcome, not in the error.
type Fanout struct {
	backend  Backend
	signer   Signer
	contract *rewarder.Rewarder
	chainID  *big.Int
	relays   []*relayClient
	timeout  time.Duration
	log      *logrus.Entry
}

func NewFanout(backend Backend, signer Signer, contract *rewarder.Rewarder, chainID *big.Int,
	relayURLs []string, authKeyHex string, relayTimeout time.Duration, log *logrus.Entry) (*Fanout, error) {

	if len(relayURLs) == 0 {
		return nil, fmt.Errorf("fan-out submission requires at least one relay endpoint")
	}
	if relayTimeout <= 0 {
		relayTimeout = DefaultRelayTimeout
	}
	clients := make([]*relayClient, 0, len(relayURLs))
	for _, u := range relayURLs {
		if strings.TrimSpace(u) == "" {
			continue
		}
		c, err := newRelayClient(u, authKeyHex, relayTimeout)
		if err != nil {
			return nil, fmt.Errorf("relay %s: %w", u, err)
		}
		clients = append(clients, c)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no usable relay endpoints")
	}
	return &Fanout{
		backend:  backend,
		signer:   signer,
		contract: contract,
		chainID:  chainID,
		relays:   clients,
		timeout:  relayTimeout,
		log:      log,
	}, nil
}

// Submit signs the trigger transaction once and dispatches it to all
// relays concurrently, each dispatch bounded by its own timeout. The call
// waits for every dispatch to settle and aggregates the results; it does
// not confirm inclusion.
func (f *Fanout) Submit(ctx context.Context, targetEpoch idx.Epoch, bid fees.Bid) (Outcome, error) {
	pending, err := f.contract.RewardsAvailable(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: rewardsAvailable read: %v", ErrSubmissionRejected, err)
	}
	if pending.Sign() == 0 {
		return Outcome{}, ErrNoEligibleTarget
	}

	raw, err := f.signedRawTx(ctx, bid)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrSubmissionRejected, err)
	}

	head, err := f.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: head read: %v", ErrSubmissionRejected, err)
	}
	target := head.Number.Uint64() + targetBlockOffset

	// One task per relay; the signed payload is immutable and shared.
	// This is a join over all results, not a first-wins race: slow relays
	// only cost their own timeout.
	results := make(chan RelayResult, len(f.relays))
	for _, relay := range f.relays {
		go func(rc *relayClient) {
			dispatchCtx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()
			err := rc.sendBundle(dispatchCtx, []string{raw}, target)
			results <- RelayResult{Relay: rc.url, Accepted: err == nil, Err: err}
		}(relay)
	}

	out := Outcome{RelayResults: make([]RelayResult, 0, len(f.relays))}
	for range f.relays {
		r := <-results
		out.RelayResults = append(out.RelayResults, r)
		if r.Accepted {
			f.log.WithField("relay", r.Relay).Debug("relay accepted bundle")
		} else {
			f.log.WithField("relay", r.Relay).WithError(r.Err).Debug("relay dispatch failed")
		}
	}

	accepted := out.AcceptedCount()
	f.log.WithFields(logrus.Fields{
		"epoch":       targetEpoch,
		"targetBlock": target,
		"accepted":    accepted,
		"attempted":   len(f.relays),
	}).Info("bundle fan-out settled")

	if accepted == 0 {
		return out, fmt.Errorf("%w: all %d relays refused the bundle", ErrSubmissionRejected, len(f.relays))
	}
	out.Dispatched = true
	return out, nil
}

func (f *Fanout) signedRawTx(ctx context.Context, bid fees.Bid) (string, error) {
	nonce, err := f.backend.PendingNonceAt(ctx, f.signer.Address())
	if err != nil {
		return "", fmt.Errorf("nonce read: %w", err)
	}
	to := f.contract.Address()
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   f.chainID,
		Nonce:     nonce,
		GasTipCap: bid.MaxPriorityFee,
		GasFeeCap: bid.MaxFee,
		Gas:       rewarder.TriggerGasLimit,
		To:        &to,
		Value:     new(big.Int),
		Data:      rewarder.TriggerCallData(),
	})
	signed, err := f.signer.SignTx(tx)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	bin, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return "0x" + hex.EncodeToString(bin), nil
}
