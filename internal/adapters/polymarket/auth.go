package polymarket

// auth.go: Polymarket CLOB authenticated client.
//
// Implements two-level authentication:
//   L1: EIP-712 signature with wallet private key → derive API credentials
//   L2: HMAC-SHA256 signing of every authenticated request
//
// When the API credential triple is configured, L1 is skipped.

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/config"
	gomodel "github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

const (
	defaultChainID = int64(137)

	// CLOB EIP-712 auth domain
	clobDomainName    = "ClobAuthDomain"
	clobDomainVersion = "1"
	// Message signed for deriving API keys
	clobAuthMessage = "This message attests that I control the given wallet"

	// Taker address: zero address = public order
	zeroAddress = "0x0000000000000000000000000000000000000000"

	// Conditional tokens and USDC.e both use 6 decimals on-chain.
	tokenDecimals = 6
	sizeDecimals  = 2
)

// APICredentials holds the CLOB L2 credentials.
type APICredentials struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Empty reports whether no field is set.
func (c APICredentials) Empty() bool {
	return c.APIKey == "" && c.Secret == "" && c.Passphrase == ""
}

// AuthConfig configures an AuthClient.
type AuthConfig struct {
	CLOBBase      string
	ChainID       int64
	PrivateKeyHex string // with or without 0x
	Creds         APICredentials
}

// AuthClient wraps the base Client with L1/L2 auth capabilities.
type AuthClient struct {
	*Client
	chainID      int64
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	contracts    *config.Contracts
	orderBuilder builder.ExchangeOrderBuilder
	creds        *APICredentials
}

// NewAuthClient creates an authenticated trading client. No network call
// is made; credentials are derived lazily if not configured.
func NewAuthClient(cfg AuthConfig) (*AuthClient, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("auth: invalid private key: %w", err)
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = defaultChainID
	}

	contracts, err := config.GetContracts(chainID)
	if err != nil {
		return nil, fmt.Errorf("auth: get contracts for chain %d: %w", chainID, err)
	}

	ac := &AuthClient{
		Client:       NewClient(cfg.CLOBBase),
		chainID:      chainID,
		privateKey:   key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		contracts:    contracts,
		orderBuilder: builder.NewExchangeOrderBuilderImpl(big.NewInt(chainID), nil),
	}
	if !cfg.Creds.Empty() {
		creds := cfg.Creds
		ac.creds = &creds
	}
	return ac, nil
}

// Address returns the wallet address.
func (ac *AuthClient) Address() string {
	return ac.address.Hex()
}

// EnsureCreds derives API credentials via L1 auth unless already set.
// Should be called once on startup; credentials are cached.
func (ac *AuthClient) EnsureCreds(ctx context.Context) error {
	if ac.creds != nil {
		return nil
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := ac.signClobAuth(ts, "0")
	if err != nil {
		return fmt.Errorf("auth: sign l1: %w", err)
	}

	url := fmt.Sprintf("%s/auth/derive-api-key", ac.clobBase)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("auth: derive-api-key request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", ac.address.Hex())
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_NONCE", "0")

	resp, err := ac.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth: derive-api-key: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: derive-api-key status %d: %s", resp.StatusCode, body)
	}

	var creds APICredentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return fmt.Errorf("auth: parse creds: %w", err)
	}
	ac.creds = &creds
	return nil
}

// EIP-712 type hashes (computed once).
var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId)",
	))
	clobAuthTypeHash = crypto.Keccak256Hash([]byte(
		"ClobAuth(address address,string timestamp,uint256 nonce,string message)",
	))
)

// clobAuthDomainSeparator computes the EIP-712 domain separator for ClobAuthDomain.
func clobAuthDomainSeparator(chainID int64) common.Hash {
	var buf []byte
	buf = append(buf, eip712DomainTypeHash.Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(clobDomainName)).Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(clobDomainVersion)).Bytes()...)
	buf = append(buf, common.LeftPadBytes(big.NewInt(chainID).Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

// signClobAuth signs the ClobAuth EIP-712 typed data for L1 auth.
func (ac *AuthClient) signClobAuth(timestamp, nonce string) (string, error) {
	nonceInt, ok := new(big.Int).SetString(nonce, 10)
	if !ok {
		return "", fmt.Errorf("invalid nonce: %s", nonce)
	}

	var structBuf []byte
	structBuf = append(structBuf, clobAuthTypeHash.Bytes()...)
	structBuf = append(structBuf, common.LeftPadBytes(ac.address.Bytes(), 32)...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(timestamp)).Bytes()...)
	structBuf = append(structBuf, common.LeftPadBytes(nonceInt.Bytes(), 32)...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(clobAuthMessage)).Bytes()...)
	structHash := crypto.Keccak256Hash(structBuf)

	var rawBuf []byte
	rawBuf = append(rawBuf, 0x19, 0x01)
	rawBuf = append(rawBuf, clobAuthDomainSeparator(ac.chainID).Bytes()...)
	rawBuf = append(rawBuf, structHash.Bytes()...)
	msgHash := crypto.Keccak256Hash(rawBuf)

	sig, err := crypto.Sign(msgHash.Bytes(), ac.privateKey)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + fmt.Sprintf("%x", sig), nil
}

// l2Headers returns the authenticated headers for L2 API calls.
func (ac *AuthClient) l2Headers(method, path, body string) (map[string]string, error) {
	if ac.creds == nil {
		return nil, fmt.Errorf("auth: credentials not derived yet")
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	msg := ts + strings.ToUpper(method) + path + body

	secretBytes, err := base64.URLEncoding.DecodeString(ac.creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("auth: decode secret: %w", err)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(msg))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    ac.address.Hex(),
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  ts,
		"POLY_API_KEY":    ac.creds.APIKey,
		"POLY_PASSPHRASE": ac.creds.Passphrase,
	}, nil
}

// doL2 executes an authenticated L2 HTTP request with rate limiting.
// HMAC headers are regenerated on every attempt so the timestamp stays fresh.
// retries=0 sends exactly once; order posts use it so a signed order is
// never resent automatically.
func (ac *AuthClient) doL2(ctx context.Context, method, path string, reqBody, out any, retries int) error {
	var bodyStr string
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		bodyStr = string(b)
	}

	limiter := ac.clobLimiter
	if path == orderPath {
		limiter = ac.ordersLimiter
	}

	return ac.doWithRetry(ctx, limiter, retries, func() (*http.Response, error) {
		headers, err := ac.l2Headers(method, path, bodyStr)
		if err != nil {
			return nil, err
		}

		var bodyReader io.Reader
		if bodyStr != "" {
			bodyReader = strings.NewReader(bodyStr)
		}

		req, err := http.NewRequestWithContext(ctx, method, ac.clobBase+path, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return ac.http.Do(req)
	}, out)
}

// orderParams is everything needed to sign one order.
type orderParams struct {
	TokenID    string
	Side       domain.Side
	Price      float64
	Size       float64 // shares
	TickSize   decimal.Decimal
	FeeRateBps int64
	Nonce      uint64
	Expiration int64 // unix seconds, 0 = none
	NegRisk    bool
}

// orderAmounts converts price/size into the integer maker/taker amounts
// the exchange contract expects. Price is rounded to the tick toward the
// marketable side (up for BUY, down for SELL) and kept inside [tick, 1-tick];
// size is truncated to 2 decimals. A BUY rounded above the requested price
// buys fewer shares so price × size stays the notional ceiling. Decimal
// arithmetic keeps makerAmount == price × takerAmount exact, which the CLOB
// verifies.
func orderAmounts(side domain.Side, price, size float64, tick decimal.Decimal) (maker, taker, px decimal.Decimal, err error) {
	if tick.Sign() <= 0 {
		tick = decimal.RequireFromString(defaultTickSize)
	}
	limit := decimal.NewFromFloat(price)
	steps := limit.Div(tick)
	if side == domain.SideBuy {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}
	px = steps.Mul(tick)

	one := decimal.NewFromInt(1)
	if px.LessThan(tick) {
		px = tick
	}
	if px.GreaterThan(one.Sub(tick)) {
		px = one.Sub(tick)
	}

	requested := decimal.NewFromFloat(size)
	shares := requested.Truncate(sizeDecimals)
	if side == domain.SideBuy && px.GreaterThan(limit) {
		shares = decimal.Min(shares, limit.Mul(requested).Div(px).Truncate(sizeDecimals))
	}
	if shares.Sign() <= 0 {
		return maker, taker, px, fmt.Errorf("size %.6f rounds to zero shares at %s", size, px)
	}

	scale := decimal.New(1, tokenDecimals)
	usdc := shares.Mul(px).Mul(scale).Truncate(0)
	units := shares.Mul(scale).Truncate(0)

	if side == domain.SideBuy {
		return usdc, units, px, nil
	}
	return units, usdc, px, nil
}

// buildSignedOrder creates an EIP-712 signed order for the given parameters.
func (ac *AuthClient) buildSignedOrder(p orderParams) (*gomodel.SignedOrder, decimal.Decimal, error) {
	maker, taker, px, err := orderAmounts(p.Side, p.Price, p.Size, p.TickSize)
	if err != nil {
		return nil, px, fmt.Errorf("amounts: %w", err)
	}
	if maker.Sign() <= 0 || taker.Sign() <= 0 {
		return nil, px, fmt.Errorf("invalid amounts: maker=%s taker=%s (price=%.4f size=%.4f)", maker, taker, p.Price, p.Size)
	}

	side := gomodel.BUY
	if p.Side == domain.SideSell {
		side = gomodel.SELL
	}

	verifyingContract := gomodel.CTFExchange
	if p.NegRisk {
		verifyingContract = gomodel.NegRiskCTFExchange
	}

	orderData := &gomodel.OrderData{
		Maker:         ac.address.Hex(),
		Taker:         zeroAddress,
		TokenId:       p.TokenID,
		MakerAmount:   maker.String(),
		TakerAmount:   taker.String(),
		FeeRateBps:    strconv.FormatInt(p.FeeRateBps, 10),
		Nonce:         strconv.FormatUint(p.Nonce, 10),
		Signer:        ac.address.Hex(),
		Expiration:    strconv.FormatInt(p.Expiration, 10),
		Side:          side,
		SignatureType: gomodel.EOA,
	}

	signed, err := ac.orderBuilder.BuildSignedOrder(ac.privateKey, orderData, verifyingContract)
	if err != nil {
		return nil, px, fmt.Errorf("build signed order: %w", err)
	}
	return signed, px, nil
}
