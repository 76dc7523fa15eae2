// Package baidu provides a translate.Provider backed by the Baidu Fanyi
// general translation API.
//
// Requests are signed with MD5(appid + query + salt + secret) as required by
// the API and retried a bounded number of times on timeout.
package baidu

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MrWong99/lectern/pkg/provider/translate"
)

const (
	defaultEndpoint = "https://fanyi-api.baidu.com/api/trans/vip/translate"
	defaultTimeout  = 5 * time.Second
	defaultRetries  = 2
)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithEndpoint overrides the Baidu API URL. Mainly useful for tests.
func WithEndpoint(u string) Option {
	return func(p *Provider) {
		p.endpoint = u
	}
}

// WithTimeout bounds a single translation request.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// WithRetries sets how many times a timed-out request is retried before the
// provider reports failure.
func WithRetries(n int) Option {
	return func(p *Provider) {
		p.retries = n
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements translate.Provider using the Baidu Fanyi API.
type Provider struct {
	appID      string
	secret     string
	endpoint   string
	timeout    time.Duration
	retries    int
	httpClient *http.Client
}

// New constructs a Baidu translation Provider. appID and secret are the
// credentials issued by the Baidu developer console and must be non-empty.
func New(appID, secret string, opts ...Option) (*Provider, error) {
	if appID == "" || secret == "" {
		return nil, errors.New("baidu: appID and secret must not be empty")
	}
	p := &Provider{
		appID:      appID,
		secret:     secret,
		endpoint:   defaultEndpoint,
		timeout:    defaultTimeout,
		retries:    defaultRetries,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// apiResponse is the subset of the Baidu response body we consume.
type apiResponse struct {
	ErrorCode   string `json:"error_code"`
	ErrorMsg    string `json:"error_msg"`
	TransResult []struct {
		Src string `json:"src"`
		Dst string `json:"dst"`
	} `json:"trans_result"`
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text, from, to string) (translate.Result, error) {
	if text == "" {
		return translate.Result{}, nil
	}

	salt := strconv.Itoa(32768 + rand.Intn(32769))
	params := url.Values{
		"q":     {text},
		"from":  {from},
		"to":    {to},
		"appid": {p.appID},
		"salt":  {salt},
		"sign":  {p.sign(text, salt)},
	}
	reqURL := p.endpoint + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		result, err := p.request(ctx, reqURL)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return translate.Result{}, ctx.Err()
		}
		lastErr = err
	}
	return translate.Result{
		Code:    translate.CodeFailed,
		Message: fmt.Sprintf("translate failed after %d attempts: %v", p.retries+1, lastErr),
	}, nil
}

// request performs a single signed GET. A transport-level failure or timeout
// is returned as an error so the caller can retry; an API-level rejection is
// final and comes back as a failed Result with a nil error.
func (p *Provider) request(ctx context.Context, reqURL string) (translate.Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return translate.Result{}, fmt.Errorf("baidu: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return translate.Result{}, fmt.Errorf("baidu: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return translate.Result{}, fmt.Errorf("baidu: unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return translate.Result{}, fmt.Errorf("baidu: decode response: %w", err)
	}

	if body.ErrorCode != "" && body.ErrorCode != "0" {
		return translate.Result{
			Code:    translate.CodeFailed,
			Message: fmt.Sprintf("baidu error %s: %s", body.ErrorCode, body.ErrorMsg),
		}, nil
	}
	if len(body.TransResult) == 0 {
		return translate.Result{
			Code:    translate.CodeFailed,
			Message: "baidu: empty translation result",
		}, nil
	}
	return translate.Result{Text: body.TransResult[0].Dst}, nil
}

// sign computes MD5(appid + query + salt + secret) in lowercase hex.
func (p *Provider) sign(query, salt string) string {
	sum := md5.Sum([]byte(p.appID + query + salt + p.secret))
	return hex.EncodeToString(sum[:])
}

// Ensure Provider implements translate.Provider at compile time.
var _ translate.Provider = (*Provider)(nil)
