package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/ports"
)

const (
	// DefaultAPIURL is the public Farcaster API
	DefaultAPIURL = "https://api.farcaster.xyz"

	// DefaultTimeout bounds a single lookup
	DefaultTimeout = 5 * time.Second
)

type primaryAddressResponse struct {
	Result struct {
		Address struct {
			FID      uint64 `json:"fid"`
			Protocol string `json:"protocol"`
			Address  string `json:"address"`
		} `json:"address"`
	} `json:"result"`
}

// FarcasterResolver looks up a fid's primary Ethereum address
type FarcasterResolver struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewFarcasterResolver creates a resolver against the Farcaster API at baseURL
func NewFarcasterResolver(baseURL string, timeout time.Duration, logger *slog.Logger) ports.UserResolver {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FarcasterResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Resolve returns the principal for fid. The primary address is best-effort:
// an API answer other than 2xx leaves it empty, while transport failures and
// undecodable answers are resolver failures.
func (r *FarcasterResolver) Resolve(ctx context.Context, fid uint64) (*core.Principal, error) {
	q := url.Values{}
	q.Set("fid", strconv.FormatUint(fid, 10))
	q.Set("protocol", "ethereum")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/fc/primary-address?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrResolverFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrResolverFailure, err)
	}
	defer resp.Body.Close()

	principal := &core.Principal{FID: fid}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Debug("no primary address", "fid", fid, "status", resp.StatusCode)
		return principal, nil
	}

	var body primaryAddressResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode primary address: %v", core.ErrResolverFailure, err)
	}

	address := body.Result.Address.Address
	if common.IsHexAddress(address) {
		principal.PrimaryAddress = address
	} else if address != "" {
		r.logger.Warn("ignoring malformed primary address", "fid", fid, "address", address)
	}

	return principal, nil
}
