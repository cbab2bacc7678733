package resolver

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/ports"
)

const (
	// DefaultRPCURL is a public Optimism mainnet endpoint
	DefaultRPCURL = "https://mainnet.optimism.io"

	// DefaultIDRegistry is the Farcaster IdRegistry on Optimism
	DefaultIDRegistry = "0x00000000Fc6c5F01Fc30151999387Bb99A9f489b"

	idRegistryABI = `[{"type":"function","name":"custodyOf","stateMutability":"view",
		"inputs":[{"name":"fid","type":"uint256"}],
		"outputs":[{"name":"custody","type":"address"}]}]`
)

// ContractCaller is the part of an Ethereum client the registry needs
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// IDRegistry reads fid custody from the onchain IdRegistry
type IDRegistry struct {
	caller   ContractCaller
	contract common.Address
	abi      abi.ABI
	timeout  time.Duration
}

// DialIDRegistry connects to rpcURL and returns a registry reader together
// with the client, which the caller must close
func DialIDRegistry(ctx context.Context, rpcURL, contract string, timeout time.Duration) (ports.CustodyResolver, *ethclient.Client, error) {
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}

	registry, err := NewIDRegistry(client, contract, timeout)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return registry, client, nil
}

// NewIDRegistry creates a registry reader over caller
func NewIDRegistry(caller ContractCaller, contract string, timeout time.Duration) (*IDRegistry, error) {
	if contract == "" {
		contract = DefaultIDRegistry
	}
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid IdRegistry address %q", contract)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	parsed, err := abi.JSON(strings.NewReader(idRegistryABI))
	if err != nil {
		return nil, err
	}

	return &IDRegistry{
		caller:   caller,
		contract: common.HexToAddress(contract),
		abi:      parsed,
		timeout:  timeout,
	}, nil
}

// CustodyOf calls custodyOf(fid) at the latest block
func (r *IDRegistry) CustodyOf(ctx context.Context, fid uint64) (string, error) {
	data, err := r.abi.Pack("custodyOf", new(big.Int).SetUint64(fid))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: custodyOf(%d): %v", core.ErrResolverFailure, fid, err)
	}

	values, err := r.abi.Unpack("custodyOf", out)
	if err != nil || len(values) != 1 {
		return "", fmt.Errorf("%w: custodyOf(%d): unexpected result", core.ErrResolverFailure, fid)
	}
	custody, ok := values[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("%w: custodyOf(%d): unexpected result", core.ErrResolverFailure, fid)
	}
	if custody == (common.Address{}) {
		return "", fmt.Errorf("fid %d: %w", fid, core.ErrUnknownIdentity)
	}

	return custody.Hex(), nil
}

// StaticCustody serves custody addresses from a fixed table
type StaticCustody map[uint64]string

// CustodyOf looks fid up in the table
func (s StaticCustody) CustodyOf(ctx context.Context, fid uint64) (string, error) {
	address, ok := s[fid]
	if !ok || !common.IsHexAddress(address) {
		return "", fmt.Errorf("fid %d: %w", fid, core.ErrUnknownIdentity)
	}
	return common.HexToAddress(address).Hex(), nil
}
