package host

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	siwe "github.com/spruceid/siwe-go"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/ports"
)

const (
	// Statement is the human readable line of a SIWF message
	Statement = "Farcaster Auth"

	// OptimismChainID is the chain the Farcaster ID registry lives on
	OptimismChainID = 10
)

// LocalWallet is a host backed by a private key held in process. It signs
// with the fid's custody key and is meant for development and tests.
type LocalWallet struct {
	key    *ecdsa.PrivateKey
	fid    uint64
	domain string
	uri    string
}

// NewLocalWallet creates a host signing for fid with key
func NewLocalWallet(key *ecdsa.PrivateKey, fid uint64, domain, uri string) *LocalWallet {
	return &LocalWallet{key: key, fid: fid, domain: domain, uri: uri}
}

var _ ports.Host = (*LocalWallet)(nil)

// Address returns the wallet's checksummed address
func (w *LocalWallet) Address() string {
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

// IsInHost always reports true
func (w *LocalWallet) IsInHost(ctx context.Context) (bool, error) {
	return true, nil
}

// RequestSignedMessage builds and signs a SIWF message for nonce
func (w *LocalWallet) RequestSignedMessage(ctx context.Context, nonce string, opts core.SignInOptions) (core.SignedMessage, error) {
	if err := ctx.Err(); err != nil {
		return core.SignedMessage{}, err
	}

	resource, err := url.Parse("farcaster://fid/" + strconv.FormatUint(w.fid, 10))
	if err != nil {
		return core.SignedMessage{}, err
	}

	options := map[string]interface{}{
		"statement": Statement,
		"chainId":   OptimismChainID,
		"resources": []url.URL{*resource},
	}
	if opts.NotBefore != nil {
		options["notBefore"] = *opts.NotBefore
	}
	if opts.ExpirationTime != nil {
		options["expirationTime"] = *opts.ExpirationTime
	}

	msg, err := siwe.InitMessage(w.domain, w.Address(), w.uri, nonce, options)
	if err != nil {
		return core.SignedMessage{}, fmt.Errorf("failed to build message: %w", err)
	}

	text := msg.String()
	sig, err := crypto.Sign(accounts.TextHash([]byte(text)), w.key)
	if err != nil {
		return core.SignedMessage{}, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return core.SignedMessage{
		Message:    text,
		Signature:  hexutil.Encode(sig),
		AuthMethod: core.AuthMethodCustody,
	}, nil
}
