package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/layer-3/siwf"
	"github.com/layer-3/siwf/adapters/host"
	"github.com/layer-3/siwf/core"
)

var signinFlags struct {
	fid       uint64
	key       string
	domain    string
	uri       string
	server    string
	expiresIn time.Duration
}

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with a local wallet and optionally exchange the message for a token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signin(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	f := signinCmd.Flags()
	f.Uint64Var(&signinFlags.fid, "fid", 0, "Farcaster ID to sign in as")
	f.StringVar(&signinFlags.key, "key", "", "hex encoded secp256k1 private key (random when empty)")
	f.StringVar(&signinFlags.domain, "domain", "localhost", "domain the message is bound to")
	f.StringVar(&signinFlags.uri, "uri", "", "URI in the message (defaults to https://<domain>)")
	f.StringVar(&signinFlags.server, "server", "", "base URL of a server to exchange the message with")
	f.DurationVar(&signinFlags.expiresIn, "expires-in", 10*time.Minute, "message validity")
	_ = signinCmd.MarkFlagRequired("fid")
	rootCmd.AddCommand(signinCmd)
}

type signinOutput struct {
	User      *core.AuthUser  `json:"user"`
	Token     string          `json:"token,omitempty"`
	Principal *core.Principal `json:"principal,omitempty"`
}

func signin(ctx context.Context, w io.Writer) error {
	key, err := walletKey(signinFlags.key)
	if err != nil {
		return err
	}

	uri := signinFlags.uri
	if uri == "" {
		uri = "https://" + signinFlags.domain
	}

	expires := time.Now().Add(signinFlags.expiresIn).UTC()
	wallet := host.NewLocalWallet(key, signinFlags.fid, signinFlags.domain, uri)
	controller := siwf.NewController(wallet, siwf.WithSignInOptions(core.SignInOptions{ExpirationTime: &expires}))
	defer controller.Close()

	user, err := controller.SignIn(ctx)
	if err != nil {
		return err
	}
	out := signinOutput{User: user}

	if signinFlags.server != "" {
		base := strings.TrimRight(signinFlags.server, "/")
		client := &http.Client{Timeout: 10 * time.Second}

		out.Token, err = exchange(ctx, client, base, user)
		if err != nil {
			return err
		}
		out.Principal, err = me(ctx, client, base, out.Token)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func walletKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return crypto.GenerateKey()
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func exchange(ctx context.Context, client *http.Client, base string, user *core.AuthUser) (string, error) {
	body, err := json.Marshal(map[string]string{
		"message":   user.Message,
		"signature": user.Signature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		Token string `json:"token"`
	}
	if err := doJSON(client, req, &resp); err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	return resp.Token, nil
}

func me(ctx context.Context, client *http.Client, base, token string) (*core.Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var principal core.Principal
	if err := doJSON(client, req, &principal); err != nil {
		return nil, fmt.Errorf("authenticated request failed: %w", err)
	}
	return &principal, nil
}

func doJSON(client *http.Client, req *http.Request, v interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body.Error)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
