package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0xABCDEF0123456789ABCDEF0123456789ABCDEF01"

const siwfMessage = `example.com wants you to sign in with your Ethereum account:
0xABCDEF0123456789ABCDEF0123456789ABCDEF01

Farcaster Auth

URI: https://example.com/login
Version: 1
Chain ID: 10
Nonce: abcdEFGH12345678
Issued At: 2024-01-01T00:00:00Z
Resources:
- farcaster://fid/12345`

func TestParseSignInMessage_FID(t *testing.T) {
	id := ParseSignInMessage("prefix farcaster://fid/12345 suffix")
	require.NotNil(t, id.FID)
	assert.Equal(t, uint64(12345), *id.FID)
}

func TestParseSignInMessage_LabelledAddress(t *testing.T) {
	id := ParseSignInMessage("hello account: " + testAddress + " and more")
	assert.Equal(t, testAddress, id.Address)
	assert.Nil(t, id.FID)
}

func TestParseSignInMessage_BareAddressLine(t *testing.T) {
	id := ParseSignInMessage(siwfMessage)
	require.NotNil(t, id.FID)
	assert.Equal(t, uint64(12345), *id.FID)
	assert.Equal(t, testAddress, id.Address)
}

func TestParseSignInMessage_LabelledWinsOverBare(t *testing.T) {
	other := "0x1111111111111111111111111111111111111111"
	msg := other + "\naccount: " + testAddress
	id := ParseSignInMessage(msg)
	assert.Equal(t, testAddress, id.Address)
}

func TestParseSignInMessage_NoMarkers(t *testing.T) {
	id := ParseSignInMessage("no identity markers here")
	assert.Nil(t, id.FID)
	assert.Empty(t, id.Address)
}

func TestParseSignInMessage_AddressEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"labelled too long", "account: " + testAddress + "AB", ""},
		{"labelled too short", "account: 0xABCDEF", ""},
		{"bare with trailing text", testAddress + " is mine", ""},
		{"bare with leading text", "addr " + testAddress, ""},
		{"bare with trailing spaces", "line\n" + testAddress + "  \nnext", testAddress},
		{"bare with crlf", "line\r\n" + testAddress + "\r\nnext", testAddress},
		{"labelled without space", "account:" + testAddress, testAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSignInMessage(tt.message).Address)
		})
	}
}

func TestParseSignInMessage_FIDOverflow(t *testing.T) {
	id := ParseSignInMessage("farcaster://fid/99999999999999999999999")
	assert.Nil(t, id.FID)
}

func TestParseSignInMessage_FirstFIDWins(t *testing.T) {
	id := ParseSignInMessage("farcaster://fid/1\nfarcaster://fid/2")
	require.NotNil(t, id.FID)
	assert.Equal(t, uint64(1), *id.FID)
}
