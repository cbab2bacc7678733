package core

import (
	"regexp"
	"strconv"
)

// extractRule pulls one field out of a sign-in message
type extractRule func(message string) (string, bool)

var (
	fidPattern = regexp.MustCompile(`farcaster://fid/(\d+)`)

	// Labelled form used by some hosts: "account: 0x..."
	labelledAddressPattern = regexp.MustCompile(`account:\s*(0x[0-9a-fA-F]{40})(?:[^0-9a-fA-F]|$)`)

	// EIP-4361 form: the address alone on its own line
	bareAddressPattern = regexp.MustCompile(`(?m)^(0x[0-9a-fA-F]{40})[ \t\r]*$`)
)

// Rules are tried in order; the first match wins.
var (
	fidRules     = []extractRule{matchFID}
	addressRules = []extractRule{matchLabelledAddress, matchBareAddressLine}
)

func matchFID(message string) (string, bool) {
	return firstGroup(fidPattern, message)
}

func matchLabelledAddress(message string) (string, bool) {
	return firstGroup(labelledAddressPattern, message)
}

func matchBareAddressLine(message string) (string, bool) {
	return firstGroup(bareAddressPattern, message)
}

func firstGroup(re *regexp.Regexp, message string) (string, bool) {
	m := re.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func applyRules(rules []extractRule, message string) (string, bool) {
	for _, rule := range rules {
		if v, ok := rule(message); ok {
			return v, true
		}
	}
	return "", false
}

// ParseSignInMessage extracts the fid and address from a SIWF message.
// A digit run too large for uint64 is treated as no fid.
func ParseSignInMessage(message string) ParsedIdentity {
	var id ParsedIdentity

	if digits, ok := applyRules(fidRules, message); ok {
		if fid, err := strconv.ParseUint(digits, 10, 64); err == nil {
			id.FID = &fid
		}
	}

	if address, ok := applyRules(addressRules, message); ok {
		id.Address = address
	}

	return id
}
