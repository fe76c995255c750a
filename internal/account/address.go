// Package account validates account identifiers and derives contract addresses.
//
// Accounts are base58-encoded 32-byte public keys. Contract-owned addresses
// are derived from seeds and are guaranteed to be off the ed25519 curve, so
// no private key can ever sign for them.
package account

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// KeyLength is the decoded size of an account identifier.
const KeyLength = 32

// derivationMarker is appended to every derivation preimage.
const derivationMarker = "PresaleDerivedAddress"

var (
	// ErrInvalidAddress is returned when an identifier is not a base58 32-byte key.
	ErrInvalidAddress = errors.New("invalid account address")

	// ErrNoValidBump is returned when no bump seed yields an off-curve address.
	ErrNoValidBump = errors.New("could not derive off-curve address")
)

// Validate checks that addr is a base58 encoded 32-byte key.
func Validate(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	}
	if len(decoded) != KeyLength {
		return fmt.Errorf("%w: %s: decoded length %d", ErrInvalidAddress, addr, len(decoded))
	}
	return nil
}

// FromBytes encodes a raw 32-byte key.
func FromBytes(key []byte) (string, error) {
	if len(key) != KeyLength {
		return "", fmt.Errorf("%w: key length %d", ErrInvalidAddress, len(key))
	}
	return base58.Encode(key), nil
}

// IsOnCurve reports whether addr decodes to a valid ed25519 point.
// Wallet keys are on the curve, derived contract addresses are not.
func IsOnCurve(addr string) bool {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return isOnCurve(decoded)
}

// DeriveSaleAddress derives the escrow address of a sale.
// Seeds: ["presale", token, label], anchored on the token contract key.
func DeriveSaleAddress(tokenAddress, label string) (string, error) {
	tokenBytes, err := base58.Decode(tokenAddress)
	if err != nil || len(tokenBytes) != KeyLength {
		return "", fmt.Errorf("%w: token %s", ErrInvalidAddress, tokenAddress)
	}

	seeds := [][]byte{
		[]byte("presale"),
		tokenBytes,
		[]byte(label),
	}
	return derive(seeds, tokenBytes)
}

// derive searches bump seeds from 255 down for an off-curve hash.
func derive(seeds [][]byte, anchor []byte) (string, error) {
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, anchor...)
		data = append(data, []byte(derivationMarker)...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), nil
		}
	}

	return "", ErrNoValidBump
}

func isOnCurve(point []byte) bool {
	if len(point) != KeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
