package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix defines the human-readable part of a bech32 identity.
type AddressPrefix string

const (
	// QuestPrefix is the default human-readable prefix for ledger identities.
	QuestPrefix AddressPrefix = "quest"

	addressLength = 20
)

// ErrInvalidAddress is returned when an identity string fails validation.
var ErrInvalidAddress = errors.New("invalid address")

// Address represents a 20-byte identity with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != addressLength {
		panic("address must be 20 bytes long")
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}
}

// RandomAddress returns a fresh address under prefix.
func RandomAddress(prefix AddressPrefix) (Address, error) {
	buf := make([]byte, addressLength)
	if _, err := rand.Read(buf); err != nil {
		return Address{}, err
	}
	return NewAddress(prefix, buf), nil
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != addressLength {
		return Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// Validator checks identity strings at the message boundary and returns their
// canonical form.
type Validator interface {
	Validate(addr string) (string, error)
}

// Bech32Validator accepts bech32 addresses carrying the configured prefix.
type Bech32Validator struct {
	Prefix AddressPrefix
}

// Validate implements Validator.
func (v Bech32Validator) Validate(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed != addr || trimmed == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	decoded, err := DecodeAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	prefix := v.Prefix
	if prefix == "" {
		prefix = QuestPrefix
	}
	if decoded.Prefix() != prefix {
		return "", fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAddress, decoded.Prefix())
	}
	// Canonical form is the lowercase encoding.
	return decoded.String(), nil
}

// PlainValidator accepts short lowercase identifiers such as "creator" or
// "alice_1". It is meant for local networks and tests.
type PlainValidator struct{}

const (
	plainMinLen = 3
	plainMaxLen = 90
)

// Validate implements Validator.
func (PlainValidator) Validate(addr string) (string, error) {
	if len(addr) < plainMinLen || len(addr) > plainMaxLen {
		return "", fmt.Errorf("%w: length must be between %d and %d", ErrInvalidAddress, plainMinLen, plainMaxLen)
	}
	for i, r := range addr {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case (r == '_' || r == '-' || r == '.') && i > 0:
		default:
			return "", fmt.Errorf("%w: address not normalized: %q", ErrInvalidAddress, addr)
		}
	}
	return addr, nil
}

// AnyValidator accepts an address if any of its validators does. The first
// validator's error is reported when all of them reject it.
type AnyValidator []Validator

// Validate implements Validator.
func (a AnyValidator) Validate(addr string) (string, error) {
	var first error
	for _, v := range a {
		canonical, err := v.Validate(addr)
		if err == nil {
			return canonical, nil
		}
		if first == nil {
			first = err
		}
	}
	if first == nil {
		first = fmt.Errorf("%w: no validator configured", ErrInvalidAddress)
	}
	return "", first
}
