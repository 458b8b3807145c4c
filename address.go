package gogoblin

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// SystemProgramID is the all-zero account key.
const SystemProgramID = "11111111111111111111111111111111"

const publicKeyLength = 32

var (
	// ErrInvalidAddressFormat marks strings that are not base58 or do not decode to 32 bytes.
	ErrInvalidAddressFormat = errors.New("invalid solana address format")
	// ErrAddressNotOnCurve marks 32-byte keys that are not valid ed25519 points.
	ErrAddressNotOnCurve = errors.New("invalid solana public key")
)

// InvalidReason explains why an address failed validation.
type InvalidReason string

const (
	ReasonInvalidFormat InvalidReason = "InvalidFormat"
	ReasonNotOnCurve    InvalidReason = "NotOnCurve"
)

// AddressValidation is the result of ValidateAddress.
type AddressValidation struct {
	Valid           bool          `json:"valid"`
	Address         string        `json:"address,omitempty"`
	Reason          InvalidReason `json:"reason,omitempty"`
	IsSystemAccount bool          `json:"isSystemAccount"`
	Length          int           `json:"length"`
}

// ValidateAddress checks that the string is base58, decodes to 32 bytes and
// is an ed25519 curve point. It has no side effects.
func ValidateAddress(address string) AddressValidation {
	result := AddressValidation{Length: len(address)}
	if address == "" {
		result.Reason = ReasonInvalidFormat
		return result
	}

	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != publicKeyLength {
		result.Reason = ReasonInvalidFormat
		return result
	}

	normalized := base58.Encode(decoded)
	if normalized == SystemProgramID {
		result.Valid = true
		result.Address = normalized
		result.IsSystemAccount = true
		return result
	}

	if _, err := new(edwards25519.Point).SetBytes(decoded); err != nil {
		result.Reason = ReasonNotOnCurve
		return result
	}

	result.Valid = true
	result.Address = normalized
	return result
}

// Err converts a failed validation into an error wrapping one of the
// address sentinels. It returns nil for valid addresses.
func (v AddressValidation) Err() error {
	switch {
	case v.Valid:
		return nil
	case v.Reason == ReasonNotOnCurve:
		return ErrAddressNotOnCurve
	default:
		return fmt.Errorf("%w (length %d)", ErrInvalidAddressFormat, v.Length)
	}
}
