package vaa

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is a universal address. Chain-native addresses shorter than 32 bytes are zero-padded on the left.
type Address [32]byte

func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Address) UnmarshalJSON(data []byte) error {
	addr, err := StringToAddress(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

// IsZero reports whether every byte of the address is zero.
func (a Address) IsZero() bool {
	return a == Address{}
}

// HasZeroPrefix reports whether the first n bytes are zero, i.e. whether the address fits in 32-n bytes.
func (a Address) HasZeroPrefix(n int) bool {
	for _, b := range a[:n] {
		if b != 0 {
			return false
		}
	}
	return true
}

// StringToAddress decodes a hex address, with or without 0x, and left-pads it to 32 bytes.
func StringToAddress(value string) (Address, error) {
	body := strings.TrimPrefix(value, "0x")
	if len(body) < 2 {
		return Address{}, fmt.Errorf("address %q is shorter than one byte", value)
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return Address{}, err
	}
	return BytesToAddress(raw)
}

// BytesToAddress left-pads b to 32 bytes.
func BytesToAddress(b []byte) (Address, error) {
	var a Address
	if len(b) > len(a) {
		return a, fmt.Errorf("address of %d bytes does not fit in %d", len(b), len(a))
	}
	copy(a[len(a)-len(b):], b)
	return a, nil
}
