// Package wire carries the hex/base64 auto-detecting JSON codec the
// teacher uses for on-chain byte blobs (types/hex2bytes.go), adapted
// here to also round-trip field elements and the persisted ballot
// wire format.
package wire

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/kysee/maci-voter-core/field"
)

func HexToBytes(hexStr string) ([]byte, error) {
	if strings.HasPrefix(hexStr, "0x") {
		hexStr = hexStr[2:]
	}
	return hex.DecodeString(hexStr)
}

type HexBytes []byte

func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}

func (hb HexBytes) MarshalJSON() ([]byte, error) {
	s := "0x" + hex.EncodeToString(hb)
	jbz := make([]byte, len(s)+2)
	jbz[0] = '"'
	copy(jbz[1:], s)
	jbz[len(jbz)-1] = '"'
	return jbz, nil
}

// This is the point of Bytes.
func (hb *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid hex string: %s", data)
	}

	// escape double quote
	val := data[1 : len(data)-1]
	if isHex(string(val)) {
		// hex string
		str := strings.TrimPrefix(string(val), "0x")
		bz, err := hex.DecodeString(str)
		if err != nil {
			return err
		}
		*hb = bz
	} else {
		// base64
		bz, err := base64.StdEncoding.DecodeString(string(val))
		if err != nil {
			return err
		}
		*hb = bz
	}
	return nil
}

func isHex(s string) bool {
	v := s
	if len(v)%2 != 0 {
		return false
	}
	if strings.HasPrefix(v, "0x") {
		v = v[2:]
	}
	for _, b := range []byte(v) {
		if !(b >= '0' && b <= '9' || b >= 'a' && b <= 'f' || b >= 'A' && b <= 'F') {
			return false
		}
	}
	return true
}

// FieldElementJSON marshals a field.Element as a HexBytes-compatible
// 0x-prefixed big-endian hex string, the form a Solidity uint256 ABI
// argument is rendered as everywhere else in the persisted ballot
// format and CLI output.
type FieldElementJSON struct {
	field.Element
}

// MarshalJSON renders the element as 0x-prefixed big-endian hex.
func (f FieldElementJSON) MarshalJSON() ([]byte, error) {
	return HexBytes(f.Element.BigInt().Bytes()).MarshalJSON()
}

// UnmarshalJSON accepts the same hex/base64 auto-detecting forms
// HexBytes does and reduces the result modulo p.
func (f *FieldElementJSON) UnmarshalJSON(data []byte) error {
	var hb HexBytes
	if err := hb.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("wire: decoding field element: %w", err)
	}
	be := make([]byte, len(hb))
	copy(be, hb)
	le := make([]byte, len(be))
	for i, c := range be {
		le[len(be)-1-i] = c
	}
	f.Element = field.FromBytesLE(le)
	return nil
}
