package contentkey

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
)

// Size is the fixed width of a content key in bytes.
const Size = 32

// Key is a fixed-width binary identifier derived from a content-store
// reference string. The zero value is the sentinel for "no content".
type Key [Size]byte

// Zero is the all-zero sentinel key.
var Zero Key

// FromString derives a content key from a content-store identifier.
// The empty string maps to the zero key. Identifiers longer than Size
// bytes are truncated; shorter ones are right-padded with zero bytes.
func FromString(identifier string) Key {
	var k Key
	if identifier == "" {
		return k
	}
	copy(k[:], identifier)
	return k
}

// FromCID derives a content key from a parsed CID, using its raw binary
// representation with the same truncate/pad policy as FromString.
func FromCID(c cid.Cid) Key {
	var k Key
	if !c.Defined() {
		return k
	}
	copy(k[:], c.Bytes())
	return k
}

// IsZero reports whether k is the sentinel key.
func (k Key) IsZero() bool {
	return k == Zero
}

// String returns the key as lowercase hex.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// ParseKey decodes a hex-encoded content key.
func ParseKey(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("invalid content key: %w", err)
	}
	if len(b) != Size {
		return k, fmt.Errorf("invalid content key length: %d", len(b))
	}
	copy(k[:], b)
	return k, nil
}

// MarshalJSON encodes the key as a hex string.
func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a hex string into the key.
func (k *Key) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
