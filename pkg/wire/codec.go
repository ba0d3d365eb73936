package wire

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Encode serializes an envelope with gob. Checksum is computed (and
// Checksum populated) here rather than by callers, so every encoded
// envelope carrying an image is self-checking on the wire.
func Encode(env Envelope) ([]byte, error) {
	if len(env.Image) > 0 {
		env.Checksum = Checksum(env.Image)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes an envelope previously produced by Encode.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("wire: decode: %w", err)
	}
	return env, nil
}

// Checksum returns the hex-encoded blake2b-256 digest of data. It is a
// corruption detector, not a protocol vote: a mismatch is logged by the
// caller, never turned into a negative vote (spec DOMAIN STACK).
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether data matches the hex-encoded digest want.
// An empty want is treated as "nothing to verify" (true).
func VerifyChecksum(data []byte, want string) bool {
	if want == "" {
		return true
	}
	return Checksum(data) == want
}
