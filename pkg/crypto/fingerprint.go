// Package crypto provides the redacted-fingerprint helper used when logging
// values that must stay out of plaintext logs (nonces, pod addresses) but
// still need to be correlated across log lines during debugging.
package crypto

import "golang.org/x/crypto/blake2b"

// fingerprintSize is the number of leading bytes of the BLAKE2b-256 digest
// kept in a Fingerprint. 6 bytes (12 hex chars) is enough to distinguish
// pods/nonces in a debug session without reconstructing the input.
const fingerprintSize = 6

// Fingerprint returns a short, non-reversible hex digest of data, suitable
// for logging a value that must not appear in plaintext (a nonce, a pod
// address) while still letting log lines about the same value be
// correlated.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	const hextable = "0123456789abcdef"
	out := make([]byte, fingerprintSize*2)
	for i := 0; i < fingerprintSize; i++ {
		out[i*2] = hextable[sum[i]>>4]
		out[i*2+1] = hextable[sum[i]&0x0F]
	}
	return string(out)
}
