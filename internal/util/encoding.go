package util

import "golang.org/x/text/unicode/norm"

// NormalizeBytes returns the NFKD form of b so that visually identical
// passphrases typed on different keyboards derive the same keys.
func NormalizeBytes(b []byte) []byte {
	return norm.NFKD.Bytes(b)
}
