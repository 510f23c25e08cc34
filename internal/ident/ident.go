// ABOUTME: Prefixed identifier generation for database entities
// ABOUTME: Produces IDs like "proj-1755772800000x7k2qa" from a prefix, timestamp, and random suffix

package ident

import (
	"crypto/rand"
	"fmt"
	"time"
)

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// suffixLen is the number of random characters appended after the timestamp.
const suffixLen = 6

// New returns an identifier of the form "<prefix>-<unix-millis><suffix>".
// IDs generated in the same process sort roughly by creation time.
func New(prefix string) string {
	b := make([]byte, suffixLen)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = suffixAlphabet[int(b[i])%len(suffixAlphabet)]
	}
	return fmt.Sprintf("%s-%d%s", prefix, time.Now().UnixMilli(), b)
}
