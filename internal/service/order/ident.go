package order

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

// codeAlphabet omits the characters people misread over the phone
// (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// newOrderID builds the shareable order identifier: a millisecond timestamp
// in base36 plus a random suffix long enough that collisions are practically
// impossible.
func newOrderID() string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	return "ORD-" + ts + "-" + randomString(10)
}

// newVerificationCode returns the 4-character hand-off code.
func newVerificationCode() string {
	return randomString(4)
}

func randomString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out)
}
