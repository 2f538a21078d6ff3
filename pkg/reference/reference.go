// Package reference generates human-readable identifiers for bookings and payments.
package reference

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	BookingPrefix = "TRK"
	PaymentPrefix = "PAY"

	alphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	randomLength = 4
)

// Generator builds PREFIX-<base36 unix millis>-<4 random base36 chars>, upper case.
type Generator struct {
	nowFn func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{nowFn: time.Now}
}

func NewGeneratorWithClock(nowFn func() time.Time) *Generator {
	return &Generator{nowFn: nowFn}
}

func (g *Generator) Booking() string {
	return g.generate(BookingPrefix)
}

func (g *Generator) Payment() string {
	return g.generate(PaymentPrefix)
}

func (g *Generator) generate(prefix string) string {
	ts := strings.ToUpper(strconv.FormatInt(g.nowFn().UnixMilli(), 36))

	var sb strings.Builder
	sb.Grow(len(prefix) + len(ts) + randomLength + 2)
	sb.WriteString(prefix)
	sb.WriteByte('-')
	sb.WriteString(ts)
	sb.WriteByte('-')
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < randomLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	return sb.String()
}
