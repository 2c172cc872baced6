package workorder

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// numberPrefixes maps a work order type to its number prefix. Unknown types
// fall back to GEN so behind-schedule registry extensions never break
// numbering.
var numberPrefixes = map[string]string{
	TypeReceiving:        "RECV",
	TypeRacking:          "RACK",
	TypePowerManagement:  "PWR",
	TypeConfiguration:    "CONF",
	TypeNetworkCable:     "CABL",
	TypeFaultHandling:    "FLT",
	TypeGenericOperation: "GEN",
}

// NumberGenerator produces work order numbers of the form
// PREFIX-20060102150405-d4a10001. The random salt is fixed per generator so
// two processes minting numbers in the same second stay disjoint; the
// sequence counter disambiguates within one process. The unique index on
// work_orders.number is the final arbiter.
type NumberGenerator struct {
	seq  uint64
	salt string
	now  func() time.Time
}

// NewNumberGenerator creates a generator using wall-clock time
func NewNumberGenerator() *NumberGenerator {
	b := make([]byte, 2)
	_, _ = rand.Read(b)
	return &NumberGenerator{salt: hex.EncodeToString(b), now: time.Now}
}

// Next returns the next work order number for the given type
func (g *NumberGenerator) Next(typeTag string) string {
	prefix, ok := numberPrefixes[typeTag]
	if !ok {
		prefix = "GEN"
	}
	n := atomic.AddUint64(&g.seq, 1) % 10000
	return fmt.Sprintf("%s-%s-%s%04d", prefix, g.now().UTC().Format("20060102150405"), g.salt, n)
}
