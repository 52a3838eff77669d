// Package ids generates opaque identifiers and human-shareable session codes.
package ids

import (
	"crypto/rand"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	// CodeAlphabet omits 0/O and 1/I so codes survive being read aloud.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// CodeLength is the length of a freshly generated session code.
	CodeLength = 6
	// attemptsPerLength is how many collisions are tolerated before the code grows.
	attemptsPerLength = 10
)

// New returns a random opaque id for sessions, participants and stories.
func New() string {
	return uuid.NewString()
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewConnectionID returns a time-ordered id for a transport connection.
func NewConnectionID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NormalizeCode canonicalizes a user-typed session code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CodeGenerator produces session codes. The zero value is ready to use.
type CodeGenerator struct {
	// Length overrides CodeLength when positive.
	Length int
	// random returns an index in [0, n). Tests replace it to force collisions.
	random func(n int) int
}

// Generate returns a code for which taken reports false. After
// attemptsPerLength collisions at one length the code grows by one symbol.
func (g *CodeGenerator) Generate(taken func(code string) bool) string {
	length := g.Length
	if length <= 0 {
		length = CodeLength
	}
	for {
		for attempt := 0; attempt < attemptsPerLength; attempt++ {
			code := g.draw(length)
			if taken == nil || !taken(code) {
				return code
			}
		}
		length++
	}
}

func (g *CodeGenerator) draw(length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(CodeAlphabet[g.index(len(CodeAlphabet))])
	}
	return b.String()
}

func (g *CodeGenerator) index(n int) int {
	if g.random != nil {
		return g.random(n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is unavailable.
		panic("ids: read random: " + err.Error())
	}
	return int(v.Int64())
}
