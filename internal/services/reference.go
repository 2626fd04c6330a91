package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	referencePrefix    = "RES-"
	referenceSuffixLen = 4
	referenceAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// ReferenceGenerator produces booking references
type ReferenceGenerator func() (string, error)

// NewReference returns RES-<base36 unix millis>-<4 random base36 chars>.
// Uniqueness is enforced by the reservations table, not here.
func NewReference() (string, error) {
	return referenceAt(time.Now())
}

func referenceAt(now time.Time) (string, error) {
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))

	max := big.NewInt(int64(len(referenceAlphabet)))
	suffix := make([]byte, referenceSuffixLen)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate reference: %w", err)
		}
		suffix[i] = referenceAlphabet[n.Int64()]
	}

	return referencePrefix + stamp + "-" + string(suffix), nil
}
