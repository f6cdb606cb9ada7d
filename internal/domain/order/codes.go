package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

var pickupCodeSpace = big.NewInt(1_000_000)

// newOrderNo formats SB + timestamp + 6 random hex chars.
func newOrderNo(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "SB" + now.Format("20060102150405") + suffix
}

// newPickupCode returns 6 random digits.
func newPickupCode() (string, error) {
	n, err := rand.Int(rand.Reader, pickupCodeSpace)
	if err != nil {
		return "", fmt.Errorf("generate pickup code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
