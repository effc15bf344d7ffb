package models

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewEscrowRef builds a client-visible deal reference: ESC, unix millis and
// nine random uppercase alphanumerics.
func NewEscrowRef(now time.Time) string {
	return fmt.Sprintf("ESC%d%s", now.UnixMilli(), randomSuffix(9))
}

// NewLedgerRef builds a wallet reference such as WD_1700000000000_AB12CD34.
func NewLedgerRef(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), randomSuffix(8))
}

// NewFundingRef embeds the user id so the gateway webhook can find the wallet.
func NewFundingRef(userID string, now time.Time) string {
	return fmt.Sprintf("FUND_%d_%s", now.UnixMilli(), strings.ReplaceAll(userID, "-", ""))
}

// ParseFundingRef returns the user id embedded by NewFundingRef.
func ParseFundingRef(ref string) (string, bool) {
	parts := strings.Split(ref, "_")
	if len(parts) != 3 || parts[0] != "FUND" {
		return "", false
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	for i, b := range buf {
		buf[i] = refAlphabet[int(b)%len(refAlphabet)]
	}
	return string(buf)
}
