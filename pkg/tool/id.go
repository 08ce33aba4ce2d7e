package tool

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateReceipt returns the merchant receipt attached to gateway orders.
func GenerateReceipt(now time.Time) string {
	return fmt.Sprintf("sub_%d", now.UnixMilli())
}
