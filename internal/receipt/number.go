package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewNumber returns a fresh receipt number of the form RCPT-<yyyymmdd>-<8 hex>.
func NewNumber(at time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("RCPT-%s-%s", at.UTC().Format("20060102"), strings.ToUpper(id[:8]))
}

// NumberGenerator binds NewNumber to a timestamp for models.PaymentState.
func NumberGenerator(at time.Time) func() string {
	return func() string { return NewNumber(at) }
}
