package logging

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader is read from and echoed to HTTP clients.
const RequestIDHeader = "X-Request-ID"

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-.:]{1,128}$`)

// RequestIDGenerator generates unique request IDs with the form {prefix}_{unix_micro}_{hex}
type RequestIDGenerator struct {
	prefix string
}

func NewRequestIDGenerator(prefix string) *RequestIDGenerator {
	if prefix == "" {
		prefix = "req"
	}
	return &RequestIDGenerator{prefix: prefix}
}

func (g *RequestIDGenerator) Generate() string {
	timestamp := time.Now().UnixMicro()

	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s_%d", g.prefix, timestamp)
	}

	// first uuid group is enough to disambiguate ids sharing a microsecond
	short, _, _ := strings.Cut(id.String(), "-")
	return fmt.Sprintf("%s_%d_%s", g.prefix, timestamp, short)
}

var defaultGenerator = NewRequestIDGenerator("spk")

// GenerateRequestID generates a request ID using the default generator
func GenerateRequestID() string {
	return defaultGenerator.Generate()
}

// RequestIDFromHeader keeps a client supplied id when it is safe to log,
// otherwise it generates a new one.
func RequestIDFromHeader(value string) string {
	if requestIDPattern.MatchString(value) {
		return value
	}
	return GenerateRequestID()
}
