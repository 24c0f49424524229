// Package payload produces the two payload kinds pushed to connections:
// cheap reference URLs and expensive fetched bytes.
package payload

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Generator produces reference payloads: fresh URLs computed without any
// network round trip. Each call yields a distinct value so clients never see
// a cached response.
type Generator struct {
	baseURL string
}

func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: strings.TrimRight(baseURL, "/")}
}

// Next returns a freshly generated reference URL.
func (g *Generator) Next() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s/p/%s?t=%d", g.baseURL, hex.EncodeToString(b), time.Now().UnixMilli())
}
