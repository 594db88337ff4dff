package qr

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	tokenPrefix = "TKT-"
	DefaultSize = 256
)

var ErrEmptyPayload = errors.New("qr payload is empty")

// Generator renders booking QR codes as PNG images. The payload is the
// booking's opaque code; nothing else is embedded.
type Generator struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewGenerator(size int) *Generator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Generator{size: size, level: qrcode.Medium}
}

// Render encodes code into a square PNG of the generator's size.
func (g *Generator) Render(code string) ([]byte, error) {
	if code == "" {
		return nil, ErrEmptyPayload
	}
	return qrcode.Encode(code, g.level, g.size)
}

// NewToken returns a fresh opaque ticket code, e.g. TKT-9F2C...
func NewToken() string {
	return tokenPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
