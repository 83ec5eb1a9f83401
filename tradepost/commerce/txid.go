package commerce

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mkarlovic/tradepost/tradepost/config"
)

// ExistsFunc reports whether a candidate id is already taken.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// IDGenerator produces opaque entity ids with a type prefix, e.g.
// "ORD-K7Q2M4X9A1BC". Uniqueness relies on the storage unique constraint;
// the existence pre-check plus retry keeps insert conflicts rare.
type IDGenerator struct {
	prefix string
	exists ExistsFunc
	mu     sync.Mutex
}

func NewIDGenerator(prefix string, exists ExistsFunc) *IDGenerator {
	return &IDGenerator{prefix: prefix, exists: exists}
}

func (g *IDGenerator) Generate(ctx context.Context) (string, error) {
	generateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	g.mu.Lock()
	defer g.mu.Unlock()

	for attempt := 0; attempt < config.MaxIDRetries; attempt++ {
		id, err := g.candidate()
		if err != nil {
			return "", fmt.Errorf("failed to generate candidate id: %w", err)
		}

		taken, err := g.exists(generateCtx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check id uniqueness: %w", err)
		}
		if !taken {
			return id, nil
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Millisecond
		select {
		case <-generateCtx.Done():
			return "", fmt.Errorf("timeout during id generation: %w", generateCtx.Err())
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("failed to generate unique id after %d attempts", config.MaxIDRetries)
}

func (g *IDGenerator) candidate() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	suffix := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(bytes)
	if len(suffix) > config.EntityIDLength {
		suffix = suffix[:config.EntityIDLength]
	}
	return g.prefix + "-" + strings.ToUpper(suffix), nil
}
