package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/example/church-agenda/internal/application"
	"github.com/example/church-agenda/internal/logging"
)

// ErrUnauthenticated is returned for missing, malformed or unknown tokens.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// TokenDirectory resolves API tokens of the form "actor:secret" to the actor
// they were issued to. Each actor has one argon2id hash of its secret.
type TokenDirectory struct {
	hashes map[string]string
	logger *slog.Logger

	mu       sync.Mutex
	verified map[[sha256.Size]byte]string
}

// NewTokenDirectory validates every hash up front.
func NewTokenDirectory(hashes map[string]string, logger *slog.Logger) (*TokenDirectory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	directory := &TokenDirectory{
		hashes:   make(map[string]string, len(hashes)),
		logger:   logger,
		verified: make(map[[sha256.Size]byte]string),
	}
	for actor, hash := range hashes {
		actor = strings.TrimSpace(actor)
		if actor == "" {
			return nil, fmt.Errorf("auth: empty actor id")
		}
		if err := ValidateHash(hash); err != nil {
			return nil, fmt.Errorf("auth: token hash for %q: %w", actor, err)
		}
		directory.hashes[actor] = hash
	}
	return directory, nil
}

// Actors lists the configured actor ids in sorted order.
func (d *TokenDirectory) Actors() []string {
	actors := make([]string, 0, len(d.hashes))
	for actor := range d.hashes {
		actors = append(actors, actor)
	}
	sort.Strings(actors)
	return actors
}

// Authenticate returns the principal a token belongs to.
func (d *TokenDirectory) Authenticate(ctx context.Context, token string) (application.Principal, error) {
	if d == nil {
		return application.Principal{}, ErrUnauthenticated
	}
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = d.logger
	}
	logger = logger.With("service", "TokenDirectory", "operation", "Authenticate")

	actor, secret, ok := strings.Cut(strings.TrimSpace(token), ":")
	if !ok || actor == "" || secret == "" {
		logger.WarnContext(ctx, "malformed api token")
		return application.Principal{}, ErrUnauthenticated
	}

	digest := sha256.Sum256([]byte(token))
	d.mu.Lock()
	cached, hit := d.verified[digest]
	d.mu.Unlock()
	if hit && cached == actor {
		return application.Principal{UserID: actor}, nil
	}

	hash, known := d.hashes[actor]
	if !known {
		logger.WarnContext(ctx, "unknown actor", "actor", actor)
		return application.Principal{}, ErrUnauthenticated
	}
	if err := VerifyHash(hash, secret); err != nil {
		logger.WarnContext(ctx, "api token rejected", "actor", actor, "error", err)
		return application.Principal{}, ErrUnauthenticated
	}

	d.mu.Lock()
	d.verified[digest] = actor
	d.mu.Unlock()
	logger.With("principal_id", actor).DebugContext(ctx, "api token accepted")
	return application.Principal{UserID: actor}, nil
}
