package dashcache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ErrKeySerialization reports arguments that cannot be rendered into a
// deterministic cache key. Callers get the error instead of a degraded
// shared key; caching cannot proceed safely for such inputs.
var ErrKeySerialization = errors.New("dashcache: key arguments not serializable")

const defaultKeyPrefix = "cache"

// KeyBuilder derives deterministic cache keys from a computation's identity
// and its arguments. Keys take the form prefix:identity:digest, where digest
// is the 64-bit hash of the canonical JSON encoding of the arguments.
// Positional arguments are order-sensitive; named arguments are not, since
// the encoder sorts map keys.
type KeyBuilder struct {
	// Prefix heads every key; empty means "cache".
	Prefix string
}

// Build renders the key for identity invoked with args and kwargs.
// Equal inputs always produce equal keys; args and kwargs must be
// JSON-serializable or the call fails with ErrKeySerialization.
// @group Keys
//
// Example: deterministic keys
//
//	b := dashcache.KeyBuilder{Prefix: "cache"}
//	k1, _ := b.Build("dashboard_metrics", []any{"7d", 42}, nil)
//	k2, _ := b.Build("dashboard_metrics", []any{"7d", 42}, nil)
//	fmt.Println(k1 == k2) // true
func (b KeyBuilder) Build(identity string, args []any, kwargs map[string]any) (string, error) {
	prefix := b.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	h := xxhash.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(args); err != nil {
		return "", fmt.Errorf("%w: %s args: %v", ErrKeySerialization, identity, err)
	}
	if err := enc.Encode(kwargs); err != nil {
		return "", fmt.Errorf("%w: %s kwargs: %v", ErrKeySerialization, identity, err)
	}
	return fmt.Sprintf("%s:%s:%016x", prefix, identity, h.Sum64()), nil
}

// Scope returns the key prefix shared by every invocation of identity,
// terminated so it cannot match a longer identity by accident. It is the
// argument to hand to InvalidatePattern when clearing one computation.
func (b KeyBuilder) Scope(identity string) string {
	prefix := b.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return prefix + ":" + identity + ":"
}
