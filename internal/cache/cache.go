// Package cache stores evaluation results keyed by catalog checksum and context.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
)

// ErrMiss is returned by Get when nothing is cached under the key.
var ErrMiss = errors.New("cache miss")

// DecisionCache stores evaluations. Implementations must treat every failure
// as non-fatal for the caller: a broken cache only costs a re-evaluation.
type DecisionCache interface {
	Get(ctx context.Context, key string) (engine.Evaluation, error)
	Set(ctx context.Context, key string, eval engine.Evaluation) error
}

// Key derives the cache key for a normalized context under one catalog.
// Normalized contexts have sorted sets, so equal inputs produce equal keys.
func Key(catalogChecksum string, c engine.Context) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(catalogChecksum))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (engine.Evaluation, error) {
	return engine.Evaluation{}, ErrMiss
}

func (Nop) Set(context.Context, string, engine.Evaluation) error { return nil }
