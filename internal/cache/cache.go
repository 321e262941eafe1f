// Package cache memoizes model replies so re-running an analysis on the same
// dataset does not pay for the same completion twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/KaramelBytes/autolysis-cli/internal/ai"
	"github.com/KaramelBytes/autolysis-cli/internal/logx"
	"github.com/KaramelBytes/autolysis-cli/internal/store"
)

// DefaultTTL bounds how long a persisted reply is reused.
const DefaultTTL = 7 * 24 * time.Hour

// Runtime wraps another runtime with an in-memory cache and, when a store is
// given, a persistent one. Only successful non-empty replies are cached.
type Runtime struct {
	next   ai.Runtime
	mem    *gocache.Cache
	db     *store.DB
	ttl    time.Duration
	log    logx.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

var _ ai.Runtime = (*Runtime)(nil)

// New wraps next. db may be nil for a process-local cache.
func New(next ai.Runtime, db *store.DB, log logx.Logger) *Runtime {
	if log == nil {
		log = logx.Nop
	}
	return &Runtime{
		next: next,
		mem:  gocache.New(30*time.Minute, 10*time.Minute),
		db:   db,
		ttl:  DefaultTTL,
		log:  log,
	}
}

// Key hashes everything that shapes a completion.
func Key(req ai.GenerateRequest) string {
	b, _ := json.Marshal(req)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (r *Runtime) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	k := Key(req)
	if v, ok := r.mem.Get(k); ok {
		r.hits.Add(1)
		r.log.Debug("reply cache hit (memory) %s", k[:12])
		return clone(v.(*ai.GenerateResponse)), nil
	}
	if r.db != nil {
		data, ok, err := r.db.GetReply(k)
		if err != nil {
			r.log.Warn("reply cache read failed: %v", err)
		}
		if ok {
			var resp ai.GenerateResponse
			if err := json.Unmarshal(data, &resp); err == nil && len(resp.Choices) > 0 {
				r.hits.Add(1)
				r.log.Debug("reply cache hit (store) %s", k[:12])
				r.mem.SetDefault(k, &resp)
				return clone(&resp), nil
			}
		}
	}
	r.misses.Add(1)

	resp, err := r.next.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return resp, nil
	}
	r.mem.SetDefault(k, clone(resp))
	if r.db != nil {
		data, err := json.Marshal(resp)
		if err == nil {
			err = r.db.PutReply(k, data, r.ttl)
		}
		if err != nil {
			r.log.Warn("reply cache write failed: %v", err)
		}
	}
	return resp, nil
}

// Stats reports cache hits and misses so far.
func (r *Runtime) Stats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}

func clone(resp *ai.GenerateResponse) *ai.GenerateResponse {
	out := *resp
	out.Choices = append([]ai.Choice(nil), resp.Choices...)
	return &out
}
