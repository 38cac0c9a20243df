package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
)

// CodeInserter is the part of the store the generator needs.
type CodeInserter interface {
	Insert(ctx context.Context, code string, createdAt time.Time) (bool, error)
	Count(ctx context.Context) (int, error)
}

type Generator struct {
	repo CodeInserter
	// run serialises Generate so the count-then-insert ceiling check holds
	// within one process.
	run sync.Mutex
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

type GenerateResult struct {
	Requested       int      `json:"requested"`
	Created         int      `json:"count"`
	Codes           []string `json:"codes"`
	TotalInDatabase int      `json:"totalInDatabase"`
}

// NewGenerator draws codes from src. A nil src seeds from the runtime.
func NewGenerator(repo CodeInserter, src rand.Source) *Generator {
	var rng *rand.Rand
	if src == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	} else {
		rng = rand.New(src)
	}
	return &Generator{repo: repo, rng: rng, now: time.Now}
}

// NewCode returns three uniform letters followed by three uniform digits.
func NewCode(rng *rand.Rand) string {
	b := make([]byte, 0, models.CodeLength)
	for i := 0; i < 3; i++ {
		b = append(b, models.CodeLetters[rng.IntN(len(models.CodeLetters))])
	}
	for i := 0; i < 3; i++ {
		b = append(b, models.CodeDigits[rng.IntN(len(models.CodeDigits))])
	}
	return string(b)
}

func (g *Generator) nextCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return NewCode(g.rng)
}

// Generate creates up to n new coupons without crossing the global ceiling.
// Collisions are skipped, and at most 2*target inserts are attempted, so
// Created may be lower than requested.
func (g *Generator) Generate(ctx context.Context, n int) (GenerateResult, error) {
	if n < 1 || n > models.MaxCoupons {
		return GenerateResult{}, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidInput, models.MaxCoupons)
	}
	g.run.Lock()
	defer g.run.Unlock()

	existing, err := g.repo.Count(ctx)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("count coupons: %w", err)
	}
	remaining := models.MaxCoupons - existing
	if remaining <= 0 {
		return GenerateResult{Requested: n, Codes: []string{}, TotalInDatabase: existing}, ErrCeilingReached
	}
	target := min(n, remaining)

	res := GenerateResult{Requested: n, Codes: make([]string, 0, target)}
	seen := make(map[string]struct{}, target)
	maxAttempts := 2 * target
	for attempt := 0; attempt < maxAttempts && len(res.Codes) < target; attempt++ {
		if err := ctx.Err(); err != nil {
			return g.finish(res, existing), err
		}
		code := g.nextCode()
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		inserted, err := g.repo.Insert(ctx, code, g.now())
		if err != nil {
			return g.finish(res, existing), err
		}
		if inserted {
			res.Codes = append(res.Codes, code)
		}
	}

	res = g.finish(res, existing)
	if res.Created < n {
		log.WithFields(log.Fields{
			"requested": n,
			"created":   res.Created,
			"total":     res.TotalInDatabase,
		}).Warn("coupon generation fell short of the requested count")
	}
	return res, nil
}

func (g *Generator) finish(res GenerateResult, existing int) GenerateResult {
	res.Created = len(res.Codes)
	res.TotalInDatabase = existing + res.Created
	return res
}
