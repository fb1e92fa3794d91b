package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Masked replaces masked context values.
const Masked = "***"

type piiMiddleware struct {
	next     ports.ExperienceCache
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks experience context values whose keys match any of
// the patterns before they are cached. Masking is lossy: cached copies never
// carry the original values.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.ExperienceCache) ports.ExperienceCache {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Put(ctx context.Context, key string, exp *domain.Experience) error {
	// the caller keeps showing exp, so mask a copy
	cloned := *exp
	cloned.Context = deepCopyMap(exp.Context)
	maskMap(cloned.Context, m.patterns)

	return m.next.Put(ctx, key, &cloned)
}

func (m *piiMiddleware) Get(ctx context.Context, key string) (*domain.Experience, error) {
	return m.next.Get(ctx, key)
}

func (m *piiMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Masked
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}
