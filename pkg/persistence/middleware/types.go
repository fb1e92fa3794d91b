// Package middleware wraps an experience cache to control what leaves the
// process when experiences are cached in shared storage.
package middleware

import "github.com/aretw0/waypoint/pkg/ports"

// Middleware allows wrapping an ExperienceCache to add behavior.
type Middleware func(ports.ExperienceCache) ports.ExperienceCache

// Chain applies mws so that the first one is the outermost.
func Chain(cache ports.ExperienceCache, mws ...Middleware) ports.ExperienceCache {
	for i := len(mws) - 1; i >= 0; i-- {
		cache = mws[i](cache)
	}
	return cache
}
