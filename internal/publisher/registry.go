package publisher

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownPlatform = errors.New("unknown platform")

const (
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformTwitter   = "twitter"
	PlatformLinkedIn  = "linkedin"
	PlatformTiktok    = "tiktok"
	PlatformYoutube   = "youtube"
)

// Registry maps platform identifiers to publishers. It is built once at
// startup and never mutated afterwards.
type Registry struct {
	publishers map[string]Publisher
}

func NewRegistry(publishers map[string]Publisher) *Registry {
	m := make(map[string]Publisher, len(publishers))
	for platform, p := range publishers {
		m[strings.ToLower(platform)] = p
	}
	return &Registry{publishers: m}
}

func (r *Registry) Get(platform string) (Publisher, error) {
	p, ok := r.publishers[strings.ToLower(platform)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return p, nil
}

func (r *Registry) Platforms() []string {
	platforms := make([]string, 0, len(r.publishers))
	for platform := range r.publishers {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)
	return platforms
}
