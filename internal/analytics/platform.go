package analytics

import (
	"strings"

	"golang.org/x/exp/slices"
)

// Platform is a social platform the analytics provider can report on.
type Platform string

const (
	Instagram Platform = "instagram"
	TikTok    Platform = "tiktok"
	YouTube   Platform = "youtube"
)

// SupportedPlatforms lists every platform the engine resolves analytics for.
var SupportedPlatforms = []Platform{Instagram, TikTok, YouTube}

// NormalizePlatform trims and lower-cases a raw platform name and checks it
// against SupportedPlatforms.
func NormalizePlatform(raw string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(SupportedPlatforms, p) {
		return "", ErrUnsupportedPlatform
	}
	return p, nil
}

func (p Platform) String() string {
	return string(p)
}

// PlatformNames returns SupportedPlatforms as plain strings, for validators.
func PlatformNames() []interface{} {
	names := make([]interface{}, 0, len(SupportedPlatforms))
	for _, p := range SupportedPlatforms {
		names = append(names, string(p))
	}
	return names
}
