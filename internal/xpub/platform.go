package xpub

import (
	"fmt"
	"strings"
)

// Platform identifies a publishing destination.
type Platform string

const (
	Marketplace Platform = "marketplace"
	Lifestyle   Platform = "lifestyle"
	Article     Platform = "article"
	Video       Platform = "video"

	// Reserved destinations. They parse, but no publisher ships for them.
	ShortVideo Platform = "shortvideo"
	Microblog  Platform = "microblog"
)

var platformAliases = map[string]Platform{
	"marketplace": Marketplace,
	"xianyu":      Marketplace,
	"lifestyle":   Lifestyle,
	"xiaohongshu": Lifestyle,
	"xhs":         Lifestyle,
	"article":     Article,
	"zhihu":       Article,
	"video":       Video,
	"bilibili":    Video,
	"shortvideo":  ShortVideo,
	"douyin":      ShortVideo,
	"microblog":   Microblog,
	"weibo":       Microblog,
}

// Platforms lists every known platform in display order.
func Platforms() []Platform {
	return []Platform{Marketplace, Lifestyle, Article, Video, ShortVideo, Microblog}
}

// ParsePlatform resolves a free-form name or alias.
func ParsePlatform(name string) (Platform, error) {
	if p, ok := platformAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unsupported platform %q", name)
}

func (p Platform) String() string { return string(p) }

// Reserved reports whether p is a placeholder without an implementation.
func (p Platform) Reserved() bool {
	return p == ShortVideo || p == Microblog
}

// EmojiRule tells whether decorative markers must, may or must not appear.
type EmojiRule int

const (
	EmojiAny EmojiRule = iota
	EmojiRequired
	EmojiForbidden
)

func (r EmojiRule) String() string {
	switch r {
	case EmojiRequired:
		return "required"
	case EmojiForbidden:
		return "forbidden"
	default:
		return "any"
	}
}

// Limits describes the content shape a platform accepts. Zero means no limit.
type Limits struct {
	MaxTitle       int
	MinTitle       int
	MaxBody        int
	MinBody        int
	MaxDescription int
	MaxMedia       int
	MinMedia       int
	MaxTags        int
	MaxStatus      int
	Emoji          EmojiRule
	Markdown       bool
}

var limits = map[Platform]Limits{
	Marketplace: {
		MaxTitle:       30,
		MaxBody:        500,
		MaxDescription: 500,
		MinMedia:       1,
		MaxMedia:       9,
		MaxTags:        10,
	},
	Lifestyle: {
		MaxTitle:       20,
		MaxBody:        1000,
		MaxDescription: 1000,
		MinMedia:       1,
		MaxMedia:       9,
		MaxTags:        10,
		Emoji:          EmojiRequired,
	},
	Article: {
		MaxTitle:       50,
		MinTitle:       5,
		MaxBody:        100000,
		MinBody:        50,
		MaxDescription: 100000,
		MaxMedia:       100,
		MaxTags:        5,
		Emoji:          EmojiForbidden,
		Markdown:       true,
	},
	Video: {
		MaxTitle:       80,
		MaxBody:        2000,
		MaxDescription: 2000,
		MinMedia:       1,
		MaxMedia:       3,
		MaxTags:        10,
		MaxStatus:      233,
	},
}

// LimitsFor returns the static limits of p.
func LimitsFor(p Platform) (Limits, bool) {
	l, ok := limits[p]
	return l, ok
}

// PlatformLimits pairs a platform with its limits.
type PlatformLimits struct {
	Platform Platform
	Limits   Limits
}

// AllLimits returns the limits table in display order.
func AllLimits() []PlatformLimits {
	out := make([]PlatformLimits, 0, len(limits))
	for _, p := range Platforms() {
		if l, ok := limits[p]; ok {
			out = append(out, PlatformLimits{Platform: p, Limits: l})
		}
	}
	return out
}
