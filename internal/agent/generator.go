// Package agent renders synthetic user-agent strings from device profiles.
package agent

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neomorfeo/uastudio/internal/domain"
)

// Generator synthesizes candidate agent strings. Apart from consuming
// randomness and reading the clock it has no side effects.
type Generator struct {
	rand Rand
	now  func() time.Time
}

// New creates a generator drawing from r. A nil now defaults to time.Now.
func New(r Rand, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rand: r, now: now}
}

// Generate renders one candidate for profile p. It never fails.
func (g *Generator) Generate(p domain.Profile, o domain.Options) string {
	o = o.Normalize()

	variant := o.Variant
	if variant == domain.VariantMixed {
		variant = choice(g, domain.ConcreteVariants)
	}
	locale := o.Locale
	if locale == domain.LocaleAuto {
		locale = choice(g, domain.Locales)
	}
	inApp := variant == domain.VariantInApp

	var b strings.Builder
	if p.Platform == domain.PlatformIOS {
		g.writeIOS(&b, p, o, locale, inApp)
	} else {
		g.writeAndroid(&b, p, o, locale, inApp)
	}

	if !inApp {
		switch {
		case o.TokenActive():
			b.WriteString(" [uid=")
			b.WriteString(g.token(o.TokenMode))
			b.WriteByte(']')
		case o.IncludeTime:
			b.WriteString(" [t=")
			b.WriteString(g.millis())
			b.WriteByte(']')
		}
	}
	return b.String()
}

func (g *Generator) writeIOS(b *strings.Builder, p domain.Profile, o domain.Options, locale string, inApp bool) {
	version := choice(g, p.OSVersions)
	major, _, _ := strings.Cut(version, "_")
	if major == "" {
		major = domain.FallbackWebKitMajor
	}
	builds, ok := p.WebKitBuilds[major]
	if !ok || len(builds) == 0 {
		builds = p.WebKitBuilds[domain.FallbackWebKitMajor]
	}
	webkit := choice(g, builds)
	mobile := strconv.Itoa(g.between(10, 40)) + string(rune('A'+g.between(0, 20))) + strconv.Itoa(g.between(100, 999))

	device := "iPhone"
	if strings.Contains(p.Model, "iPad") {
		device = "iPad"
	}

	b.WriteString("Mozilla/5.0 (")
	b.WriteString(device)
	b.WriteString("; CPU ")
	b.WriteString(device)
	b.WriteString(" OS ")
	b.WriteString(version)
	b.WriteString(" like Mac OS X) AppleWebKit/")
	b.WriteString(webkit)
	b.WriteString(" (KHTML, like Gecko) Version/")
	b.WriteString(major)
	b.WriteString(".0 Mobile/")
	b.WriteString(mobile)
	b.WriteString(" Safari/")
	b.WriteString(webkit)

	if !inApp {
		return
	}
	appVersion := o.AppVersion
	if appVersion == "" {
		appVersion = strconv.Itoa(g.between(350, 460)) + "." + strconv.Itoa(g.between(0, 9)) + "." + strconv.Itoa(g.between(0, 99))
	}
	b.WriteString(" [FBAN/FBIOS;FBAV/")
	b.WriteString(appVersion)
	b.WriteString(";FBBV/")
	b.WriteString(g.digits(8))
	b.WriteString(";FBDV/")
	b.WriteString(p.Model)
	b.WriteString(";FBMD/")
	b.WriteString(strings.Replace(p.Model, ",", "", 1))
	b.WriteString(";FBLC/")
	b.WriteString(strings.Replace(locale, "_", "-", 1))
	b.WriteString(";FBOP/5")
	g.writeAppToken(b, o)
	b.WriteByte(']')
}

func (g *Generator) writeAndroid(b *strings.Builder, p domain.Profile, o domain.Options, locale string, inApp bool) {
	version := choice(g, p.OSVersions)
	build := choice(g, p.BuildPrefixes) + "." + g.digits(3)
	chrome := choice(g, p.ChromeMajors) + ".0." + strconv.Itoa(g.between(1000, 8500)) + "." + strconv.Itoa(g.between(10, 300))

	b.WriteString("Mozilla/5.0 (Linux; Android ")
	b.WriteString(version)
	b.WriteString("; ")
	b.WriteString(p.Model)
	b.WriteString(" Build/")
	b.WriteString(build)
	b.WriteString(") AppleWebKit/537.36 (KHTML, like Gecko) Chrome/")
	b.WriteString(chrome)
	b.WriteString(" Mobile Safari/537.36")

	if !inApp {
		return
	}
	appVersion := o.AppVersion
	if appVersion == "" {
		appVersion = strconv.Itoa(g.between(300, 460)) + ".0." + strconv.Itoa(g.between(0, 99)) + "." + strconv.Itoa(g.between(0, 999))
	}
	b.WriteString(" [FB_IAB/FB4A;FBAV/")
	b.WriteString(appVersion)
	b.WriteString(";FBLR/")
	b.WriteString(locale)
	g.writeAppToken(b, o)
	b.WriteByte(']')
}

// writeAppToken appends the FBU field of an in-app tag. A token takes
// precedence over the plain timestamp.
func (g *Generator) writeAppToken(b *strings.Builder, o domain.Options) {
	switch {
	case o.TokenActive():
		b.WriteString(";FBU/")
		b.WriteString(g.token(o.TokenMode))
	case o.IncludeTime:
		b.WriteString(";FBU/")
		b.WriteString(g.millis())
	}
}

func (g *Generator) token(mode domain.TokenMode) string {
	if mode == domain.TokenUUID {
		id, err := uuid.NewRandomFromReader(g.rand)
		if err != nil {
			return uuid.NewString()
		}
		return id.String()
	}
	return g.millis()
}

func (g *Generator) millis() string {
	return strconv.FormatInt(g.now().UnixMilli(), 10)
}

// between returns a uniform integer in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rand.IntN(hi-lo+1)
}

func (g *Generator) digits(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte('0' + g.rand.IntN(10))
	}
	return string(buf)
}

func choice[T any](g *Generator, pool []T) T {
	if len(pool) == 0 {
		var zero T
		return zero
	}
	return pool[g.rand.IntN(len(pool))]
}
