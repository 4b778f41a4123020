package domain

import "strings"

// Platform identifies the operating system family an agent string imitates.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Variant selects the flavour of agent string to synthesize.
type Variant string

const (
	VariantInApp  Variant = "fb"     // in-app embedded browser
	VariantChrome Variant = "chrome" // general browser engine A
	VariantSafari Variant = "safari" // general browser engine B
	VariantMixed  Variant = "mixed"  // resolved per candidate
)

// ConcreteVariants are the variants a mixed request samples from.
var ConcreteVariants = []Variant{VariantInApp, VariantChrome, VariantSafari}

// TokenMode selects the uniqueness marker appended to each agent string.
type TokenMode string

const (
	TokenNone      TokenMode = "none"
	TokenTimestamp TokenMode = "timestamp"
	TokenUUID      TokenMode = "uuid"
)

// LocaleAuto asks the generator to pick a locale from Locales per candidate.
const LocaleAuto = "auto"

// Locales is the fixed pool sampled when the locale is "auto".
var Locales = []string{"en_US", "en_GB", "fr_FR", "de_DE", "es_ES", "pt_BR", "hi_IN", "zh_CN", "ja_JP"}

// Options controls how a batch of agent strings is generated.
type Options struct {
	Variant     Variant
	Locale      string
	IncludeTime bool
	TokenMode   TokenMode
	// AppVersion overrides the randomized embedded-app version when set.
	AppVersion string
}

// TokenActive reports whether a uniqueness token is appended.
func (o Options) TokenActive() bool {
	return o.TokenMode != "" && o.TokenMode != TokenNone
}

// Normalize fills empty fields with their defaults.
func (o Options) Normalize() Options {
	if o.Variant == "" {
		o.Variant = VariantMixed
	}
	if o.Locale == "" {
		o.Locale = LocaleAuto
	}
	if o.TokenMode == "" {
		o.TokenMode = TokenNone
	}
	return o
}

// Profile describes the device and version pools used to render agent strings.
// A profile is never mutated once built.
type Profile struct {
	Platform Platform
	Model    string

	OSVersions []string

	// iOS: webkit builds keyed by OS major version.
	WebKitBuilds map[string][]string
	// Android: build-tag prefixes and Chrome major versions.
	BuildPrefixes []string
	ChromeMajors  []string
}

// FallbackWebKitMajor is used when an iOS major has no webkit pool.
const FallbackWebKitMajor = "15"

var (
	iosVersions = []string{"15_1", "15_6", "16_0", "16_4", "16_5", "17_0"}
	iosWebKit   = map[string][]string{
		"15": {"605.1.15", "605.1.33"},
		"16": {"606.1.36", "608.1.40"},
		"17": {"610.1.45"},
	}
	androidVersions = []string{"11", "12", "13", "14"}
	androidPrefixes = []string{"TP1A", "SKQ1", "SP1A", "TQ1A"}
	chromeMajors    = []string{
		"100", "101", "102", "103", "104", "105", "106", "107", "108", "109",
		"110", "111", "112", "113", "114", "115", "116", "117", "118", "119",
		"120", "121", "122", "123", "124", "125",
	}
)

// PlatformOf detects the platform from a device model string.
func PlatformOf(model string) Platform {
	m := strings.ToLower(model)
	if strings.Contains(m, "iphone") || strings.Contains(m, "ipad") {
		return PlatformIOS
	}
	return PlatformAndroid
}

// NewProfile builds the stock profile for a device model.
func NewProfile(model string) Profile {
	if PlatformOf(model) == PlatformIOS {
		return Profile{
			Platform:     PlatformIOS,
			Model:        model,
			OSVersions:   iosVersions,
			WebKitBuilds: iosWebKit,
		}
	}
	return Profile{
		Platform:      PlatformAndroid,
		Model:         model,
		OSVersions:    androidVersions,
		BuildPrefixes: androidPrefixes,
		ChromeMajors:  chromeMajors,
	}
}

// Device is an entry of the built-in device catalogue.
type Device struct {
	ID    string
	Label string
	Model string
}

// Platform returns the platform the device runs.
func (d Device) Platform() Platform { return PlatformOf(d.Model) }

// Devices is the built-in catalogue. The first entry is the default device.
var Devices = []Device{
	{ID: "iphone14", Label: "iPhone 14", Model: "iPhone14,5"},
	{ID: "iphone13", Label: "iPhone 13", Model: "iPhone13,2"},
	{ID: "iphone12", Label: "iPhone 12", Model: "iPhone12,1"},
	{ID: "ipad", Label: "iPad Air", Model: "iPad13,1"},
	{ID: "pixel7", Label: "Pixel 7", Model: "Pixel 7"},
	{ID: "pixel6", Label: "Pixel 6", Model: "Pixel 6"},
	{ID: "samsung_s22", Label: "Galaxy S22", Model: "SM-S901U"},
	{ID: "oneplus9", Label: "OnePlus 9", Model: "OnePlus9"},
	{ID: "redmi", Label: "Redmi Note 11", Model: "Redmi Note 11"},
}

// LookupDevice finds a catalogue device by id or model.
func LookupDevice(key string) (Device, bool) {
	for _, d := range Devices {
		if d.ID == key || d.Model == key {
			return d, true
		}
	}
	return Device{}, false
}

// Preset names a canned set of option overrides.
type Preset string

const (
	PresetNone      Preset = ""
	PresetFBLatest  Preset = "fb_latest"
	PresetFBEurope  Preset = "fb_europe"
	PresetFBIndia   Preset = "fb_india"
	PresetChromeNew Preset = "chrome_new"
	PresetSafariNew Preset = "safari_new"
)

// Apply overlays the preset on the given options.
func (p Preset) Apply(o Options) Options {
	switch p {
	case PresetFBLatest:
		o.Variant, o.Locale = VariantInApp, LocaleAuto
	case PresetFBEurope:
		o.Variant, o.Locale = VariantInApp, "en_GB"
	case PresetFBIndia:
		o.Variant, o.Locale = VariantInApp, "hi_IN"
	case PresetChromeNew:
		o.Variant = VariantChrome
	case PresetSafariNew:
		o.Variant = VariantSafari
	}
	return o
}
