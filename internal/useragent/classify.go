// ===========================================
// Package useragent - User-Agent Classification
// ===========================================
// Turns a raw user-agent string into the device dimension record.
// Classification is pure and deterministic for a given string, which
// is what allows caching one device row per distinct user-agent.
// ===========================================

package useragent

import (
	"strings"

	ua "github.com/mileusna/useragent"
)

// Device classes reported in Classification.Type. Desktop browsers
// report no device class, so Type falls back to the browser name.
const (
	TypeMobile = "mobile"
	TypeTablet = "tablet"
	TypeBot    = "bot"
)

// Classification is the parsed shape of a user-agent string.
type Classification struct {
	Type        string
	Vendor      string
	Model       string
	Version     string
	Interface   string
	IsAutomated bool
}

// Signatures the upstream parser does not flag as bots: command-line
// clients, library HTTP clients and mail readers. Matched
// case-insensitively as substrings.
var cliSignatures = []string{
	"curl/",
	"wget/",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"okhttp",
	"java/",
	"libwww-perl",
	"httpie",
	"insomnia",
	"postmanruntime",
}

var emailSignatures = []string{
	"thunderbird",
	"microsoft outlook",
	"airmail",
	"barca",
	"emclient",
	"lotus-notes",
	"postbox",
	"the bat!",
}

// AI crawlers and agent browsers, which announce themselves but are
// not in classic crawler lists.
var aiSignatures = []string{
	"gptbot",
	"chatgpt-user",
	"oai-searchbot",
	"claudebot",
	"claude-web",
	"anthropic-ai",
	"perplexitybot",
	"google-extended",
	"ccbot",
	"bytespider",
	"cohere-ai",
}

// Classify parses a raw user-agent string.
//
// Type prefers the device class (mobile/tablet); desktop browsers
// carry no device class and fall back to the browser name.
// Interface captures the browser engine family.
func Classify(userAgent string) Classification {
	parsed := ua.Parse(userAgent)
	lower := strings.ToLower(userAgent)

	automated := parsed.Bot ||
		matchesAny(lower, cliSignatures) ||
		matchesAny(lower, emailSignatures) ||
		matchesAny(lower, aiSignatures)

	c := Classification{
		Model:       parsed.Device,
		Vendor:      vendorOf(parsed),
		Version:     parsed.Version,
		Interface:   engineOf(parsed),
		IsAutomated: automated,
	}

	switch {
	case parsed.Mobile:
		c.Type = TypeMobile
	case parsed.Tablet:
		c.Type = TypeTablet
	case parsed.Bot:
		c.Type = TypeBot
	default:
		c.Type = parsed.Name
	}

	return c
}

func matchesAny(lower string, signatures []string) bool {
	for _, sig := range signatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// vendorOf derives the hardware vendor from the parsed device and OS.
func vendorOf(parsed ua.UserAgent) string {
	device := strings.ToLower(parsed.Device)
	switch {
	case strings.Contains(device, "iphone"), strings.Contains(device, "ipad"):
		return "Apple"
	case strings.Contains(device, "samsung"), strings.Contains(device, "galaxy"):
		return "Samsung"
	case strings.Contains(device, "pixel"):
		return "Google"
	case strings.Contains(device, "huawei"):
		return "Huawei"
	case strings.Contains(device, "xiaomi"), strings.Contains(device, "redmi"):
		return "Xiaomi"
	}
	switch parsed.OS {
	case "macOS", "iOS":
		return "Apple"
	}
	return ""
}

// engineOf maps the browser family to its rendering engine.
func engineOf(parsed ua.UserAgent) string {
	switch parsed.Name {
	case "Firefox":
		return "Gecko"
	case "Safari":
		return "WebKit"
	case "Chrome", "Chromium", "Edge", "Opera", "Opera Mini", "Vivaldi":
		return "Blink"
	case "Internet Explorer":
		return "Trident"
	}
	return ""
}
