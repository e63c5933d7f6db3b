package handlers

import (
	"strings"

	"github.com/mssola/useragent"
)

const (
	unknownPlatform = "Unknown Platform"
	unknownBrowser  = "Unknown Browser"
)

var knownBrowsers = map[string]bool{
	"Chrome":            true,
	"Edge":              true,
	"Firefox":           true,
	"Internet Explorer": true,
	"Opera":             true,
	"Safari":            true,
}

// PlatformFromUserAgent classifies the device family, e.g. "Desktop - Mac".
func PlatformFromUserAgent(ua string) string {
	if ua == "" {
		return unknownPlatform
	}
	parsed := useragent.New(ua)
	if parsed.Bot() {
		return unknownPlatform
	}
	os, platform := parsed.OS(), parsed.Platform()

	// iOS reports "like Mac OS X", so it is checked before the desktop rules.
	switch {
	case strings.Contains(os, "Android"):
		return "Mobile - Android"
	case platform == "iPhone" || platform == "iPad" || platform == "iPod" || strings.Contains(os, "iPhone OS"):
		return "Mobile - iOS"
	case strings.HasPrefix(os, "Windows") || platform == "Windows":
		return "Desktop - Windows"
	case strings.Contains(os, "Mac OS") || platform == "Macintosh":
		return "Desktop - Mac"
	case strings.Contains(os, "Linux") || platform == "X11" || platform == "Linux":
		return "Desktop - Linux"
	}
	return unknownPlatform
}

// BrowserFromUserAgent names the browser, e.g. "Firefox".
func BrowserFromUserAgent(ua string) string {
	if ua == "" {
		return unknownBrowser
	}
	parsed := useragent.New(ua)
	if parsed.Bot() {
		return unknownBrowser
	}
	name, _ := parsed.Browser()
	if !knownBrowsers[name] {
		return unknownBrowser
	}
	return name
}
