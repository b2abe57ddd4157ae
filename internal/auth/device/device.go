// Package device turns a browser user agent into a short label for audit events.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent renders "<browser> on <platform>", e.g. "Chrome on macOS".
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	platform := osName(ua)
	if platform == "" {
		platform = "Unknown OS"
	}
	return strings.Join(strings.Fields(browser+" on "+platform), " ")
}

func osName(ua *useragent.UserAgent) string {
	info := ua.OSInfo()
	switch {
	case strings.Contains(ua.Platform(), "iPhone"):
		return "iPhone"
	case strings.Contains(ua.Platform(), "iPad"):
		return "iPad"
	case strings.HasPrefix(info.Name, "Mac OS"):
		return "macOS"
	case info.Name != "":
		return info.Name
	default:
		return ua.Platform()
	}
}
