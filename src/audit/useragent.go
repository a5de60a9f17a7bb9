package audit

import (
	"regexp"
	"strings"
)

// DeviceInfo is what the login log records about the client.
type DeviceInfo struct {
	DeviceType     string
	OS             string
	Browser        string
	BrowserVersion string
}

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceUnknown = "unknown"
)

var (
	tabletRe = regexp.MustCompile(`(?i)tablet|ipad|playbook|silk`)
	mobileRe = regexp.MustCompile(`Mobile|Android|iP(hone|od)|IEMobile|BlackBerry|Kindle|Silk-Accelerated|(hpw|web)OS|Opera M(obi|ini)`)

	macVersionRe     = regexp.MustCompile(`mac os x ([\d_]+)`)
	iosVersionRe     = regexp.MustCompile(`os ([\d_]+)`)
	androidVersionRe = regexp.MustCompile(`android ([\d.]+)`)

	edgeRe    = regexp.MustCompile(`edg(?:e|a|ios)?/([\d.]+)`)
	operaRe   = regexp.MustCompile(`opr/([\d.]+)`)
	samsungRe = regexp.MustCompile(`samsungbrowser/([\d.]+)`)
	chromeRe  = regexp.MustCompile(`(?:chrome|crios)/([\d.]+)`)
	safariRe  = regexp.MustCompile(`version/([\d.]+)`)
	firefoxRe = regexp.MustCompile(`(?:firefox|fxios)/([\d.]+)`)
	ieRe      = regexp.MustCompile(`(?:msie |rv:)([\d.]+)`)
)

// ParseUserAgent classifies a User-Agent header. Browser checks run from the
// most specific token to the least, since Edge, Opera and Samsung Internet
// all also advertise Chrome and Safari.
func ParseUserAgent(userAgent string) DeviceInfo {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceInfo{DeviceType: DeviceUnknown, OS: "Unknown", Browser: "Unknown"}
	}

	ua := strings.ToLower(userAgent)
	browser, version := detectBrowser(ua)

	return DeviceInfo{
		DeviceType:     detectDeviceType(userAgent, ua),
		OS:             detectOS(ua),
		Browser:        browser,
		BrowserVersion: version,
	}
}

func detectDeviceType(raw, ua string) string {
	if tabletRe.MatchString(raw) || (strings.Contains(ua, "android") && !strings.Contains(ua, "mobi")) {
		return DeviceTablet
	}
	if mobileRe.MatchString(raw) {
		return DeviceMobile
	}
	return DeviceDesktop
}

func detectOS(ua string) string {
	switch {
	case strings.Contains(ua, "windows nt 10.0"):
		return "Windows 10"
	case strings.Contains(ua, "windows nt 6.3"):
		return "Windows 8.1"
	case strings.Contains(ua, "windows nt 6.2"):
		return "Windows 8"
	case strings.Contains(ua, "windows nt 6.1"):
		return "Windows 7"
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return withVersion("iOS", iosVersionRe, ua, true)
	case strings.Contains(ua, "mac os x"):
		return withVersion("macOS", macVersionRe, ua, true)
	case strings.Contains(ua, "android"):
		return withVersion("Android", androidVersionRe, ua, false)
	case strings.Contains(ua, "linux"):
		return "Linux"
	}
	return "Unknown"
}

func detectBrowser(ua string) (string, string) {
	switch {
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge/"), strings.Contains(ua, "edga/"), strings.Contains(ua, "edgios/"):
		return "Edge", firstGroup(edgeRe, ua)
	case strings.Contains(ua, "opr/"):
		return "Opera", firstGroup(operaRe, ua)
	case strings.Contains(ua, "opera"):
		return "Opera", firstGroup(safariRe, ua)
	case strings.Contains(ua, "samsungbrowser/"):
		return "Samsung Internet", firstGroup(samsungRe, ua)
	case strings.Contains(ua, "chrome/"), strings.Contains(ua, "crios/"):
		return "Chrome", firstGroup(chromeRe, ua)
	case strings.Contains(ua, "safari/") && !strings.Contains(ua, "fxios/"):
		return "Safari", firstGroup(safariRe, ua)
	case strings.Contains(ua, "firefox/"), strings.Contains(ua, "fxios/"):
		return "Firefox", firstGroup(firefoxRe, ua)
	case strings.Contains(ua, "msie"), strings.Contains(ua, "trident/"):
		return "Internet Explorer", firstGroup(ieRe, ua)
	}
	return "Unknown", ""
}

func withVersion(name string, re *regexp.Regexp, ua string, underscores bool) string {
	v := firstGroup(re, ua)
	if v == "" {
		return name
	}
	if underscores {
		v = strings.ReplaceAll(v, "_", ".")
	}
	return name + " " + v
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
