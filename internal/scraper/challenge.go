package scraper

import "strings"

// challengeDetector examines rendered page HTML for a bot-protection
// interstitial. Headless renders expose no status code or headers, so
// detection works on body signatures only.
type challengeDetector func(html string) (detected bool, source string)

var challengeDetectors = []challengeDetector{
	detectCloudflare,
	detectAkamai,
	detectDataDome,
	detectPerimeterX,
}

// detectChallenge runs the rendered HTML through all detectors and reports
// the first protection vendor that matches.
func detectChallenge(html string) (bool, string) {
	for _, d := range challengeDetectors {
		if detected, source := d(html); detected {
			return true, source
		}
	}
	return false, ""
}

func detectCloudflare(html string) (bool, string) {
	if strings.Contains(html, "cf-browser-verification") ||
		strings.Contains(html, "cf-turnstile") ||
		strings.Contains(html, "_cf_chl_opt") ||
		strings.Contains(html, "Attention Required! | Cloudflare") ||
		strings.Contains(html, "Checking if the site connection is secure") {
		return true, "Cloudflare"
	}
	return false, ""
}

func detectAkamai(html string) (bool, string) {
	if strings.Contains(html, "Reference #") && strings.Contains(html, "Access Denied") {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(html string) (bool, string) {
	if strings.Contains(html, "geo.captcha-delivery.com") ||
		strings.Contains(html, "datadome") {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(html string) (bool, string) {
	if strings.Contains(html, "px-captcha") ||
		strings.Contains(html, "_pxAppId") ||
		strings.Contains(html, "Press & Hold to confirm") {
		return true, "PerimeterX"
	}
	return false, ""
}
