package scraper

import "testing"

func TestDetectChallenge(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		want   bool
		source string
	}{
		{"clean page", "<html><body>Welcome to our docs</body></html>", false, ""},
		{"cloudflare turnstile", `<div class="cf-turnstile"></div>`, true, "Cloudflare"},
		{"cloudflare chl opt", `<script>window._cf_chl_opt={}</script>`, true, "Cloudflare"},
		{"akamai reference block", `<h1>Access Denied</h1><p>Reference #18.abc</p>`, true, "Akamai"},
		{"akamai reference alone is fine", `<p>Reference #18.abc in the API docs</p>`, false, ""},
		{"datadome captcha", `<script src="https://geo.captcha-delivery.com/captcha.js"></script>`, true, "DataDome"},
		{"perimeterx", `<div id="px-captcha"></div>`, true, "PerimeterX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source := detectChallenge(tt.html)
			if got != tt.want {
				t.Errorf("detectChallenge = %v, want %v", got, tt.want)
			}
			if source != tt.source {
				t.Errorf("source = %q, want %q", source, tt.source)
			}
		})
	}
}
