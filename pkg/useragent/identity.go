// Package useragent defines the crawler's declared identity. The crawler
// never spoofs a browser: robots.txt groups are matched against Token, and
// every HTTP request and rendered page load carries the full String.
package useragent

import "fmt"

// Token is the product token site owners use in robots.txt User-agent lines.
const Token = "SiphonBot"

// Version is the crawler version advertised in the User-Agent header.
const Version = "1.0"

// DefaultContact is included so site operators can reach whoever runs the
// crawler. Deployments should override it via Identity.
const DefaultContact = "https://github.com/FranksOps/siphon"

// Identity is a crawler identity with an optional operator contact URL.
type Identity struct {
	Contact string
}

// String renders the full User-Agent header value, e.g.
// "SiphonBot/1.0 (+https://example.com/bot)".
func (id Identity) String() string {
	contact := id.Contact
	if contact == "" {
		contact = DefaultContact
	}
	return fmt.Sprintf("%s/%s (+%s)", Token, Version, contact)
}

// Default returns the identity with the default contact URL.
func Default() Identity {
	return Identity{}
}
