package automod

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var (
	urlRegex    = regexp.MustCompile(`https?://[^\s]+`)
	inviteRegex = regexp.MustCompile(`(?i)https?://discord\.gg/\w+`)
)

func extractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

func hasInviteLink(content string) bool {
	return inviteRegex.MatchString(content)
}

// normalizeDomain lowercases and punycodes a URL's host so lookalike
// unicode domains compare equal to their blocklisted ASCII form.
func normalizeDomain(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(parsed.Hostname())
	if asciiHost, err := idna.ToASCII(host); err == nil {
		host = asciiHost
	}
	return host, nil
}

// blockedDomain reports whether any link in the content resolves to a
// blocklisted domain.
func blockedDomain(content string, blocklist map[string]struct{}) (string, bool) {
	if len(blocklist) == 0 {
		return "", false
	}
	for _, link := range extractURLs(content) {
		domain, err := normalizeDomain(link)
		if err != nil {
			continue
		}
		if _, ok := blocklist[domain]; ok {
			return domain, true
		}
	}
	return "", false
}
