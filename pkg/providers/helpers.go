package providers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/Adda-Baaj/nostr-mirror/pkg/httpclient"
)

var postCodeRe = regexp.MustCompile(`/p/([^/?#]+)`)

// postCode extracts the shortcode from a /p/<code>/ path, if present.
func postCode(u string) (string, bool) {
	m := postCodeRe.FindStringSubmatch(u)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

func postLink(code string) string {
	return "https://www.instagram.com/p/" + code + "/"
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

func fetchPage(ctx context.Context, client httpclient.Client, url, account string, headers map[string]string) ([]byte, error) {
	resp, err := client.Get(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s profile: %w", account, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s profile returned status %d body: %s", account, resp.StatusCode(), responseSnippet(body))
	}

	return body, nil
}
