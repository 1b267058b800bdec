package httpclient

import (
	"net/url"
	"strings"
)

// ProxyURL routes target through a proxy template. "{url}" in the template is replaced
// by the query-escaped target; otherwise the escaped target is appended. An empty
// template returns target unchanged.
func ProxyURL(template, target string) string {
	template = strings.TrimSpace(template)
	if template == "" {
		return target
	}
	escaped := url.QueryEscape(target)
	if strings.Contains(template, "{url}") {
		return strings.ReplaceAll(template, "{url}", escaped)
	}
	return template + escaped
}
