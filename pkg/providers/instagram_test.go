package providers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Adda-Baaj/nostr-mirror/pkg/httpclient"
)

type stubResponse struct {
	body   []byte
	status int
}

func (s stubResponse) Body() []byte         { return s.body }
func (s stubResponse) StatusCode() int      { return s.status }
func (s stubResponse) Header(string) string { return "" }

type stubClient struct {
	resp    stubResponse
	err     error
	gotURL  string
	headers map[string]string
}

func (s *stubClient) Get(_ context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	s.gotURL = url
	s.headers = headers
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

const profileHTML = `<html><head>
<script type="application/ld+json">{"itemListElement":[
  {"item":{"@type":"ImageObject","url":"https://www.instagram.com/p/AAA111/","contentUrl":"https://cdn.example/aaa.jpg","caption":"sunset"}},
  {"item":{"@type":"ImageObject","url":"https://www.instagram.com/p/NOMEDIA/","contentUrl":""}},
  {"@type":"GraphImage","shortcode":"BBB222","display_url":"https://cdn.example/bbb.jpg","edge_media_to_caption":{"edges":[{"node":{"text":"beach"}}]}},
  {"@type":"GraphVideo","shortcode":"CCC333","thumbnail_src":"https://cdn.example/ccc.jpg"},
  {"@type":"GraphSidecar"}
]}</script>
<script type="application/ld+json">{ not json</script>
</head><body>
<img src="https://cdn.example/aaa.jpg" alt="dup of json-ld">
<img src="https://cdn.example/p/DDD444/photo.jpg" alt="from img">
<img src="https://cdn.example/p/media/raw.jpg" alt="">
<img src="https://cdn.example/p/EEE555/photo.png" alt="not jpg">
<img src="https://cdn.example/logo.jpg" alt="no post path">
<img src="https://cdn.example/p/FFF666/noalt.jpg">
</body></html>`

func TestInstagramFetcherExtractsPosts(t *testing.T) {
	client := &stubClient{resp: stubResponse{body: []byte(profileHTML), status: 200}}
	cfg := InstagramProvider("https://proxy.example/?url={url}", map[string]string{ConfigUserAgentKey: "mirror/1.0"})
	f := NewInstagramFetcher(client, cfg)

	posts, err := f.Fetch(context.Background(), "@alice")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if client.gotURL != "https://proxy.example/?url=https%3A%2F%2Fwww.instagram.com%2Falice%2F" {
		t.Fatalf("unexpected request url %q", client.gotURL)
	}
	if client.headers["User-Agent"] != "mirror/1.0" {
		t.Fatalf("headers = %v", client.headers)
	}

	byID := make(map[string]string)
	for _, p := range posts {
		if p.Account != "alice" {
			t.Fatalf("account = %q", p.Account)
		}
		byID[p.ID] = p.Link
	}
	if len(posts) != 5 {
		t.Fatalf("expected 5 posts, got %d: %+v", len(posts), posts)
	}

	want := map[string]string{
		"AAA111": "https://www.instagram.com/p/AAA111/",
		"BBB222": "https://www.instagram.com/p/BBB222/",
		"CCC333": "https://www.instagram.com/p/CCC333/",
		"DDD444": "https://www.instagram.com/p/DDD444/",
		"media":  "https://www.instagram.com/p/media/",
	}
	for id, link := range want {
		if byID[id] != link {
			t.Fatalf("post %s link = %q, want %q", id, byID[id], link)
		}
	}
	if posts[0].Caption != "sunset" || posts[1].Caption != "beach" {
		t.Fatalf("captions = %q %q", posts[0].Caption, posts[1].Caption)
	}
}

func TestImageFallbackLinkWithoutCode(t *testing.T) {
	p := imageFallbackPost("https://cdn.example/p/", "alt", "https://www.instagram.com/bob/")
	if p.Link != "https://www.instagram.com/bob/#https://cdn.example/p/" || p.ID != p.MediaURL {
		t.Fatalf("unexpected fallback post %+v", p)
	}
}

func TestParseJSONLDArrayAndMalformed(t *testing.T) {
	raw := `[{"itemListElement":[{"@type":"GraphImage","shortcode":"X1","display_url":"https://cdn.example/x.jpg"}]}]`
	if got := parseJSONLD([]byte(raw)); len(got) != 1 || got[0].ID != "X1" {
		t.Fatalf("parseJSONLD array = %+v", got)
	}
	if got := parseJSONLD([]byte(`{"itemListElement": 5}`)); got != nil {
		t.Fatalf("expected nil for malformed block, got %+v", got)
	}
	if got := parseJSONLD([]byte("   ")); got != nil {
		t.Fatalf("expected nil for empty block")
	}
}

func TestInstagramFetcherErrors(t *testing.T) {
	f := NewInstagramFetcher(&stubClient{resp: stubResponse{body: []byte("rate limited"), status: 429}}, InstagramProvider("", nil))
	if _, err := f.Fetch(context.Background(), "alice"); err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}

	f = NewInstagramFetcher(&stubClient{err: errors.New("dial tcp")}, InstagramProvider("", nil))
	if _, err := f.Fetch(context.Background(), "alice"); err == nil {
		t.Fatalf("expected transport error")
	}

	if _, err := f.Fetch(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty account")
	}
}

func TestFetcherRegistryResolvesByType(t *testing.T) {
	reg := DefaultFetcherRegistry(&stubClient{}, InstagramProvider("", nil))
	f, err := reg.FetcherFor(Provider{ID: "ig-main", Type: "Instagram"})
	if err != nil || f.ID() != ProviderTypeInstagram {
		t.Fatalf("FetcherFor = %v %v", f, err)
	}
	if _, err := reg.FetcherFor(Provider{ID: "x", Type: "tiktok"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if _, err := reg.FetcherFor(Provider{}); err == nil {
		t.Fatalf("expected error for provider without type")
	}
}

func TestProfileURLTemplates(t *testing.T) {
	if got := (Provider{ProfileURL: "https://mirror.example/u"}).profileURL("bob"); got != "https://mirror.example/u/bob/" {
		t.Fatalf("profileURL = %q", got)
	}
	if got := (Provider{}).profileURL("bob"); got != "https://www.instagram.com/bob/" {
		t.Fatalf("profileURL = %q", got)
	}
}

func TestHeadersSkipBlankValues(t *testing.T) {
	h := Headers(Provider{Config: map[string]string{ConfigUserAgentKey: " ua ", ConfigCacheControlKey: "  "}})
	if h["User-Agent"] != "ua" || h["Accept"] != defaultAccept {
		t.Fatalf("headers = %v", h)
	}
	if _, ok := h["Cache-Control"]; ok {
		t.Fatalf("blank header kept: %v", h)
	}
	if _, ok := h["Accept-Language"]; ok {
		t.Fatalf("unset header present: %v", h)
	}
}
