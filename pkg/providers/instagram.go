package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/pkg/httpclient"
	"github.com/PuerkitoBio/goquery"
)

// InstagramFetcher extracts recent posts from a public Instagram profile page.
type InstagramFetcher struct {
	client HTTPClient
	cfg    Provider
}

// NewInstagramFetcher constructs a profile page fetcher.
func NewInstagramFetcher(client HTTPClient, cfg Provider) *InstagramFetcher {
	if client == nil {
		client = DefaultHTTPClient(0)
	}
	return &InstagramFetcher{client: client, cfg: cfg}
}

// ID returns the provider id handled by this fetcher.
func (f *InstagramFetcher) ID() string { return ProviderTypeInstagram }

// Fetch downloads the profile page of account and extracts its posts.
func (f *InstagramFetcher) Fetch(ctx context.Context, account string) ([]domain.CandidatePost, error) {
	account = strings.TrimPrefix(strings.TrimSpace(account), "@")
	if account == "" {
		return nil, fmt.Errorf("account is empty")
	}

	profile := f.cfg.profileURL(account)
	body, err := fetchPage(ctx, f.client, httpclient.ProxyURL(f.cfg.ProxyURL, profile), account, Headers(f.cfg))
	if err != nil {
		return nil, err
	}

	return parseProfilePage(body, account, profile)
}

// parseProfilePage applies the JSON-LD strategies first, then the <img> fallback.
func parseProfilePage(body []byte, account, profile string) ([]domain.CandidatePost, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s profile html: %w", account, err)
	}

	var posts []domain.CandidatePost
	seenMedia := make(map[string]struct{})
	add := func(p domain.CandidatePost) {
		if strings.TrimSpace(p.MediaURL) == "" {
			return
		}
		p.Account = account
		seenMedia[p.MediaURL] = struct{}{}
		posts = append(posts, p)
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		for _, p := range parseJSONLD([]byte(s.Text())) {
			add(p)
		}
	})

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		alt, hasAlt := s.Attr("alt")
		if !hasAlt || !strings.HasSuffix(src, ".jpg") || !strings.Contains(src, "/p/") {
			return
		}
		if _, dup := seenMedia[src]; dup {
			return
		}
		add(imageFallbackPost(src, alt, profile))
	})

	return posts, nil
}

type ldDocument struct {
	ItemListElement []ldEntry `json:"itemListElement"`
}

type ldEntry struct {
	Type         string  `json:"@type"`
	Item         *ldItem `json:"item"`
	Shortcode    string  `json:"shortcode"`
	DisplayURL   string  `json:"display_url"`
	ThumbnailSrc string  `json:"thumbnail_src"`
	Caption      struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
}

type ldItem struct {
	Type       string `json:"@type"`
	URL        string `json:"url"`
	ContentURL string `json:"contentUrl"`
	Caption    string `json:"caption"`
}

// parseJSONLD extracts posts from one JSON-LD block. Malformed blocks yield nothing.
func parseJSONLD(raw []byte) []domain.CandidatePost {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	var docs []ldDocument
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil
		}
	} else {
		var doc ldDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil
		}
		docs = []ldDocument{doc}
	}

	var out []domain.CandidatePost
	for _, doc := range docs {
		for _, entry := range doc.ItemListElement {
			if p, ok := entry.post(); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

func (e ldEntry) post() (domain.CandidatePost, bool) {
	if e.Item != nil && e.Item.Type == "ImageObject" {
		id := e.Item.URL
		if code, ok := postCode(e.Item.URL); ok {
			id = code
		}
		return domain.CandidatePost{
			ID:       id,
			MediaURL: e.Item.ContentURL,
			Caption:  e.Item.Caption,
			Link:     e.Item.URL,
		}, true
	}

	switch e.Type {
	case "GraphImage", "GraphVideo", "GraphSidecar":
		if e.Shortcode == "" {
			return domain.CandidatePost{}, false
		}
		media := e.DisplayURL
		if media == "" {
			media = e.ThumbnailSrc
		}
		var caption string
		if len(e.Caption.Edges) > 0 {
			caption = e.Caption.Edges[0].Node.Text
		}
		return domain.CandidatePost{
			ID:       e.Shortcode,
			MediaURL: media,
			Caption:  caption,
			Link:     postLink(e.Shortcode),
		}, true
	}
	return domain.CandidatePost{}, false
}

// imageFallbackPost builds a post from a bare <img>. The link stays unique per image
// when no shortcode can be derived.
func imageFallbackPost(src, alt, profile string) domain.CandidatePost {
	p := domain.CandidatePost{
		ID:       src,
		MediaURL: src,
		Caption:  alt,
		Link:     profile + "#" + src,
	}
	if code, ok := postCode(src); ok {
		p.ID = code
		p.Link = postLink(code)
	}
	return p
}
