// Package extract pulls media URLs and text out of heterogeneous vendor
// payloads. Each Extractor understands one known shape; a Chain tries them in
// order and the first one that yields anything wins.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Payload is one vendor response, decoded as far as possible. JSON holds the
// decoded document (nil when the body was not JSON); Text holds free-form
// text such as a chat completion or an SSE transcript.
type Payload struct {
	JSON any
	Text string
}

// FromBytes decodes body as JSON when possible and keeps it as text otherwise.
func FromBytes(body []byte) Payload {
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return Payload{JSON: v}
	}
	return Payload{Text: string(body)}
}

// Extractor tries one payload shape.
type Extractor struct {
	Name string
	Fn   func(Payload) []string
}

// Chain is an ordered list of extractors.
type Chain []Extractor

// All returns the URLs from the first extractor that finds any.
func (c Chain) All(p Payload) []string {
	for _, e := range c {
		if urls := dedupe(e.Fn(p)); len(urls) > 0 {
			return urls
		}
	}
	return nil
}

// First returns the first URL found, or "".
func (c Chain) First(p Payload) string {
	if urls := c.All(p); len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// MediaURLs is the default order used when polling job status: a direct
// field wins over markdown embedded in text, which wins over nested arrays.
var MediaURLs = Chain{DirectURL, VideoTag, MarkdownImage, MarkdownLink, OutputResults, DataArray}

// DirectURL reads a top-level URL field. veo and sora2api job objects carry
// "url" or "video_url"; some proxies nest them under "data" or "result".
var DirectURL = Extractor{
	Name: "direct_url",
	Fn: func(p Payload) []string {
		m, ok := p.JSON.(map[string]any)
		if !ok {
			return nil
		}
		for _, scope := range []map[string]any{m, asMap(m["data"]), asMap(m["result"]), asMap(m["output"])} {
			for _, key := range []string{"url", "video_url", "videoUrl", "image_url", "imageUrl", "output_url", "result_url"} {
				if s := httpURL(scope[key]); s != "" {
					return []string{s}
				}
			}
		}
		return nil
	},
}

var (
	videoTagPattern      = regexp.MustCompile(`<video[^>]*\ssrc=['"]([^'"]+)['"]`)
	markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\((\S+?)(?:\s+"[^"]*")?\)`)
	markdownLinkPattern  = regexp.MustCompile(`\[[^\]]*\]\((https?://\S+?\.(?:mp4|webm|mov|png|jpe?g|webp|gif)(?:\?\S*?)?)\)`)
)

// VideoTag finds <video src='...'> embedded in text. sora2api renders finished
// videos this way inside "content" and streamed chat deltas.
var VideoTag = Extractor{
	Name: "video_tag",
	Fn: func(p Payload) []string {
		return findAll(videoTagPattern, TextOf(p))
	},
}

// MarkdownImage finds ![alt](url). sora2api image models and several
// OpenAI-compatible image proxies answer with markdown images.
var MarkdownImage = Extractor{
	Name: "markdown_image",
	Fn: func(p Payload) []string {
		return findAll(markdownImagePattern, TextOf(p))
	},
}

// MarkdownLink finds [label](url) links that point at media files, used by
// proxies that link the download instead of embedding it.
var MarkdownLink = Extractor{
	Name: "markdown_link",
	Fn: func(p Payload) []string {
		return findAll(markdownLinkPattern, TextOf(p))
	},
}

// OutputResults reads output.results[].url, the dashscope (qwen) task shape.
var OutputResults = Extractor{
	Name: "output_results",
	Fn: func(p Payload) []string {
		m, ok := p.JSON.(map[string]any)
		if !ok {
			return nil
		}
		results, _ := asMap(m["output"])["results"].([]any)
		var out []string
		for _, r := range results {
			if s := httpURL(asMap(r)["url"]); s != "" {
				out = append(out, s)
			}
		}
		return out
	},
}

// DataArray reads data[].url or data[].b64_json, the OpenAI images shape.
// Base64 payloads become data URLs so rehosting can upload them.
var DataArray = Extractor{
	Name: "data_array",
	Fn: func(p Payload) []string {
		m, ok := p.JSON.(map[string]any)
		if !ok {
			return nil
		}
		items, _ := m["data"].([]any)
		var out []string
		for _, it := range items {
			entry := asMap(it)
			if s := httpURL(entry["url"]); s != "" {
				out = append(out, s)
				continue
			}
			if b64, _ := entry["b64_json"].(string); b64 != "" {
				out = append(out, "data:image/png;base64,"+b64)
			}
		}
		return out
	},
}

// TextOf collects the free text of a payload: Text itself plus the string
// fields vendors use for message bodies ("content", choices[].message.content,
// choices[].delta.content).
func TextOf(p Payload) string {
	var b strings.Builder
	b.WriteString(p.Text)
	m, ok := p.JSON.(map[string]any)
	if !ok {
		return b.String()
	}
	if s, ok := m["content"].(string); ok {
		b.WriteString("\n")
		b.WriteString(s)
	}
	choices, _ := m["choices"].([]any)
	for _, c := range choices {
		cm := asMap(c)
		for _, key := range []string{"message", "delta"} {
			if s, ok := asMap(cm[key])["content"].(string); ok {
				b.WriteString("\n")
				b.WriteString(s)
			}
		}
	}
	return b.String()
}

func findAll(re *regexp.Regexp, text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		u := strings.TrimSpace(m[1])
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "data:") {
			out = append(out, u)
		}
	}
	return out
}

func httpURL(v any) string {
	s, _ := v.(string)
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return ""
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func dedupe(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// JobID returns the job identifier from a create or query response: a
// top-level id (veo, sora2api), data.id, or dashscope's output.task_id.
func JobID(p Payload) string {
	m, ok := p.JSON.(map[string]any)
	if !ok {
		return ""
	}
	for _, scope := range []map[string]any{m, asMap(m["data"]), asMap(m["output"])} {
		for _, key := range []string{"id", "task_id", "taskId"} {
			if s, ok := scope[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Thumbnail returns a poster image URL when the vendor sends one.
func Thumbnail(p Payload) string {
	m, ok := p.JSON.(map[string]any)
	if !ok {
		return ""
	}
	for _, scope := range []map[string]any{m, asMap(m["data"])} {
		for _, key := range []string{"thumbnail_url", "thumbnailUrl", "cover_url", "enhanced_thumbnail_url"} {
			if s := httpURL(scope[key]); s != "" {
				return s
			}
		}
	}
	return ""
}
