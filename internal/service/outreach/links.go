package outreach

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

// hrefRe matches the href attribute of anchor tags.
var hrefRe = regexp.MustCompile(`(?i)(href=")([^"]+)(")`)

// anchorRe captures anchor text and target for plain-text derivation.
var anchorRe = regexp.MustCompile(`(?is)<a\s[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)

// tagRe strips any remaining markup.
var tagRe = regexp.MustCompile(`(?s)<[^>]*>`)

// AppendUTM appends attribution parameters to a URL:
// utm_source=email, utm_medium=outreach (or automation), utm_campaign=<slug>.
// Non-HTTP schemes (mailto:, tel:) and URLs that already carry attribution
// are returned unchanged, as are unparseable inputs.
func AppendUTM(rawURL, campaignName string, automation bool) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return rawURL
	}
	if strings.Contains(u.RawQuery, "utm_") {
		return rawURL
	}

	medium := "outreach"
	if automation {
		medium = "automation"
	}

	q := u.Query()
	q.Set("utm_source", "email")
	q.Set("utm_medium", medium)
	q.Set("utm_campaign", slugify(campaignName))
	u.RawQuery = q.Encode()
	return u.String()
}

// RewriteLinks appends UTM attribution to every anchor link in the HTML body.
func RewriteLinks(htmlBody, campaignName string, automation bool) string {
	return hrefRe.ReplaceAllStringFunc(htmlBody, func(match string) string {
		parts := hrefRe.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		return parts[1] + AppendUTM(parts[2], campaignName, automation) + parts[3]
	})
}

// slugify lowercases a campaign name and collapses non-alphanumerics to
// underscores so it survives as a query parameter value.
func slugify(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// DecodeDoubleEncoded undoes one level of entity encoding when a body arrives
// double-encoded from the store (e.g. "&amp;amp;" or "&amp;lt;p&amp;gt;").
// Singly-encoded bodies with no nested entities pass through unchanged.
func DecodeDoubleEncoded(s string) string {
	if strings.Contains(s, "&amp;") || strings.Contains(s, "&#38;") {
		return html.UnescapeString(s)
	}
	return s
}

// PlainText derives a text/plain body from HTML: anchors become
// "text (url)", block boundaries become newlines, all other markup is
// stripped, and residual entities are decoded.
func PlainText(htmlBody string) string {
	s := anchorRe.ReplaceAllString(htmlBody, "$2 ($1)")

	for _, br := range []string{"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>", "</h1>", "</h2>", "</h3>"} {
		s = strings.ReplaceAll(s, br, "\n")
	}
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	// Collapse runs of blank lines left behind by stripped markup
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, trimmed)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Envelope wraps a rendered body and resolved signature in the minimal HTML
// shell used for every outreach email.
func Envelope(body, signature string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family:Arial,Helvetica,sans-serif;font-size:14px;color:#1f2933;line-height:1.5;">`)
	b.WriteString(body)
	if signature != "" {
		b.WriteString(`<br><br><div class="signature">`)
		b.WriteString(signature)
		b.WriteString(`</div>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}
