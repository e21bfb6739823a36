package email

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"reddit-live/pkg/notifier"
)

const pageStyle = "body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background: #fff; }\n" +
	".update { margin-bottom: 30px; padding-bottom: 30px; border-bottom: 2px solid #ff4500; }\n" +
	".meta { margin-bottom: 12px; }\n" +
	".update-link { color: #7f8c8d; font-weight: 500; text-decoration: none; }\n" +
	".author { color: #ff4500; font-weight: 600; font-size: 1.1em; }\n" +
	".timestamp { color: #7f8c8d; font-size: 0.9em; }\n" +
	".stricken { color: #7f8c8d; font-size: 0.9em; font-style: italic; }\n" +
	".content { margin: 15px 0; }\n" +
	".content img { max-width: 100%; height: auto; margin: 10px 0; display: block; }\n" +
	".content blockquote { border-left: 3px solid #ddd; padding-left: 15px; margin: 10px 0; color: #666; }\n" +
	".footer { margin-top: 30px; padding-top: 15px; font-size: 0.9em; color: #7f8c8d; }\n" +
	".footer.with-border { border-top: 1px solid #ddd; }\n" +
	".footer a { color: #7f8c8d; text-decoration: underline; margin: 0 8px; }\n" +
	"a { color: #ff4500; text-decoration: none; }\n" +
	"@media (prefers-color-scheme: dark) {\n" +
	"body { background: #1a1a1a; color: #e0e0e0; }\n" +
	".author { color: #ff8c42; }\n" +
	".timestamp, .stricken, .update-link, .footer, .footer a { color: #a0a0a0; }\n" +
	".content blockquote { border-left-color: #444; color: #b0b0b0; }\n" +
	".footer.with-border { border-top-color: #444; }\n" +
	"a { color: #ff8c42; }\n" +
	"}\n"

func writeHead(b *strings.Builder, extraStyle string) {
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<style>\n")
	b.WriteString(pageStyle)
	b.WriteString(extraStyle)
	b.WriteString("</style>\n</head>\n<body>\n")
}

// updateStyle returns the inline style for the update at index i of n.
// Clients that drop <style> blocks still render the first and last updates
// without stray padding and borders.
func updateStyle(i, n int) string {
	var parts []string
	if i == 0 {
		parts = append(parts, "padding-top: 0;")
	}
	if i == n-1 {
		parts = append(parts, "border-bottom: none; padding-bottom: 0;")
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf(" style=%q", strings.Join(parts, " "))
}

func (s *Sender) manageURL(sub *notifier.Subscription) string {
	return fmt.Sprintf("%s/manage?token=%s", s.baseURL, url.QueryEscape(sub.Token))
}

func (s *Sender) formatNotificationBody(sub *notifier.Subscription, watch *notifier.Watch, updates []*notifier.Update) string {
	var b strings.Builder
	writeHead(&b, "")

	// Inbox preview text.
	if text := preheader(updates); text != "" {
		b.WriteString(fmt.Sprintf("<div style=\"display: none; max-height: 0; overflow: hidden;\">%s</div>\n", escapeHTML(text)))
	}

	for i, u := range updates {
		b.WriteString(fmt.Sprintf("<div class=\"update\"%s>\n", updateStyle(i, len(updates))))
		b.WriteString("<div class=\"meta\">\n")
		if u.URL != "" {
			b.WriteString(fmt.Sprintf("<a href=\"%s\" class=\"update-link\">#</a>\n", escapeHTML(u.URL)))
		}
		author := u.Author
		if author == "" {
			author = "[deleted]"
		}
		b.WriteString(fmt.Sprintf("<span class=\"author\">u/%s</span>\n", escapeHTML(author)))
		if !u.Created.IsZero() {
			b.WriteString(fmt.Sprintf("<span class=\"timestamp\"> &bull; %s UTC</span>\n", u.Created.UTC().Format("Jan 2, 2006 at 3:04 PM")))
		}
		if u.Stricken {
			b.WriteString("<span class=\"stricken\"> &bull; stricken</span>\n")
		}
		b.WriteString("</div>\n")

		b.WriteString("<div class=\"content\">\n")
		if u.Stricken {
			b.WriteString("<del>")
		}
		// Update HTML is written by thread contributors and is untrusted.
		if u.BodyHTML != "" {
			b.WriteString(sanitizeHTML(u.BodyHTML))
		} else {
			b.WriteString(strings.ReplaceAll(escapeHTML(u.Body), "\n", "<br>\n"))
		}
		if u.Stricken {
			b.WriteString("</del>")
		}
		b.WriteString("\n</div>\n")
		b.WriteString("</div>\n")
	}

	// The orange separators already divide multiple updates.
	footerClass := "footer"
	if len(updates) > 1 {
		footerClass = "footer with-border"
	}
	b.WriteString(fmt.Sprintf("<div class=\"%s\">\n", footerClass))
	b.WriteString(fmt.Sprintf("<a href=\"%s\">View thread</a>\n", escapeHTML(watch.ThreadURL)))
	b.WriteString(fmt.Sprintf("<a href=\"%s\">Manage</a>\n", escapeHTML(s.manageURL(sub))))
	b.WriteString("</div>\n")

	b.WriteString("</body>\n</html>")
	return b.String()
}

func (s *Sender) formatWelcomeBody(sub *notifier.Subscription, watch *notifier.Watch, ip, userAgent string) string {
	var b strings.Builder
	writeHead(&b, ".header { border-bottom: 2px solid #ff4500; padding-bottom: 10px; margin-bottom: 20px; }\n"+
		".info { color: #7f8c8d; font-size: 0.9em; margin: 15px 0; }\n")

	b.WriteString("<div class=\"header\">\n")
	b.WriteString("<h2>Live Thread Subscription Confirmed</h2>\n")
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"content\">\n")
	b.WriteString(fmt.Sprintf("<p>You've subscribed to updates for the live thread: <strong>%s</strong></p>\n", escapeHTML(watch.Title)))
	b.WriteString("<p>You'll receive an email whenever new updates are posted.</p>\n")
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"info\">\n")
	b.WriteString("<p><strong>Subscription Details:</strong></p>\n")
	b.WriteString("<ul>\n")
	b.WriteString(fmt.Sprintf("<li>IP Address: %s</li>\n", escapeHTML(ip)))
	b.WriteString(fmt.Sprintf("<li>Browser: %s</li>\n", escapeHTML(userAgent)))
	b.WriteString("</ul>\n")
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"footer with-border\">\n")
	b.WriteString(fmt.Sprintf("<a href=\"%s\">View thread</a>\n", escapeHTML(watch.ThreadURL)))
	b.WriteString(fmt.Sprintf("<a href=\"%s\">Manage</a>\n", escapeHTML(s.manageURL(sub))))
	b.WriteString("</div>\n")

	b.WriteString("</body>\n</html>")
	return b.String()
}

const preheaderLen = 120

// preheader summarizes the newest update for inbox previews.
func preheader(updates []*notifier.Update) string {
	if len(updates) == 0 {
		return ""
	}
	newest := updates[len(updates)-1]
	text := strings.Join(strings.Fields(newest.Body), " ")
	if newest.BodyHTML != "" {
		text = plainText(newest.BodyHTML)
	}
	if r := []rune(text); len(r) > preheaderLen {
		text = string(r[:preheaderLen-1]) + "…"
	}
	return text
}

// plainText returns the visible text of an HTML fragment with whitespace
// collapsed.
func plainText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template, title").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}

var allowedTags = map[string]bool{
	"p": true, "br": true, "hr": true,
	"b": true, "strong": true, "i": true, "em": true, "u": true, "s": true, "del": true,
	"blockquote": true, "code": true, "pre": true,
	"img": true, "a": true,
	"ul": true, "ol": true, "li": true,
	"div": true, "span": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "thead": true, "tbody": true, "tr": true, "th": true, "td": true,
}

var voidTags = map[string]bool{"br": true, "hr": true, "img": true}

// sanitizeHTML reduces untrusted HTML to a whitelist of tags. Only src and
// alt survive on images and href on links, and only with safe URLs. Embedded
// media is replaced by a visible placeholder; other unknown tags are
// unwrapped so their text remains.
func sanitizeHTML(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return escapeHTML(raw)
	}

	doc.Find("script, style, noscript, template, title").Remove()
	doc.Find("iframe").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if src != "" && isSafeURL(src) {
			sel.ReplaceWithHtml(fmt.Sprintf("[iframe: <a href=\"%s\">%s</a>]", escapeHTML(src), escapeHTML(src)))
			return
		}
		sel.ReplaceWithHtml("[replaced iframe]")
	})
	doc.Find("video, audio, embed, object").Each(func(_ int, sel *goquery.Selection) {
		sel.ReplaceWithHtml("[replaced " + goquery.NodeName(sel) + "]")
	})

	var b strings.Builder
	doc.Find("body").Contents().Each(func(_ int, sel *goquery.Selection) {
		writeNode(&b, sel.Get(0))
	})
	return b.String()
}

func writeNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(escapeHTML(n.Data))
		return
	case html.ElementNode:
	default:
		return
	}

	tag := n.Data
	if !allowedTags[tag] {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(b, c)
		}
		return
	}

	b.WriteString("<" + tag)
	switch tag {
	case "img":
		if src := attr(n, "src"); src != "" && isSafeURL(src) {
			b.WriteString(` src="` + escapeHTML(src) + `"`)
		}
		if alt := attr(n, "alt"); alt != "" {
			b.WriteString(` alt="` + escapeHTML(alt) + `"`)
		}
	case "a":
		if href := attr(n, "href"); href != "" && isSafeURL(href) {
			b.WriteString(` href="` + escapeHTML(href) + `"`)
		}
	}
	b.WriteString(">")

	if voidTags[tag] {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNode(b, c)
	}
	b.WriteString("</" + tag + ">")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// isSafeURL validates that a URL is safe for use in emails.
// Only allows http, https, and relative URLs. Blocks javascript:, data:, etc.
func isSafeURL(urlStr string) bool {
	urlStr = strings.TrimSpace(strings.ToLower(urlStr))

	for _, protocol := range []string{"javascript:", "data:", "vbscript:", "file:", "about:"} {
		if strings.HasPrefix(urlStr, protocol) {
			return false
		}
	}

	return strings.HasPrefix(urlStr, "http://") ||
		strings.HasPrefix(urlStr, "https://") ||
		strings.HasPrefix(urlStr, "/") ||
		strings.HasPrefix(urlStr, "./") ||
		strings.HasPrefix(urlStr, "../") ||
		(!strings.Contains(urlStr, ":") && len(urlStr) > 0)
}
