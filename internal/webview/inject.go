package webview

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/mmr-tortoise/clovis-desktop/internal/port"
	"golang.org/x/net/html"
)

// GlobalName is the window property the frontend reads the base URL from.
const GlobalName = "__CLOVIS_API_BASE__"

// Window is anything that can evaluate a script in a loaded page.
type Window interface {
	Eval(script string) error
}

// BaseURL returns the backend's base URL for port.
func BaseURL(p int) string {
	return fmt.Sprintf("http://%s:%d", port.LoopbackHost, p)
}

// BootstrapScript returns the statement that publishes baseURL to the page.
// The value is emitted as a single-quoted string literal, escaped so that
// the statement stays a valid assignment for any input and cannot close an
// enclosing <script> element.
func BootstrapScript(baseURL string) string {
	return "window." + GlobalName + " = " + quoteJS(baseURL) + ";"
}

// PageLoadHook returns the page-load callback for baseURL. Eval errors are
// discarded: a page that failed to load will load again and get another
// injection.
func PageLoadHook(baseURL string) func(Window) {
	script := BootstrapScript(baseURL)
	return func(w Window) {
		_ = w.Eval(script)
	}
}

// quoteJS renders s as a single-quoted JavaScript string literal.
func quoteJS(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		case '<':
			b.WriteString(`\x3C`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02X`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// InjectHTML inserts one <script> element per script at the start of the
// document's <head>. Without a <head>, the elements go in front of the first
// element other than <html>; in a document with no elements at all they
// are appended.
func InjectHTML(doc []byte, scripts ...string) ([]byte, error) {
	if len(scripts) == 0 {
		return doc, nil
	}

	var tags bytes.Buffer
	for _, s := range scripts {
		tags.WriteString("<script>")
		tags.WriteString(s)
		tags.WriteString("</script>")
	}

	var out bytes.Buffer
	out.Grow(len(doc) + tags.Len())

	z := html.NewTokenizer(bytes.NewReader(doc))
	injected := false
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("failed to tokenize page: %w", err)
			}
			break
		}

		// Raw is only valid until the next tokenizer call.
		raw := append([]byte(nil), z.Raw()...)

		if !injected && (tt == html.StartTagToken || tt == html.SelfClosingTagToken) {
			name, _ := z.TagName()
			switch string(name) {
			case "html":
			case "head":
				out.Write(raw)
				out.Write(tags.Bytes())
				injected = true
				continue
			default:
				out.Write(tags.Bytes())
				injected = true
			}
		}
		out.Write(raw)
	}

	if !injected {
		out.Write(tags.Bytes())
	}
	return out.Bytes(), nil
}
