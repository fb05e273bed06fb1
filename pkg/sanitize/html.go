// Package sanitize cleans inbound HTML bodies for display, keeping the inline styling email
// clients rely on.
package sanitize

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	// Style attributes have already been filtered by sanitizeStyle.
	anyStyle = regexp.MustCompile(".*")

	policy = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("center", "font")
	p.AllowAttrs("style").Matching(anyStyle).Globally()
	p.AllowAttrs("color", "face", "size").OnElements("font")
	p.AllowAttrs("align", "bgcolor", "border", "cellpadding", "cellspacing", "valign", "width").
		OnElements("table", "tr", "td", "th")
	// Inline images reference the message images by Content-ID.
	p.AllowURLSchemes("cid")
	return p
}

// HTML sanitizes an email body, filtering inline CSS property by property.
func HTML(input string) (string, error) {
	b := &bytes.Buffer{}
	if err := filterStyleAttrs(b, strings.NewReader(input)); err != nil {
		return "", err
	}
	return policy.Sanitize(b.String()), nil
}

// filterStyleAttrs copies the token stream from r to w, rewriting every style attribute
// through sanitizeStyle. Empty style attributes are dropped.
func filterStyleAttrs(w io.Writer, r io.Reader) error {
	bw := bufio.NewWriter(w)
	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return err
			}
			return bw.Flush()
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			if _, err := bw.Write(z.Raw()); err != nil {
				return err
			}
			continue
		}
		name, hasAttr := z.TagName()
		if !hasAttr {
			if _, err := bw.Write(z.Raw()); err != nil {
				return err
			}
			continue
		}
		if err := writeTag(bw, z, name, tt == html.SelfClosingTagToken); err != nil {
			return err
		}
	}
}

func writeTag(bw *bufio.Writer, z *html.Tokenizer, name []byte, selfClosing bool) error {
	tag := make([]byte, 0, 256)
	tag = append(tag, '<')
	tag = append(tag, name...)
	for more := true; more; {
		var key, val []byte
		key, val, more = z.TagAttr()
		value := string(val)
		if strings.EqualFold(string(key), "style") {
			value = sanitizeStyle(value)
			if value == "" {
				continue
			}
		}
		tag = append(tag, ' ')
		tag = append(tag, key...)
		tag = append(tag, `="`...)
		tag = append(tag, html.EscapeString(value)...)
		tag = append(tag, '"')
	}
	if selfClosing {
		tag = append(tag, '/')
	}
	tag = append(tag, '>')
	_, err := bw.Write(tag)
	return err
}
