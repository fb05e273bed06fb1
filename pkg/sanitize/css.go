package sanitize

import (
	"strings"

	"github.com/gorilla/css/scanner"
)

// allowedProperties lists the CSS properties kept in style attributes.
var allowedProperties = map[string]bool{
	"align":            true,
	"background":       true,
	"background-color": true,
	"border":           true,
	"border-bottom":    true,
	"border-collapse":  true,
	"border-color":     true,
	"border-left":      true,
	"border-radius":    true,
	"border-right":     true,
	"border-spacing":   true,
	"border-top":       true,
	"box-sizing":       true,
	"clear":            true,
	"color":            true,
	"display":          true,
	"float":            true,
	"font":             true,
	"font-family":      true,
	"font-size":        true,
	"font-style":       true,
	"font-weight":      true,
	"height":           true,
	"letter-spacing":   true,
	"line-height":      true,
	"list-style":       true,
	"margin":           true,
	"margin-bottom":    true,
	"margin-left":      true,
	"margin-right":     true,
	"margin-top":       true,
	"max-height":       true,
	"max-width":        true,
	"min-width":        true,
	"overflow":         true,
	"padding":          true,
	"padding-bottom":   true,
	"padding-left":     true,
	"padding-right":    true,
	"padding-top":      true,
	"table-layout":     true,
	"text-align":       true,
	"text-decoration":  true,
	"text-transform":   true,
	"vertical-align":   true,
	"white-space":      true,
	"width":            true,
	"word-break":       true,
}

// declState tracks where the scanner is within a declaration list.
type declState int

const (
	expectProperty declState = iota // before a property name
	copyValue                       // inside an allowed declaration
	skipValue                       // inside a rejected declaration
)

// sanitizeStyle keeps the declarations of an inline style whose property is allowed. Input the
// scanner cannot tokenize is dropped entirely.
func sanitizeStyle(input string) string {
	b := &strings.Builder{}
	scan := scanner.New(input)
	state := expectProperty
	for {
		t := scan.Next()
		switch t.Type {
		case scanner.TokenEOF:
			return b.String()
		case scanner.TokenError:
			return ""
		}
		endOfDecl := t.Type == scanner.TokenChar && t.Value == ";"
		switch state {
		case expectProperty:
			switch {
			case t.Type == scanner.TokenS:
				// Leading whitespace.
			case t.Type == scanner.TokenIdent && allowedProperties[strings.ToLower(t.Value)]:
				b.WriteString(t.Value)
				state = copyValue
			case endOfDecl:
				// Stray semicolon.
			default:
				state = skipValue
			}
		case copyValue:
			b.WriteString(t.Value)
			if endOfDecl {
				state = expectProperty
			}
		case skipValue:
			if endOfDecl {
				state = expectProperty
			}
		}
	}
}
