package sparql

import "strings"

var (
	uriEscaper    = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `<`, `\<`, `>`, `\>`)
	stringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// EscapeURI renders v as an IRI reference.
func EscapeURI(v string) string { return "<" + uriEscaper.Replace(v) + ">" }

// EscapeString renders v as a long string literal.
func EscapeString(v string) string { return `"""` + stringEscaper.Replace(v) + `"""` }
