// Package regscript parses and runs small register scripts: sized reads
// and writes, masked polls and sleeps against target memory.
package regscript

import (
	"fmt"
	"io"

	"github.com/alecthomas/participle/v2"
)

// Parser parses register scripts
type Parser struct {
	parser *participle.Parser[Script]
}

// NewParser creates a new register script parser
func NewParser() (*Parser, error) {
	parser, err := participle.Build[Script](
		participle.Lexer(ScriptLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}

	return &Parser{parser: parser}, nil
}

// ParseString parses a script from a string
func (p *Parser) ParseString(input string) (*Script, error) {
	script, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return script, nil
}

// Parse parses a script from a reader; name is used in error positions
func (p *Parser) Parse(name string, r io.Reader) (*Script, error) {
	script, err := p.parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return script, nil
}
