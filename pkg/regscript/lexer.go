package regscript

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// ScriptLexer defines the lexical structure of register scripts.
// Statements are whitespace separated; "#" starts a comment.
var ScriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	// Numbers
	{Name: "Hex", Pattern: `0[xX][0-9A-Fa-f_]+`},
	{Name: "Int", Pattern: `[0-9][0-9_]*`},

	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Pipe", Pattern: `\|`},
})
