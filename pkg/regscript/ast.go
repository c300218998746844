package regscript

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Script is a parsed register script
type Script struct {
	Statements []*Statement `@@*`
}

// Statement is one script command
type Statement struct {
	Pos lexer.Position

	Read  *Read  `  @@`
	Write *Write `| @@`
	Poll  *Poll  `| @@`
	Sleep *Sleep `| @@`
}

// Read reads a register and reports its value
// Example: read32 FMC_OBSTAT
type Read struct {
	Op   string `@( "read8" | "read16" | "read32" )`
	Addr *Expr  `@@`
}

// Write stores a value
// Example: write32 FMC_CTL CTL_OBER|CTL_OBWEN
type Write struct {
	Op    string `@( "write8" | "write16" | "write32" )`
	Addr  *Expr  `@@`
	Value *Expr  `@@`
}

// Poll reads a word until (word & mask) == value or the timeout elapses
// Example: poll FMC_STAT STAT_BUSY 0 10000ms
type Poll struct {
	Addr    *Expr `"poll" @@`
	Mask    *Expr `@@`
	Value   *Expr `@@`
	Timeout *Expr `@@ "ms"?`
}

// Sleep pauses the script
// Example: sleep 100ms
type Sleep struct {
	Duration *Expr `"sleep" @@ "ms"?`
}

// Expr is one or more operands combined with bitwise OR
type Expr struct {
	Terms []*Operand `@@ ( Pipe @@ )*`
}

// Operand is a number or a symbol name
type Operand struct {
	Pos lexer.Position

	Number *Number `  @( Hex | Int )`
	Symbol string  `| @Ident`
}

// Number is an unsigned 32-bit literal, decimal or 0x hex, with optional
// "_" digit separators
type Number uint32

// Capture implements participle.Capture
func (n *Number) Capture(values []string) error {
	v, err := strconv.ParseUint(strings.ReplaceAll(values[0], "_", ""), 0, 32)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", values[0], err)
	}
	*n = Number(v)
	return nil
}

// Width returns the access width in bits named by a read or write op.
func Width(op string) int {
	switch {
	case strings.HasSuffix(op, "8"):
		return 8
	case strings.HasSuffix(op, "16"):
		return 16
	}
	return 32
}
