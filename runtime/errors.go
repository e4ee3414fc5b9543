package runtime

import (
	"fmt"
	"io"

	"github.com/dynvm-project/dynvm/value"
)

// CompileError is an IR-generation-time error tied to an AST node id
// (§7's "compile-time error: malformed IR or an uninitialized variable
// read"). Shaped after the teacher's plan/pir.CompileError: a message plus
// optional position context and a WriteTo for plain-text rendering.
type CompileError struct {
	Node AstID
	Err  string
}

func (c *CompileError) Error() string { return c.Err }

// WriteTo writes a plaintext rendering of the error, including the AST
// node it was raised against when known.
func (c *CompileError) WriteTo(dst io.Writer) (int64, error) {
	if c.Node == InvalidAstID {
		n, err := fmt.Fprintf(dst, "%s\n", c.Err)
		return int64(n), err
	}
	n, err := fmt.Fprintf(dst, "at node %d: %s\n", c.Node, c.Err)
	return int64(n), err
}

// AstID mirrors the 32-bit AST node id the builder consumes (§6, "AST
// input"); the runtime package only needs it to tag errors, never to walk
// the tree itself.
type AstID int32

const InvalidAstID AstID = -1

// RuntimeError is a VM-level failure raised while executing bytecode: a
// non-numeric or non-callable operand, division by zero, a bad call. The
// interpreter converts every RuntimeError it meets into an Exception with
// the same text (interp.toException), so handler tables and CallGuarded
// catch it like any other exception; there is no uncatchable error path.
type RuntimeError struct {
	Op  string
	Err string
}

func (r *RuntimeError) Error() string { return fmt.Sprintf("%s: %s", r.Op, r.Err) }

// Exception is a catchable user-visible panic (§7: "raised by
// std.panic(value), wrapped in an Exception with a message string").
// Secondary holds exceptions raised by defer handlers while this one was
// already unwinding (§7's "secondary list").
type Exception struct {
	Message   string
	Value     value.Value
	Secondary []*Exception
}

func (e *Exception) Error() string { return e.Message }

// AddSecondary attaches sec to e's secondary-exception chain, in the order
// handlers raised them.
func (e *Exception) AddSecondary(sec *Exception) {
	e.Secondary = append(e.Secondary, sec)
}

// AssertionError is an Exception raised by a failed assert, identifying
// the failing expression's source text and an optional user message
// (§7's "Assertion failures").
func AssertionError(exprText, userMsg string) *Exception {
	msg := fmt.Sprintf("assertion failed: %s", exprText)
	if userMsg != "" {
		msg = fmt.Sprintf("%s (%s)", msg, userMsg)
	}
	return &Exception{Message: msg}
}
