package bulletml

import (
	"errors"
	"fmt"
)

// ErrUnresolvedReference indicates a *Ref element named a label with no
// matching definition anywhere in the document.
var ErrUnresolvedReference = errors.New("bulletml: reference to undefined label")

// ErrMissingChild indicates a required child element was absent.
var ErrMissingChild = errors.New("bulletml: required child element missing")

// ErrBothOrNeither indicates two mutually exclusive children (e.g. <bullet>
// and <bulletRef>) were either both present or both absent.
var ErrBothOrNeither = errors.New("bulletml: exactly one of two mutually exclusive children is required")

// node is implemented by every element in the parsed document tree, letting
// errors describe the path from the document root down to the offending
// element (e.g. "<bulletml> => <action> => <fire> => <bullet>").
type node interface {
	xmlName() string
	parent() node
}

func nodePath(n node) string {
	path := fmt.Sprintf("<%s>", n.xmlName())
	for p := n.parent(); p != nil; p = p.parent() {
		path = fmt.Sprintf("<%s> => %s", p.xmlName(), path)
	}
	return path
}

// ParseError is raised while decoding or resolving a BulletML document:
// malformed XML, a missing required child, an invalid attribute value, or
// an unresolved *Ref label.
type ParseError struct {
	Err  error
	Node node
}

func newParseError(err error, n node) *ParseError {
	return &ParseError{Err: err, Node: n}
}

func newParseErrorf(n node, format string, args ...any) *ParseError {
	return newParseError(fmt.Errorf(format, args...), n)
}

func (e *ParseError) Error() string {
	if e.Node == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (in %s)", e.Err.Error(), nodePath(e.Node))
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExprError is raised compiling or evaluating one of BulletML's small
// numeric expressions: a syntax error, a reference to an unknown
// identifier, an unsupported operator or function, or (at evaluation time)
// a $N parameter index past the end of the supplied parameter vector.
type ExprError struct {
	Err  error
	Expr string
	Node node
}

func newExprError(err error, expr string, n node) *ExprError {
	return &ExprError{Err: err, Expr: expr, Node: n}
}

func newExprErrorf(expr string, n node, format string, args ...any) *ExprError {
	return newExprError(fmt.Errorf(format, args...), expr, n)
}

func (e *ExprError) Error() string {
	msg := fmt.Sprintf("%s: %q", e.Err.Error(), e.Expr)
	if e.Node == nil {
		return msg
	}
	return fmt.Sprintf("%s (in %s)", msg, nodePath(e.Node))
}

func (e *ExprError) Unwrap() error {
	return e.Err
}
