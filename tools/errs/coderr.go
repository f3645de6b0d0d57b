package errs

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CodeError is the error currency of the service layer: a stable code plus a
// human message, with optional detail accumulated while the error travels up.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: e.Detail}
}

// WithDetail returns a copy carrying extra detail; the receiver is unchanged
// so the predeclared sentinels stay clean.
func (e *CodeError) WithDetail(detail string) *CodeError {
	c := e.clone()
	if c.Detail == "" {
		c.Detail = detail
	} else {
		c.Detail += ", " + detail
	}
	return c
}

// Wrap attaches a stack so the origin shows up in logs.
func (e *CodeError) Wrap() error {
	return errors.WithStack(e.clone())
}

// WrapMsg is Wrap plus detail in one call.
func (e *CodeError) WrapMsg(msg string) error {
	return errors.WithStack(e.WithDetail(msg))
}

// Is reports whether err carries the same code, regardless of detail or
// wrapping depth. Usable both directly and through errors.Is.
func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !stderrors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// Code extracts the service code from err, or ServerInternalError when err
// carries none.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var ce *CodeError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ServerInternalError
}

// Wrap annotates any error with a stack; nil in, nil out.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

// WrapMsg annotates err with a message and a stack; nil in, nil out.
func WrapMsg(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.WithMessage(errors.WithStack(err), msg)
}
