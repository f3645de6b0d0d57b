package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrPanic converts a recovered panic value into a stack-carrying CodeError.
func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return errors.WithStack(&CodeError{
		Code:   ServerInternalError,
		Msg:    "panic error",
		Detail: fmt.Sprint(r),
	})
}
