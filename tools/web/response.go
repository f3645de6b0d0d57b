package web

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"connectify/tools/errs"
)

// OK renders the standard success envelope; extra fields merge into it.
func OK(c *gin.Context, status int, kv gin.H) {
	body := gin.H{"isSuccess": true}
	for k, v := range kv {
		body[k] = v
	}
	c.JSON(status, body)
}

// Fail maps a service error onto an HTTP status plus the standard error
// envelope.
func Fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errs.Code(err) {
	case errs.ArgsError:
		status = http.StatusBadRequest
	case errs.TokenInvalid, errs.TokenExpired:
		status = http.StatusUnauthorized
	case errs.PermissionDenied, errs.NotAMember:
		status = http.StatusForbidden
	case errs.RecordNotFound:
		status = http.StatusNotFound
	case errs.RecordAlreadyExist:
		status = http.StatusConflict
	}
	msg := err.Error()
	var ce *errs.CodeError
	if stderrors.As(err, &ce) {
		msg = ce.Msg
		if ce.Detail != "" {
			msg = ce.Msg + ": " + ce.Detail
		}
	}
	c.JSON(status, gin.H{"isSuccess": false, "error": msg})
}
