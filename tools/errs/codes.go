package errs

// Service error codes. The 1xxx range is generic, the 2xxx range belongs to
// the realtime/conversation core.
const (
	ServerInternalError = 500

	ArgsError        = 1001
	TokenInvalid     = 1002
	TokenExpired     = 1003
	PermissionDenied = 1004

	RecordNotFound     = 2001
	RecordAlreadyExist = 2002
	NotAMember         = 2003
	TargetUnreachable  = 2004
	StoreTransient     = 2005
)

var (
	ErrInternal = NewCodeError(ServerInternalError, "server internal error")

	ErrArgs             = NewCodeError(ArgsError, "invalid argument")
	ErrTokenInvalid     = NewCodeError(TokenInvalid, "token invalid")
	ErrTokenExpired     = NewCodeError(TokenExpired, "token expired")
	ErrPermissionDenied = NewCodeError(PermissionDenied, "permission denied")

	// ErrNotFound covers conversations, messages and notifications that do
	// not exist or were deleted.
	ErrNotFound = NewCodeError(RecordNotFound, "record not found")

	// ErrAlreadyExists signals a lost create race; callers treat it as
	// success-with-redirect to the surviving record.
	ErrAlreadyExists = NewCodeError(RecordAlreadyExist, "record already exists")

	// ErrNotAMember is returned when the actor is not part of the
	// conversation being operated on.
	ErrNotAMember = NewCodeError(NotAMember, "not a member of this conversation")

	// ErrStoreTransient wraps timeouts and connection drops from the
	// document store; idempotent operations retry once on it.
	ErrStoreTransient = NewCodeError(StoreTransient, "transient store error")
)
