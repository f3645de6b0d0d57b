package errs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeErrorIsSurvivesWrapping(t *testing.T) {
	err := ErrNotFound.WrapMsg("conversation c1")
	require.Error(t, err)
	assert.True(t, ErrNotFound.Is(err))
	assert.False(t, ErrArgs.Is(err))

	wrapped := errors.Wrap(err, "outer layer")
	assert.True(t, ErrNotFound.Is(wrapped))
	assert.Equal(t, RecordNotFound, Code(wrapped))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, 0, Code(nil))
	assert.Equal(t, ServerInternalError, Code(errors.New("boom")))
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	detailed := ErrArgs.WithDetail("missing field to")
	assert.NotEqual(t, detailed.Error(), ErrArgs.Error())
	assert.True(t, ErrArgs.Is(detailed.Wrap()))
}
