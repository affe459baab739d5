package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
)

func TestNegotiateFormat(t *testing.T) {
	only := func(ok ...string) func(string) bool {
		return func(c string) bool {
			for _, s := range ok {
				if s == c {
					return true
				}
			}
			return false
		}
	}

	got, err := NegotiateFormat(testFormats, only(testFormats...))
	require.NoError(t, err)
	assert.Equal(t, testFormats[0], got)

	got, err = NegotiateFormat(testFormats, only(testFormats[2]))
	require.NoError(t, err)
	assert.Equal(t, testFormats[2], got)

	_, err = NegotiateFormat(testFormats, only())
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeUnsupportedFormat, appErr.Code)
	assert.Contains(t, appErr.Metadata["candidates"], "codecs=vp8")

	_, err = NegotiateFormat(nil, only(testFormats...))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedFormat))
}
