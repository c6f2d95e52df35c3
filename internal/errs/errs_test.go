package errs_test

import (
	"testing"

	"github.com/medusa-ds9/medusad/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestWrapAndPredicates(t *testing.T) {
	cause := errs.New(errs.Parse, "bad header")
	err := errs.Wrap(errs.Communication, cause, "reading evtype")

	require.True(t, errs.IsCommunication(err))
	require.False(t, errs.IsParse(err))
	require.Contains(t, err.Error(), "bad header")
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, errs.Wrap(errs.IO, nil, "no-op"))
}
