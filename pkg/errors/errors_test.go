package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/racebase/harvester/pkg/errors"
)

func TestFetchErrorIsTransient(t *testing.T) {
	err := errors.NewFetchError("https://example.org/calendar", 503, nil)
	assert.True(t, errors.IsTransient(err))
	assert.False(t, errors.IsCatalogUnavailable(err))
	assert.Contains(t, err.Error(), "503")
}

func TestCatalogErrorIsFatal(t *testing.T) {
	inner := errors.New("connection refused")
	err := errors.WrapCatalog("candidates", "edition:42", inner)
	assert.True(t, errors.IsCatalogUnavailable(err))
	assert.ErrorIs(t, err, inner)

	var catErr *errors.CatalogError
	assert.True(t, errors.As(err, &catErr))
	assert.Equal(t, "candidates", catErr.Operation)
}

func TestWrapHelpersPassNil(t *testing.T) {
	assert.NoError(t, errors.WrapFetch("u", nil))
	assert.NoError(t, errors.WrapCatalog("op", "t", nil))
	assert.NoError(t, errors.WrapIO("read", "p", nil))
}

func TestWrappedChains(t *testing.T) {
	base := errors.New("timeout")
	err := fmt.Errorf("listing region ARA: %w", errors.WrapFetch("https://example.org", base))
	assert.True(t, errors.IsTransient(err))
	assert.ErrorIs(t, err, base)
}

func TestParseError(t *testing.T) {
	err := errors.NewParseError("distance", "dix km", "not a number")
	assert.Contains(t, err.Error(), "distance")
	assert.Contains(t, err.Error(), "dix km")
}
