package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    string `json:"profile_id" validate:"required"`
	Count int    `json:"count" validate:"min=1"`
	Inner *inner `json:"inner" validate:"required"`
}

type inner struct {
	Name string `json:"name" validate:"required"`
}

func TestStruct_OK(t *testing.T) {
	require.NoError(t, Struct(&sample{ID: "p1", Count: 2, Inner: &inner{Name: "x"}}))
}

func TestStruct_ReportsJSONNames(t *testing.T) {
	err := Struct(&sample{Inner: &inner{}})
	require.Error(t, err)

	var verrs Errors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 3)
	require.Equal(t, "sample.profile_id", verrs[0].Field)
	require.Equal(t, "required", verrs[0].Tag)
	require.Equal(t, "min", verrs[1].Tag)
	require.Equal(t, "1", verrs[1].Param)
	require.Equal(t, "sample.inner.name", verrs[2].Field)
	require.Contains(t, err.Error(), "profile_id failed required")
}

func TestStruct_NilPointer(t *testing.T) {
	err := Struct(&sample{ID: "p1", Count: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "inner failed required")
}
