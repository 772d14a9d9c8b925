package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPQError_PassesThroughNonPQErrors(t *testing.T) {
	cases := []error{
		context.Canceled,
		fmt.Errorf("driver: bad connection"),
	}
	for _, in := range cases {
		out := MapPQError(in)
		require.Error(t, out)
		assert.Same(t, in, out)

		var appErr *errors.AppError
		assert.False(t, errors.As(out, &appErr))
	}
}

func TestMapPQError_PassesThroughUnmappedCodes(t *testing.T) {
	// serialization_failure has no domain meaning, callers may retry on it
	in := &pq.Error{Code: "40001", Message: "could not serialize access"}
	out := MapPQError(in)
	require.Error(t, out)
	assert.Same(t, error(in), out)
}

func TestMapPQError_DuplicateOrderNumber(t *testing.T) {
	in := &pq.Error{
		Code:       "23505",
		Constraint: "orders_order_number_key",
		Detail:     "Key (order_number)=(EC-1) already exists.",
	}
	out := MapPQError(in)
	assert.ErrorIs(t, out, errors.ErrDuplicateNumber)

	var appErr *errors.AppError
	require.True(t, errors.As(out, &appErr))
	assert.Equal(t, "order number EC-1 already exists", appErr.Message)
	assert.Equal(t, "EC-1", appErr.Params["number"])
}

func TestMapPQError_CheckConstraints(t *testing.T) {
	out := MapPQError(&pq.Error{Code: "23514", Constraint: "items_qty_positive"})

	var appErr *errors.AppError
	require.True(t, errors.As(out, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}
