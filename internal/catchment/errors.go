package catchment

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrQueryFailure marks a failed spatial query. The invocation that hit it
// produces no result.
var ErrQueryFailure = eris.New("catchment: spatial query failed")

// Layer names used in errors, logs and spans.
const (
	LayerBlockGroups = "block_groups"
	LayerIncome      = "income"
	LayerEducation   = "education"
)

// QueryError records which layer failed.
type QueryError struct {
	Layer string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("catchment: query %s: %v", e.Layer, e.Err)
}

// Is matches ErrQueryFailure.
func (e *QueryError) Is(target error) bool {
	return target == ErrQueryFailure
}

func (e *QueryError) Unwrap() error { return e.Err }

func queryFailure(layer string, err error) error {
	return &QueryError{Layer: layer, Err: err}
}
