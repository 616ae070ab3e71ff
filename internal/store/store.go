// Package store defines the read contract over an exported record set
// and its disk implementation. The remote client satisfies the same
// contract, so every derived view runs against either.
package store

import (
	"context"
	"errors"

	"github.com/politpatrick/icf-api/internal/record"
)

// ErrNotFound reports a caller-supplied code with no index entry. It is
// distinct from a structural gap (an indexed record that cannot be
// read), which surfaces as an ordinary error.
var ErrNotFound = errors.New("code not found")

// Source is a read-only view of one export: the code→path index plus
// record retrieval by code or by indexed path.
type Source interface {
	Index(ctx context.Context) (map[string]string, error)
	Get(ctx context.Context, code string) (*record.Record, error)
	GetPath(ctx context.Context, relPath string) (*record.Record, error)
}
