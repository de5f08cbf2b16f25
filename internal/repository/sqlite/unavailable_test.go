package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cannot open", sqlite3.Error{Code: sqlite3.ErrCantOpen}, true},
		{"io error", fmt.Errorf("failed to update loan: %w", sqlite3.Error{Code: sqlite3.ErrIoErr}), true},
		{"conn done", sql.ErrConnDone, true},
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, false},
		{"constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"deadline", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUnavailable(tt.err))
		})
	}
}
