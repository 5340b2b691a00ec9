package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

var (
	// ErrDuplicate is returned when an insert or update violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrReferenced is returned when a row cannot change because other rows point at it,
	// or when a foreign key points at a missing row.
	ErrReferenced = errors.New("record is referenced")
)

// translatePQ maps constraint violations to package errors, keeping the
// original error in the chain.
func translatePQ(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	case "23503":
		return fmt.Errorf("%w: %s", ErrReferenced, pqErr.Constraint)
	}
	return err
}

// whereBuilder accumulates AND-ed conditions with positional arguments.
// Conditions use "?" for each argument; it is rewritten to $n.
type whereBuilder struct {
	conditions []string
	args       []interface{}
}

func (w *whereBuilder) add(expr string, args ...interface{}) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		expr = strings.Replace(expr, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conditions = append(w.conditions, expr)
}

// search matches term case-insensitively against any of the columns.
func (w *whereBuilder) search(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return
	}
	w.args = append(w.args, "%"+strings.ToLower(term)+"%")
	placeholder := fmt.Sprintf("$%d", len(w.args))
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("LOWER(%s) LIKE %s", col, placeholder)
	}
	w.conditions = append(w.conditions, "("+strings.Join(parts, " OR ")+")")
}

func (w *whereBuilder) clause() string {
	base := "WHERE 1=1"
	if len(w.conditions) > 0 {
		base += " AND " + strings.Join(w.conditions, " AND ")
	}
	return base
}

// orderClause validates the sort column against allowed and defaults the direction.
func orderClause(sortBy, sortOrder string, allowed map[string]bool, fallback, defaultOrder string) string {
	if !allowed[sortBy] {
		sortBy = fallback
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = defaultOrder
	}
	return fmt.Sprintf("ORDER BY %s %s", sortBy, order)
}

func pageClause(q models.ListQuery) string {
	n := q.Normalize()
	return fmt.Sprintf("LIMIT %d OFFSET %d", n.PageSize, q.Offset())
}
