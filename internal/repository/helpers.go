package repository

import (
	"database/sql"
	"fmt"
	"strings"
)

// sortColumnOrDefault maps a requested sort key onto an allowed column.
func sortColumnOrDefault(requested string, allowed map[string]string, fallback string) string {
	if requested == "" {
		return allowed[fallback]
	}
	if col, ok := allowed[requested]; ok {
		return col
	}
	return allowed[fallback]
}

// sortOrderOrDefault normalises sort direction, defaulting to DESC.
func sortOrderOrDefault(order string) string {
	switch strings.ToUpper(order) {
	case "ASC":
		return "ASC"
	case "DESC":
		return "DESC"
	default:
		return "DESC"
	}
}

// pageToLimitOffset clamps pagination input to sane bounds.
func pageToLimitOffset(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	return pageSize, (page - 1) * pageSize
}

// requireRowsAffected converts a zero-row update into sql.ErrNoRows so the
// service layer can map it to a 404.
func requireRowsAffected(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", resource, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
