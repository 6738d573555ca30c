package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"

	"tally/internal/invoice/models"
)

// Query filters and pages an invoice search. Zero values mean "no filter";
// Limit <= 0 returns everything past Offset.
type Query struct {
	IDs             []string
	Statuses        []string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	SearchKeyFields []string
	SearchKeys      []string
	SortBy          []string
	Offset          int
	Limit           int
}

// searchKeyFields maps an exposed search field to its SQL expression.
var searchKeyFields = map[string]string{
	"id":       "id::text",
	"customer": "details->>'customer'",
}

// sortByFields maps an exposed sort field to its column.
var sortByFields = map[string]string{
	"created_at": "created_at",
}

var searchKeyFieldPattern = regexp.MustCompile(`^(?:(starts|ends|equals):)?(\w+)$`)

// searchKeyRegexp resolves one search field spec into (field, regexp). The
// optional operator prefix anchors the match: starts, ends, or equals.
func searchKeyRegexp(field string, keys []string) (string, string) {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	pattern := strings.Join(quoted, "|")

	m := searchKeyFieldPattern.FindStringSubmatch(field)
	if m == nil {
		return field, pattern
	}
	switch m[1] {
	case "starts":
		return m[2], "^(?:" + pattern + ")"
	case "ends":
		return m[2], "(?:" + pattern + ")$"
	case "equals":
		return m[2], "^(?:" + pattern + ")$"
	default:
		return m[2], pattern
	}
}

var sortPattern = regexp.MustCompile(`^([-+]?)(\w+)$`)

// sortExprs parses signed sort specs ("-created_at") into ORDER BY terms,
// ignoring unknown fields and duplicates.
func sortExprs(sortBy []string) []string {
	var exprs []string
	used := map[string]bool{}
	for _, s := range sortBy {
		m := sortPattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		col, ok := sortByFields[m[2]]
		if !ok || used[m[2]] {
			continue
		}
		used[m[2]] = true
		if m[1] == "-" {
			exprs = append(exprs, col+" DESC")
		} else {
			exprs = append(exprs, col+" ASC")
		}
	}
	return exprs
}

// Search returns the total match count and one page of invoices.
func (s *PostgresStore) Search(ctx context.Context, q Query) (int, []*models.Invoice, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return 0, nil, err
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.IDs) > 0 {
		where = append(where, "id::text = ANY("+arg(pq.Array(q.IDs))+")")
	}
	if len(q.Statuses) > 0 {
		where = append(where, "status = ANY("+arg(pq.Array(q.Statuses))+")")
	}
	if q.CreatedFrom != nil {
		where = append(where, "created_at >= "+arg(*q.CreatedFrom))
	}
	if q.CreatedTo != nil {
		where = append(where, "created_at <= "+arg(*q.CreatedTo))
	}
	if len(q.SearchKeys) > 0 {
		var keyFilters []string
		for _, fieldSpec := range q.SearchKeyFields {
			field, pattern := searchKeyRegexp(fieldSpec, q.SearchKeys)
			expr, ok := searchKeyFields[field]
			if !ok {
				continue
			}
			keyFilters = append(keyFilters, expr+" ~ "+arg(pattern))
		}
		if len(keyFilters) > 0 {
			where = append(where, "("+strings.Join(keyFilters, " OR ")+")")
		}
	}

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT count(*) FROM invoices"+cond, args...).Scan(&total); err != nil {
		return 0, nil, storageErr(err, "count invoices")
	}

	order := sortExprs(q.SortBy)
	if len(order) == 0 {
		order = []string{"created_at DESC"}
	}
	query := `SELECT id, details, status, operation_histories, creator, created_at, updated_at
		FROM invoices` + cond + " ORDER BY " + strings.Join(order, ", ")
	query += " OFFSET " + arg(q.Offset)
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, nil, storageErr(err, "search invoices")
	}
	defer rows.Close()

	var out []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return 0, nil, storageErr(err, "scan invoice")
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, storageErr(err, "search invoices")
	}
	return total, out, nil
}
