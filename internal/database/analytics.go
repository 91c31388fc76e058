package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// GetDailyRequestStatsRow is one day of request activity.
type GetDailyRequestStatsRow struct {
	Day            pgtype.Date
	RequestCount   int64
	ConfirmedCount int64
	RevenuePaise   int64
}

const getDailyRequestStats = `
SELECT DATE(created_at) AS day,
       COUNT(*) AS request_count,
       COUNT(*) FILTER (WHERE status = 'confirmed') AS confirmed_count,
       COALESCE(SUM(total_paise) FILTER (WHERE status = 'confirmed'), 0) AS revenue_paise
FROM service_requests
WHERE created_at >= $1 AND created_at < $2
GROUP BY DATE(created_at)
ORDER BY day`

type GetDailyRequestStatsParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

func (q *Queries) GetDailyRequestStats(ctx context.Context, arg GetDailyRequestStatsParams) ([]GetDailyRequestStatsRow, error) {
	rows, err := q.db.Query(ctx, getDailyRequestStats, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GetDailyRequestStatsRow
	for rows.Next() {
		var r GetDailyRequestStatsRow
		if err := rows.Scan(&r.Day, &r.RequestCount, &r.ConfirmedCount, &r.RevenuePaise); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetStatusSummaryRow is the per-status request count over a range.
type GetStatusSummaryRow struct {
	Status       string
	RequestCount int64
	TotalPaise   int64
}

const getStatusSummary = `
SELECT status, COUNT(*) AS request_count, COALESCE(SUM(total_paise), 0) AS total_paise
FROM service_requests
WHERE created_at >= $1 AND created_at < $2
GROUP BY status
ORDER BY status`

type GetStatusSummaryParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

func (q *Queries) GetStatusSummary(ctx context.Context, arg GetStatusSummaryParams) ([]GetStatusSummaryRow, error) {
	rows, err := q.db.Query(ctx, getStatusSummary, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GetStatusSummaryRow
	for rows.Next() {
		var r GetStatusSummaryRow
		if err := rows.Scan(&r.Status, &r.RequestCount, &r.TotalPaise); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
