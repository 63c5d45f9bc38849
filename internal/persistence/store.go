// Package persistence implements C12: the transactional upsert of a
// parsed fund report and its child tables.
package persistence

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/csrc-disclosure/fundreport-sync/internal/db"
	"github.com/csrc-disclosure/fundreport-sync/internal/ingesterr"
	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

const pgUniqueViolation = "23505"

// Store saves ParsedFundReports into the fund_report schema (spec §6.3).
type Store struct {
	pool db.Pool
}

// NewStore wraps a connection pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Migration is the DDL for the fund_report schema, grounded on the
// teacher's embedded-migration-string idiom in internal/store/postgres.go.
const Migration = `
CREATE TABLE IF NOT EXISTS fund_report (
	id                  BIGSERIAL PRIMARY KEY,
	fund_code           TEXT NOT NULL,
	fund_name           TEXT NOT NULL,
	fund_manager        TEXT,
	report_type         TEXT NOT NULL,
	report_period_start DATE,
	report_period_end   DATE NOT NULL,
	net_asset_value     NUMERIC(20,2),
	total_net_assets    NUMERIC(20,2),
	period_profit       NUMERIC(20,2),
	parser_kind         TEXT NOT NULL,
	taxonomy_version    TEXT,
	confidence          NUMERIC(8,4) NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	reparsed_at         TIMESTAMPTZ,
	UNIQUE (fund_code, report_period_end, report_type)
);

CREATE TABLE IF NOT EXISTS asset_allocation (
	id             BIGSERIAL PRIMARY KEY,
	fund_report_id BIGINT NOT NULL REFERENCES fund_report(id) ON DELETE CASCADE,
	asset_type     TEXT NOT NULL,
	asset_subtype  TEXT,
	market_value   NUMERIC(20,2),
	net_value_ratio NUMERIC(8,4) CHECK (net_value_ratio IS NULL OR (net_value_ratio >= 0 AND net_value_ratio <= 1))
);

CREATE TABLE IF NOT EXISTS top_holding (
	id             BIGSERIAL PRIMARY KEY,
	fund_report_id BIGINT NOT NULL REFERENCES fund_report(id) ON DELETE CASCADE,
	rank           INT NOT NULL,
	security_code  TEXT NOT NULL,
	security_name  TEXT NOT NULL,
	shares         NUMERIC(20,2),
	market_value   NUMERIC(20,2),
	net_value_ratio NUMERIC(8,4) CHECK (net_value_ratio IS NULL OR (net_value_ratio >= 0 AND net_value_ratio <= 1))
);

CREATE TABLE IF NOT EXISTS industry_allocation (
	id              BIGSERIAL PRIMARY KEY,
	fund_report_id  BIGINT NOT NULL REFERENCES fund_report(id) ON DELETE CASCADE,
	industry_name   TEXT NOT NULL,
	market_value    NUMERIC(20,2),
	net_value_ratio NUMERIC(8,4) CHECK (net_value_ratio IS NULL OR (net_value_ratio >= 0 AND net_value_ratio <= 1))
);

CREATE INDEX IF NOT EXISTS idx_fund_report_code_period ON fund_report(fund_code, report_period_end);
CREATE INDEX IF NOT EXISTS idx_asset_allocation_report ON asset_allocation(fund_report_id);
CREATE INDEX IF NOT EXISTS idx_top_holding_report ON top_holding(fund_report_id);
CREATE INDEX IF NOT EXISTS idx_industry_allocation_report ON industry_allocation(fund_report_id);
`

// Migrate applies Migration.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Migration)
	return eris.Wrap(err, "persistence: migrate")
}

// Save upserts report by its natural key and replaces its child rows,
// all within one transaction (spec §4.12). It returns the fund_report
// id and an *ingesterr.DbError on failure, classified constraint vs
// transport via the Postgres error code.
func (s *Store) Save(ctx context.Context, report *model.ParsedFundReport) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", classifyDbErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO fund_report (
			fund_code, fund_name, fund_manager, report_type, report_period_start,
			report_period_end, net_asset_value, total_net_assets, period_profit,
			parser_kind, taxonomy_version, confidence, reparsed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (fund_code, report_period_end, report_type) DO UPDATE SET
			fund_name = EXCLUDED.fund_name,
			fund_manager = EXCLUDED.fund_manager,
			report_period_start = EXCLUDED.report_period_start,
			net_asset_value = EXCLUDED.net_asset_value,
			total_net_assets = EXCLUDED.total_net_assets,
			period_profit = EXCLUDED.period_profit,
			parser_kind = EXCLUDED.parser_kind,
			taxonomy_version = EXCLUDED.taxonomy_version,
			confidence = EXCLUDED.confidence,
			reparsed_at = now()
		RETURNING id`,
		report.FundCode, report.FundName, nullableString(report.FundManager), string(report.ReportType),
		report.ReportPeriodStart, report.ReportPeriodEnd, report.NetAssetValue, report.TotalNetAssets,
		report.PeriodProfit, string(report.ParserKind), nullableString(report.TaxonomyVersion), report.Confidence,
		time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return "", classifyDbErr(err)
	}

	fundReportID := id

	if _, err := tx.Exec(ctx, `DELETE FROM asset_allocation WHERE fund_report_id = $1`, fundReportID); err != nil {
		return "", classifyDbErr(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM top_holding WHERE fund_report_id = $1`, fundReportID); err != nil {
		return "", classifyDbErr(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM industry_allocation WHERE fund_report_id = $1`, fundReportID); err != nil {
		return "", classifyDbErr(err)
	}

	if len(report.AssetAllocations) > 0 {
		rows := make([][]any, len(report.AssetAllocations))
		for i, a := range report.AssetAllocations {
			rows[i] = []any{fundReportID, a.Category, nullableString(a.Subtype), a.Amount, a.Ratio}
		}
		if _, err := db.CopyFrom(ctx, tx, "asset_allocation",
			[]string{"fund_report_id", "asset_type", "asset_subtype", "market_value", "net_value_ratio"}, rows); err != nil {
			return "", classifyDbErr(err)
		}
	}

	if len(report.TopHoldings) > 0 {
		rows := make([][]any, len(report.TopHoldings))
		for i, h := range report.TopHoldings {
			rows[i] = []any{fundReportID, h.Rank, h.SecurityCode, h.SecurityName, h.Shares, h.MarketValue, h.NetValueRatio}
		}
		if _, err := db.CopyFrom(ctx, tx, "top_holding",
			[]string{"fund_report_id", "rank", "security_code", "security_name", "shares", "market_value", "net_value_ratio"}, rows); err != nil {
			return "", classifyDbErr(err)
		}
	}

	if len(report.IndustryAllocations) > 0 {
		rows := make([][]any, len(report.IndustryAllocations))
		for i, ia := range report.IndustryAllocations {
			rows[i] = []any{fundReportID, ia.IndustryName, ia.MarketValue, ia.NetValueRatio}
		}
		if _, err := db.CopyFrom(ctx, tx, "industry_allocation",
			[]string{"fund_report_id", "industry_name", "market_value", "net_value_ratio"}, rows); err != nil {
			return "", classifyDbErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", classifyDbErr(err)
	}

	return strconv.FormatInt(fundReportID, 10), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// classifyDbErr wraps err as an *ingesterr.DbError, distinguishing a
// constraint violation (terminal per-item) from a connectivity failure
// (retryable) via the Postgres error code.
func classifyDbErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ingesterr.NewDbError(err, ingesterr.DbConstraint)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ingesterr.NewDbError(err, ingesterr.DbConstraint)
	}
	return ingesterr.NewDbError(err, ingesterr.DbTransport)
}
