package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	timeconst "github.com/scintfib/tconst_go/pkg"
)

var ErrNoRecord = errors.New("no time constants record")

const schemaTimeConstants = `CREATE TABLE IF NOT EXISTS TIME_CONSTANTS (
	SERIES_ID INTEGER NOT NULL PRIMARY KEY,
	RESULTS_FILE VARCHAR(512) NOT NULL,
	FAST_DEC DOUBLE NOT NULL,
	FAST_DEC_ERR DOUBLE NOT NULL,
	SLOW_DEC DOUBLE NOT NULL,
	SLOW_DEC_ERR DOUBLE NOT NULL,
	IFAST DOUBLE NOT NULL,
	ISLOW DOUBLE NOT NULL,
	RUN_ID VARCHAR(36) NOT NULL,
	DATE BIGINT NOT NULL
)`

const schemaSeries = `CREATE TABLE IF NOT EXISTS SERIES (
	SERIES_ID INTEGER NOT NULL PRIMARY KEY,
	DESCRIPTION VARCHAR(255) NOT NULL DEFAULT '',
	FIBER VARCHAR(64) NOT NULL DEFAULT '',
	ORDINAL SMALLINT NOT NULL DEFAULT 0,
	REGULAR SMALLINT NOT NULL DEFAULT 1,
	TOLERANCE DOUBLE NOT NULL DEFAULT 1.0
)`

const schemaMeasurements = `CREATE TABLE IF NOT EXISTS MEASUREMENTS (
	SERIES_ID INTEGER NOT NULL,
	POINT INTEGER NOT NULL,
	POSITION DOUBLE NOT NULL,
	PRIMARY KEY (SERIES_ID, POINT)
)`

// TimeConstants is one row of TIME_CONSTANTS.
type TimeConstants struct {
	SeriesID    int     `db:"SERIES_ID"`
	ResultsFile string  `db:"RESULTS_FILE"`
	FastDec     float64 `db:"FAST_DEC"`
	FastDecErr  float64 `db:"FAST_DEC_ERR"`
	SlowDec     float64 `db:"SLOW_DEC"`
	SlowDecErr  float64 `db:"SLOW_DEC_ERR"`
	IFast       float64 `db:"IFAST"`
	ISlow       float64 `db:"ISLOW"`
	RunID       string  `db:"RUN_ID"`
	Date        int64   `db:"DATE"`
}

// NewTimeConstants builds the record persisted for a series aggregate.
func NewTimeConstants(agg timeconst.SeriesAggregate, resultsFile, runID string, date int64) TimeConstants {
	return TimeConstants{
		SeriesID:    agg.SeriesID,
		ResultsFile: resultsFile,
		FastDec:     agg.FastMean,
		FastDecErr:  agg.FastStdErr,
		SlowDec:     agg.SlowMean,
		SlowDecErr:  agg.SlowStdErr,
		IFast:       agg.IntensityFast,
		ISlow:       agg.IntensitySlow,
		RunID:       runID,
		Date:        date,
	}
}

type measurementRow struct {
	SeriesID int     `db:"SERIES_ID"`
	Point    int     `db:"POINT"`
	Position float64 `db:"POSITION"`
}

type Store struct {
	db *sqlx.DB
}

// Open connects with driver "sqlite" (dsn is the file path) or "mysql".
func Open(driver, dsn string) (*Store, error) {
	if driver != "sqlite" && driver != "mysql" {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

// ConnectToDatabase opens the store from the configuration fields. For
// sqlite dbname is the database file.
func ConnectToDatabase(driver, user, pass, host, dbname string) (*Store, error) {
	if driver == "mysql" {
		port := "3306"
		dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
		return Open(driver, dbURI)
	}
	return Open(driver, dbname)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{schemaTimeConstants, schemaSeries, schemaMeasurements} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}
	return nil
}

// SaveTimeConstants inserts the record, replacing any previous one of the
// same series.
func (s *Store) SaveTimeConstants(ctx context.Context, rec TimeConstants) error {
	query := `REPLACE INTO TIME_CONSTANTS
		(SERIES_ID, RESULTS_FILE, FAST_DEC, FAST_DEC_ERR, SLOW_DEC, SLOW_DEC_ERR, IFAST, ISLOW, RUN_ID, DATE)
		VALUES (:SERIES_ID, :RESULTS_FILE, :FAST_DEC, :FAST_DEC_ERR, :SLOW_DEC, :SLOW_DEC_ERR, :IFAST, :ISLOW, :RUN_ID, :DATE)`
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("error saving time constants of series %d: %w", rec.SeriesID, err)
	}
	return nil
}

func (s *Store) TimeConstants(ctx context.Context, seriesID int) (TimeConstants, error) {
	var rec TimeConstants
	query := s.db.Rebind("SELECT * FROM TIME_CONSTANTS WHERE SERIES_ID = ?")
	err := s.db.GetContext(ctx, &rec, query, seriesID)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: series %d", ErrNoRecord, seriesID)
	}
	if err != nil {
		return rec, fmt.Errorf("error querying time constants of series %d: %w", seriesID, err)
	}
	return rec, nil
}

// SaveSeries writes a series and its positions, replacing existing rows.
func (s *Store) SaveSeries(ctx context.Context, series timeconst.Series) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `REPLACE INTO SERIES (SERIES_ID, DESCRIPTION, FIBER, ORDINAL, REGULAR, TOLERANCE)
		VALUES (:SERIES_ID, :DESCRIPTION, :FIBER, :ORDINAL, :REGULAR, :TOLERANCE)`, series)
	if err != nil {
		return fmt.Errorf("error saving series %d: %w", series.ID, err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM MEASUREMENTS WHERE SERIES_ID = ?"), series.ID); err != nil {
		return fmt.Errorf("error clearing measurements of series %d: %w", series.ID, err)
	}
	for i, p := range series.Positions {
		row := measurementRow{SeriesID: series.ID, Point: i, Position: p}
		_, err := tx.NamedExecContext(ctx, "INSERT INTO MEASUREMENTS (SERIES_ID, POINT, POSITION) VALUES (:SERIES_ID, :POINT, :POSITION)", row)
		if err != nil {
			return fmt.Errorf("error saving measurement %d of series %d: %w", i, series.ID, err)
		}
	}
	return tx.Commit()
}

// LoadSeriesCatalog builds the catalog from the SERIES and MEASUREMENTS
// tables.
func (s *Store) LoadSeriesCatalog(ctx context.Context) (*timeconst.SeriesCatalog, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT SERIES_ID, DESCRIPTION, FIBER, ORDINAL, REGULAR, TOLERANCE FROM SERIES")
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	series := make(map[int]*timeconst.Series)
	for rows.Next() {
		result := timeconst.Series{}
		if err := rows.StructScan(&result); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		series[result.ID] = &result
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading series: %w", err)
	}

	var measurements []measurementRow
	err = s.db.SelectContext(ctx, &measurements, "SELECT SERIES_ID, POINT, POSITION FROM MEASUREMENTS ORDER BY SERIES_ID, POINT")
	if err != nil {
		return nil, fmt.Errorf("error querying measurements: %w", err)
	}
	for _, m := range measurements {
		sr, ok := series[m.SeriesID]
		if !ok {
			return nil, fmt.Errorf("%w: measurement %d references unknown series %d",
				timeconst.ErrSeriesConfigInvalid, m.Point, m.SeriesID)
		}
		sr.Positions = append(sr.Positions, m.Position)
	}

	ids := make([]int, 0, len(series))
	for id := range series {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	list := make([]timeconst.Series, 0, len(ids))
	for _, id := range ids {
		list = append(list, *series[id])
	}
	return timeconst.NewSeriesCatalog(list)
}
