// Package layerdb persists layer metadata, per-layer viewer settings, and
// computed profile runs in sqlite. Point data itself is never stored: clouds
// live in memory and are supplied by the caller on load.
package layerdb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/terrain.profile/internal/terrain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// LayerDB wraps the sqlite handle.
type LayerDB struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies pending
// migrations.
func Open(path string) (*LayerDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open layer database: %w", err)
	}

	ldb := &LayerDB{db}
	if err := ldb.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return ldb, nil
}

// migrateUp applies all pending embedded migrations.
func (db *LayerDB) migrateUp() error {
	driver, err := sqlitemigrate.WithInstance(db.DB, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	// Note: the migrate instance is not closed because that would close
	// the underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	log.Println("layerdb: schema up to date")
	return nil
}

// LayerRecord is the stored metadata of one layer.
type LayerRecord struct {
	ID         uuid.UUID
	Name       string
	Revision   uint64
	PointCount int
	Bounds     terrain.Bounds
	CreatedAt  string
}

// RecordLayer upserts the metadata of a cloud under the given display name.
// Re-recording after a revision bump overwrites the previous row.
func (db *LayerDB) RecordLayer(cloud *terrain.PointCloud, name string) error {
	b := cloud.Bounds()
	_, err := db.Exec(`
		INSERT INTO layers (id, name, revision, point_count, min_x, min_y, min_z, max_x, max_y, max_z)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			revision = excluded.revision,
			point_count = excluded.point_count,
			min_x = excluded.min_x, min_y = excluded.min_y, min_z = excluded.min_z,
			max_x = excluded.max_x, max_y = excluded.max_y, max_z = excluded.max_z
	`, cloud.ID().String(), name, cloud.Revision(), cloud.Len(),
		b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
	if err != nil {
		return fmt.Errorf("record layer %s: %w", cloud.ID(), err)
	}
	return nil
}

// Layers returns all recorded layers, newest first.
func (db *LayerDB) Layers() ([]LayerRecord, error) {
	rows, err := db.Query(`
		SELECT id, name, revision, point_count, min_x, min_y, min_z, max_x, max_y, max_z, created_at
		FROM layers ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	defer rows.Close()

	var records []LayerRecord
	for rows.Next() {
		var rec LayerRecord
		var id string
		if err := rows.Scan(&id, &rec.Name, &rec.Revision, &rec.PointCount,
			&rec.Bounds.Min.X, &rec.Bounds.Min.Y, &rec.Bounds.Min.Z,
			&rec.Bounds.Max.X, &rec.Bounds.Max.Y, &rec.Bounds.Max.Z,
			&rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan layer row: %w", err)
		}
		rec.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse layer id %q: %w", id, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteLayer removes a layer and, via cascade, its settings and runs.
func (db *LayerDB) DeleteLayer(id uuid.UUID) error {
	if _, err := db.Exec(`DELETE FROM layers WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete layer %s: %w", id, err)
	}
	return nil
}

// LayerSettings holds per-layer viewer preferences. Nil fields were never
// set and fall back to engine defaults.
type LayerSettings struct {
	SampleCount *int     `json:"sample_count,omitempty"`
	ToleranceM  *float64 `json:"tolerance_m,omitempty"`
	PointSize   *float64 `json:"point_size,omitempty"`
	Colormap    *string  `json:"colormap,omitempty"`
}

// SaveLayerSettings upserts the settings row for a layer.
func (db *LayerDB) SaveLayerSettings(layerID uuid.UUID, s LayerSettings) error {
	_, err := db.Exec(`
		INSERT INTO layer_settings (layer_id, sample_count, tolerance_m, point_size, colormap, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(layer_id) DO UPDATE SET
			sample_count = excluded.sample_count,
			tolerance_m = excluded.tolerance_m,
			point_size = excluded.point_size,
			colormap = excluded.colormap,
			updated_at = CURRENT_TIMESTAMP
	`, layerID.String(), s.SampleCount, s.ToleranceM, s.PointSize, s.Colormap)
	if err != nil {
		return fmt.Errorf("save settings for layer %s: %w", layerID, err)
	}
	return nil
}

// LoadLayerSettings returns the stored settings for a layer, or nil when the
// layer has none.
func (db *LayerDB) LoadLayerSettings(layerID uuid.UUID) (*LayerSettings, error) {
	var s LayerSettings
	err := db.QueryRow(`
		SELECT sample_count, tolerance_m, point_size, colormap
		FROM layer_settings WHERE layer_id = ?
	`, layerID.String()).Scan(&s.SampleCount, &s.ToleranceM, &s.PointSize, &s.Colormap)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings for layer %s: %w", layerID, err)
	}
	return &s, nil
}

// ProfileRunRecord is the stored metadata of one computed profile.
type ProfileRunRecord struct {
	ID          int64
	LayerID     uuid.UUID
	Line        terrain.LineSegment
	SampleCount int
	ToleranceM  float64
	LengthM     float64
	CreatedAt   string
}

// RecordProfileRun persists a computed profile with all its stations and
// returns the run ID. No-data stations store NULL statistics so they stay
// distinct from measured zero heights.
func (db *LayerDB) RecordProfileRun(layerID uuid.UUID, result *terrain.ProfileResult) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin profile run transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO profile_runs (layer_id, start_x, start_y, start_z, end_x, end_y, end_z, sample_count, tolerance_m, length_m)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, layerID.String(),
		result.Line.Start.X, result.Line.Start.Y, result.Line.Start.Z,
		result.Line.End.X, result.Line.End.Y, result.Line.End.Z,
		result.SampleCount, result.Tolerance, result.Length)
	if err != nil {
		return 0, fmt.Errorf("insert profile run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("profile run id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO profile_stations (run_id, station_idx, distance_m, min_height_m, max_height_m, mean_height_m, std_height_m, point_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare station insert: %w", err)
	}
	defer stmt.Close()

	for i, st := range result.Stations {
		var minH, maxH, meanH, stdH any
		count := 0
		if st.HasData() {
			minH, maxH, meanH, stdH = st.Stats.Min, st.Stats.Max, st.Stats.Mean, st.Stats.StdDev
			count = st.Stats.Count
		}
		if _, err := stmt.Exec(runID, i, st.Distance, minH, maxH, meanH, stdH, count); err != nil {
			return 0, fmt.Errorf("insert station %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit profile run: %w", err)
	}
	return runID, nil
}

// ProfileRuns lists the stored runs for a layer, newest first.
func (db *LayerDB) ProfileRuns(layerID uuid.UUID) ([]ProfileRunRecord, error) {
	rows, err := db.Query(`
		SELECT id, layer_id, start_x, start_y, start_z, end_x, end_y, end_z, sample_count, tolerance_m, length_m, created_at
		FROM profile_runs WHERE layer_id = ? ORDER BY id DESC
	`, layerID.String())
	if err != nil {
		return nil, fmt.Errorf("list profile runs: %w", err)
	}
	defer rows.Close()

	var records []ProfileRunRecord
	for rows.Next() {
		var rec ProfileRunRecord
		var id string
		if err := rows.Scan(&rec.ID, &id,
			&rec.Line.Start.X, &rec.Line.Start.Y, &rec.Line.Start.Z,
			&rec.Line.End.X, &rec.Line.End.Y, &rec.Line.End.Z,
			&rec.SampleCount, &rec.ToleranceM, &rec.LengthM, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile run: %w", err)
		}
		rec.LayerID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse layer id %q: %w", id, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ProfileRun reconstructs a stored profile, stations included.
func (db *LayerDB) ProfileRun(runID int64) (*terrain.ProfileResult, error) {
	var result terrain.ProfileResult
	err := db.QueryRow(`
		SELECT start_x, start_y, start_z, end_x, end_y, end_z, sample_count, tolerance_m, length_m
		FROM profile_runs WHERE id = ?
	`, runID).Scan(
		&result.Line.Start.X, &result.Line.Start.Y, &result.Line.Start.Z,
		&result.Line.End.X, &result.Line.End.Y, &result.Line.End.Z,
		&result.SampleCount, &result.Tolerance, &result.Length)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile run %d not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile run %d: %w", runID, err)
	}

	rows, err := db.Query(`
		SELECT distance_m, min_height_m, max_height_m, mean_height_m, std_height_m, point_count
		FROM profile_stations WHERE run_id = ? ORDER BY station_idx
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load stations for run %d: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var st terrain.Station
		var minH, maxH, meanH, stdH sql.NullFloat64
		var count int
		if err := rows.Scan(&st.Distance, &minH, &maxH, &meanH, &stdH, &count); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		if minH.Valid {
			st.Stats = &terrain.HeightStats{
				Min:    minH.Float64,
				Max:    maxH.Float64,
				Mean:   meanH.Float64,
				StdDev: stdH.Float64,
				Count:  count,
			}
		}
		result.Stations = append(result.Stations, st)
	}
	return &result, rows.Err()
}
