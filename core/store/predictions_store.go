package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"vigil-triage/core/risk"
)

var (
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
)

// PredictionRecord is the persisted judgment for one report. The tier,
// confidence, probabilities and reasoning are written together or not at
// all; a row never holds a partial judgment. ServerTime is nil between the
// optimistic write and the resolver pass.
type PredictionRecord struct {
	ReportID       string            `json:"report_id"`
	Generation     uint64            `json:"generation"`
	Tier           risk.Tier         `json:"tier"`
	Confidence     float64           `json:"confidence"`
	Probabilities  risk.Distribution `json:"probabilities"`
	Reasoning      string            `json:"reasoning"`
	Overridden     bool              `json:"overridden"`
	OverrideImmune bool              `json:"override_immune"`
	Current        bool              `json:"current"`
	OriginatedAt   time.Time         `json:"originated_at"`
	ServerTime     *time.Time        `json:"server_time,omitempty"`
}

type PredictionFilter struct {
	Tier   *risk.Tier
	Limit  int
	Offset int
}

type PredictionsStore interface {
	// MarkRequested touches the report row before the prediction write
	// lands; the feed observes the touch with whatever prediction state is
	// already committed, which is how the transient fieldless snapshot
	// window becomes real.
	MarkRequested(ctx context.Context, reportID string, at time.Time) error
	UpsertPrediction(ctx context.Context, rec *PredictionRecord) error
	ResolvePending(ctx context.Context, before time.Time, serverTime time.Time) (int, error)
	GetCurrent(ctx context.Context, reportID string) (*PredictionRecord, error)
	ListCurrent(ctx context.Context, filter PredictionFilter) ([]PredictionRecord, error)
	CountCurrent(ctx context.Context, filter PredictionFilter) (int, error)
	PruneSuperseded(ctx context.Context, before time.Time) (int, error)
	Feed() *Feed
}

type predictionsStore struct {
	db   *sql.DB
	feed *Feed
}

func NewPredictionsStore(db *sql.DB, feed *Feed) PredictionsStore {
	if feed == nil {
		feed = NewFeed()
	}
	return &predictionsStore{db: db, feed: feed}
}

func (s *predictionsStore) Feed() *Feed {
	return s.feed
}

func (s *predictionsStore) MarkRequested(ctx context.Context, reportID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports SET classification_requested_at=? WHERE id=?`,
		at.UTC(), reportID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	s.emitCurrent(ctx, reportID)
	return nil
}

func (s *predictionsStore) UpsertPrediction(ctx context.Context, rec *PredictionRecord) error {
	if rec == nil || strings.TrimSpace(rec.ReportID) == "" {
		return errors.New("prediction record missing report id")
	}
	if !rec.Tier.Valid() {
		return fmt.Errorf("invalid tier %d", int(rec.Tier))
	}
	if !rec.Probabilities.Normalized() {
		return fmt.Errorf("probabilities sum %.3f outside tolerance", rec.Probabilities.Sum())
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	existing, curGen, err := s.currentTx(ctx, tx, rec.ReportID)
	if err != nil {
		tx.Rollback()
		return err
	}
	if existing != nil && existing.Generation == rec.Generation && existing.OverrideImmune && rec.Tier < existing.Tier {
		// An immune record's tier is pinned within its generation: a retried
		// write for the same generation keeps the forced judgment.
		rec.Tier = existing.Tier
		rec.Confidence = existing.Confidence
		rec.Probabilities = existing.Probabilities
		rec.Overridden = existing.Overridden
		rec.OverrideImmune = true
	}
	current := 1
	if rec.Generation < curGen {
		// Late write from a superseded classification: keep it as history.
		current = 0
	}
	if current == 1 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE predictions SET current=0 WHERE report_id=? AND generation<?`,
			rec.ReportID, rec.Generation); err != nil {
			tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO predictions(report_id, generation, tier, confidence, prob_low, prob_medium, prob_high, reasoning, overridden, override_immune, current, originated_at, server_time)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,NULL)
		ON CONFLICT(report_id, generation) DO UPDATE SET
			tier=excluded.tier,
			confidence=excluded.confidence,
			prob_low=excluded.prob_low,
			prob_medium=excluded.prob_medium,
			prob_high=excluded.prob_high,
			reasoning=excluded.reasoning,
			overridden=excluded.overridden,
			override_immune=excluded.override_immune,
			current=excluded.current`,
		rec.ReportID, rec.Generation, rec.Tier.String(), rec.Confidence,
		rec.Probabilities.Low, rec.Probabilities.Medium, rec.Probabilities.High,
		rec.Reasoning, boolToInt(rec.Overridden), boolToInt(rec.OverrideImmune),
		current, rec.OriginatedAt.UTC()); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	rec.Current = current == 1
	s.emitCurrent(ctx, rec.ReportID)
	return nil
}

func (s *predictionsStore) ResolvePending(ctx context.Context, before time.Time, serverTime time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_id, generation, current FROM predictions
		WHERE server_time IS NULL AND originated_at <= ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	type pending struct {
		reportID string
		gen      uint64
		current  bool
	}
	var list []pending
	for rows.Next() {
		var p pending
		var cur int
		if err := rows.Scan(&p.reportID, &p.gen, &cur); err != nil {
			rows.Close()
			return 0, err
		}
		p.current = cur == 1
		list = append(list, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	resolved := 0
	touched := map[string]struct{}{}
	for _, p := range list {
		res, err := s.db.ExecContext(ctx, `
			UPDATE predictions SET server_time=? WHERE report_id=? AND generation=? AND server_time IS NULL`,
			serverTime.UTC(), p.reportID, p.gen)
		if err != nil {
			return resolved, err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			resolved++
			if p.current {
				touched[p.reportID] = struct{}{}
			}
		}
	}
	for reportID := range touched {
		s.emitCurrent(ctx, reportID)
	}
	return resolved, nil
}

func (s *predictionsStore) GetCurrent(ctx context.Context, reportID string) (*PredictionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT report_id, generation, tier, confidence, prob_low, prob_medium, prob_high, reasoning, overridden, override_immune, current, originated_at, server_time
		FROM predictions WHERE report_id=? AND current=1
		ORDER BY generation DESC LIMIT 1`, reportID)
	rec, err := scanPrediction(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (s *predictionsStore) ListCurrent(ctx context.Context, filter PredictionFilter) ([]PredictionRecord, error) {
	query := `
		SELECT report_id, generation, tier, confidence, prob_low, prob_medium, prob_high, reasoning, overridden, override_immune, current, originated_at, server_time
		FROM predictions WHERE current=1`
	var args []any
	if filter.Tier != nil {
		query += " AND tier=?"
		args = append(args, filter.Tier.String())
	}
	query += " ORDER BY originated_at DESC, report_id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []PredictionRecord
	for rows.Next() {
		rec, err := scanPrediction(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, *rec)
	}
	return res, rows.Err()
}

func (s *predictionsStore) CountCurrent(ctx context.Context, filter PredictionFilter) (int, error) {
	query := `SELECT COUNT(*) FROM predictions WHERE current=1`
	var args []any
	if filter.Tier != nil {
		query += " AND tier=?"
		args = append(args, filter.Tier.String())
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *predictionsStore) PruneSuperseded(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM predictions WHERE current=0 AND originated_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (s *predictionsStore) currentTx(ctx context.Context, tx *sql.Tx, reportID string) (*PredictionRecord, uint64, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT report_id, generation, tier, confidence, prob_low, prob_medium, prob_high, reasoning, overridden, override_immune, current, originated_at, server_time
		FROM predictions WHERE report_id=? AND current=1
		ORDER BY generation DESC LIMIT 1`, reportID)
	rec, err := scanPrediction(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return rec, rec.Generation, nil
}

func (s *predictionsStore) emitCurrent(ctx context.Context, reportID string) {
	rec, err := s.GetCurrent(ctx, reportID)
	if err != nil {
		return
	}
	s.feed.Emit(Snapshot{ReportID: reportID, Prediction: rec, EmittedAt: time.Now().UTC()})
}

func scanPrediction(scan func(dest ...any) error) (*PredictionRecord, error) {
	var rec PredictionRecord
	var tierRaw string
	var overridden, immune, current int
	var serverTime sql.NullTime
	if err := scan(&rec.ReportID, &rec.Generation, &tierRaw, &rec.Confidence,
		&rec.Probabilities.Low, &rec.Probabilities.Medium, &rec.Probabilities.High,
		&rec.Reasoning, &overridden, &immune, &current, &rec.OriginatedAt, &serverTime); err != nil {
		return nil, err
	}
	tier, err := risk.ParseTier(tierRaw)
	if err != nil {
		return nil, err
	}
	rec.Tier = tier
	rec.Overridden = overridden == 1
	rec.OverrideImmune = immune == 1
	rec.Current = current == 1
	if serverTime.Valid {
		t := serverTime.Time
		rec.ServerTime = &t
	}
	return &rec, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
