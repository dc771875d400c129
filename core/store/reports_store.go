package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

const (
	ChannelDirect  = "direct"
	ChannelMachine = "machine"
)

type Report struct {
	ID                        string     `json:"id"`
	Description               string     `json:"description"`
	Location                  string     `json:"location"`
	SubLocation               string     `json:"sub_location"`
	CategoryType              string     `json:"category_type"`
	OccurredAt                time.Time  `json:"occurred_at"`
	ReporterRef               string     `json:"reporter_ref,omitempty"`
	Channel                   string     `json:"channel"`
	CreatedAt                 time.Time  `json:"created_at"`
	ClassificationRequestedAt *time.Time `json:"classification_requested_at,omitempty"`
}

type ReportsStore interface {
	CreateReport(ctx context.Context, rep *Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	ListReports(ctx context.Context, limit, offset int) ([]Report, error)
}

type reportsStore struct {
	db *sql.DB
}

func NewReportsStore(db *sql.DB) ReportsStore {
	return &reportsStore{db: db}
}

func (s *reportsStore) CreateReport(ctx context.Context, rep *Report) error {
	if rep == nil || strings.TrimSpace(rep.ID) == "" {
		return errors.New("report missing id")
	}
	if rep.Channel == "" {
		rep.Channel = ChannelDirect
	}
	if rep.Channel != ChannelDirect && rep.Channel != ChannelMachine {
		return errors.New("unknown report channel " + rep.Channel)
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports(id, description, location, sub_location, category_type, occurred_at, reporter_ref, channel, created_at, classification_requested_at)
		VALUES(?,?,?,?,?,?,?,?,?,NULL)`,
		rep.ID, rep.Description, rep.Location, rep.SubLocation, rep.CategoryType,
		rep.OccurredAt.UTC(), rep.ReporterRef, rep.Channel, rep.CreatedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate key") {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *reportsStore) GetReport(ctx context.Context, id string) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, description, location, sub_location, category_type, occurred_at, reporter_ref, channel, created_at, classification_requested_at
		FROM reports WHERE id=?`, id)
	rep, err := scanReport(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rep, nil
}

func (s *reportsStore) ListReports(ctx context.Context, limit, offset int) ([]Report, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, location, sub_location, category_type, occurred_at, reporter_ref, channel, created_at, classification_requested_at
		FROM reports ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Report
	for rows.Next() {
		rep, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, *rep)
	}
	return res, rows.Err()
}

func scanReport(scan func(dest ...any) error) (*Report, error) {
	var rep Report
	var requested sql.NullTime
	if err := scan(&rep.ID, &rep.Description, &rep.Location, &rep.SubLocation,
		&rep.CategoryType, &rep.OccurredAt, &rep.ReporterRef, &rep.Channel,
		&rep.CreatedAt, &requested); err != nil {
		return nil, err
	}
	if requested.Valid {
		t := requested.Time
		rep.ClassificationRequestedAt = &t
	}
	return &rep, nil
}
