// Package postgres implements the catalog data-access interface against
// the production database. The harvester only reads entities and inserts
// proposal rows; entity writes stay with the review tooling that applies
// approved proposals.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/racebase/harvester/pkg/catalogs"
	"github.com/racebase/harvester/pkg/errors"
	"github.com/racebase/harvester/pkg/scrape"
)

// Store is a Postgres-backed catalogs.Catalog.
type Store struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
}

// Open connects to the catalog database.
func Open(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, errors.WrapCatalog("connect", "", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type candidateRow struct {
	EventID           string         `db:"event_id"`
	EventName         string         `db:"event_name"`
	City              string         `db:"city"`
	Department        string         `db:"department"`
	Region            string         `db:"region"`
	EditionID         string         `db:"edition_id"`
	Year              int            `db:"year"`
	StartDate         time.Time      `db:"start_date"`
	EndDate           time.Time      `db:"end_date"`
	CalendarStatus    string         `db:"calendar_status"`
	RegistrantsNumber sql.NullInt64  `db:"registrants_number"`
	Featured          bool           `db:"featured"`
	OrganizerName     sql.NullString `db:"organizer_name"`
	OrganizerEmail    sql.NullString `db:"organizer_email"`
	OrganizerPhone    sql.NullString `db:"organizer_phone"`
	OrganizerWebsite  sql.NullString `db:"organizer_website"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r candidateRow) toEvent() catalogs.Event {
	return catalogs.Event{
		ID:         r.EventID,
		Name:       r.EventName,
		City:       r.City,
		Department: r.Department,
		Region:     r.Region,
	}
}

func (r candidateRow) toEdition() catalogs.Edition {
	edition := catalogs.Edition{
		ID:                r.EditionID,
		EventID:           r.EventID,
		Year:              r.Year,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		CalendarStatus:    catalogs.CalendarStatus(r.CalendarStatus),
		RegistrantsNumber: nullInt(r.RegistrantsNumber),
		Featured:          r.Featured,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.OrganizerName.Valid || r.OrganizerEmail.Valid || r.OrganizerPhone.Valid || r.OrganizerWebsite.Valid {
		edition.Organizer = &catalogs.Organizer{
			Name:    r.OrganizerName.String,
			Email:   r.OrganizerEmail.String,
			Phone:   r.OrganizerPhone.String,
			Website: r.OrganizerWebsite.String,
		}
	}
	return edition
}

type editionRow struct {
	ID                string         `db:"id"`
	EventID           string         `db:"event_id"`
	Year              int            `db:"year"`
	StartDate         time.Time      `db:"start_date"`
	EndDate           time.Time      `db:"end_date"`
	CalendarStatus    string         `db:"calendar_status"`
	RegistrantsNumber sql.NullInt64  `db:"registrants_number"`
	Featured          bool           `db:"featured"`
	OrganizerName     sql.NullString `db:"organizer_name"`
	OrganizerEmail    sql.NullString `db:"organizer_email"`
	OrganizerPhone    sql.NullString `db:"organizer_phone"`
	OrganizerWebsite  sql.NullString `db:"organizer_website"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

type raceRow struct {
	ID        string        `db:"id"`
	EditionID string        `db:"edition_id"`
	Name      string        `db:"name"`
	Distance  sql.NullInt64 `db:"distance"`
	Elevation sql.NullInt64 `db:"elevation"`
	StartTime time.Time     `db:"start_time"`
	Category  string        `db:"category"`
}

type proposalRow struct {
	ID             string    `db:"id"`
	Kind           string    `db:"kind"`
	EventID        string    `db:"event_id"`
	EditionID      string    `db:"edition_id"`
	Target         string    `db:"target"`
	Changes        []byte    `db:"changes"`
	Justifications []byte    `db:"justifications"`
	ContentHash    string    `db:"content_hash"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
}

// Candidates returns editions starting within the query window joined
// with their events. Name and city hints are left to the scorer; the
// store only narrows by region-independent date bounds and, when
// present, the department.
func (s *Store) Candidates(ctx context.Context, q catalogs.CandidateQuery) ([]catalogs.Candidate, error) {
	query := s.builder.
		Select(
			"ev.id AS event_id", "ev.name AS event_name", "ev.city", "ev.department", "ev.region",
			"ed.id AS edition_id", "ed.year", "ed.start_date", "ed.end_date", "ed.calendar_status",
			"ed.registrants_number", "ed.featured",
			"ed.organizer_name", "ed.organizer_email", "ed.organizer_phone", "ed.organizer_website",
			"ed.updated_at",
		).
		From("editions ed").
		Join("events ev ON ev.id = ed.event_id").
		Where(sq.GtOrEq{"ed.start_date": q.Date.Add(-q.Window)}).
		Where(sq.LtOrEq{"ed.start_date": q.Date.Add(q.Window)}).
		OrderBy("ed.start_date")
	if q.Department != "" {
		query = query.Where(sq.Eq{"ev.department": q.Department})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.WrapCatalog("candidates", q.Name, err)
	}

	var rows []candidateRow
	if err := s.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, errors.WrapCatalog("candidates", q.Name, err)
	}

	out := make([]catalogs.Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, catalogs.Candidate{Event: r.toEvent(), Edition: r.toEdition()})
	}
	return out, nil
}

// Edition fetches one edition with its races.
func (s *Store) Edition(ctx context.Context, id string) (*catalogs.Edition, error) {
	sqlStr, args, err := s.builder.
		Select(
			"id", "event_id", "year", "start_date", "end_date", "calendar_status",
			"registrants_number", "featured",
			"organizer_name", "organizer_email", "organizer_phone", "organizer_website",
			"updated_at",
		).
		From("editions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errors.WrapCatalog("edition", id, err)
	}

	var row editionRow
	if err := s.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrNotFound
		}
		return nil, errors.WrapCatalog("edition", id, err)
	}

	edition := row.toEdition()
	edition.Races, err = s.races(ctx, id)
	if err != nil {
		return nil, err
	}
	return &edition, nil
}

// PendingProposals lists queued proposals for a logical target.
func (s *Store) PendingProposals(ctx context.Context, target string) ([]*catalogs.Proposal, error) {
	sqlStr, args, err := s.builder.
		Select("id", "kind", "event_id", "edition_id", "target", "changes", "justifications", "content_hash", "status", "created_at").
		From("proposals").
		Where(sq.Eq{"status": "pending", "target": target}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, errors.WrapCatalog("proposals", target, err)
	}

	var rows []proposalRow
	if err := s.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, errors.WrapCatalog("proposals", target, err)
	}

	out := make([]*catalogs.Proposal, 0, len(rows))
	for _, r := range rows {
		p := &catalogs.Proposal{
			ID:          r.ID,
			Kind:        catalogs.Kind(r.Kind),
			EventID:     r.EventID,
			EditionID:   r.EditionID,
			ContentHash: r.ContentHash,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt,
		}
		if err := json.Unmarshal(r.Changes, &p.Changes); err != nil {
			return nil, errors.WrapCatalog("proposals", target, err)
		}
		if len(r.Justifications) > 0 {
			if err := json.Unmarshal(r.Justifications, &p.Justifications); err != nil {
				return nil, errors.WrapCatalog("proposals", target, err)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// CreateProposal durably queues a proposal for review. The changes and
// justifications are stored as JSON documents so the review tooling can
// render them without schema churn.
func (s *Store) CreateProposal(ctx context.Context, p *catalogs.Proposal) error {
	changes, err := json.Marshal(p.Changes)
	if err != nil {
		return errors.WrapCatalog("create", p.Target(), err)
	}
	justifications, err := json.Marshal(p.Justifications)
	if err != nil {
		return errors.WrapCatalog("create", p.Target(), err)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = "pending"
	}

	sqlStr, args, err := s.builder.
		Insert("proposals").
		Columns("kind", "event_id", "edition_id", "target", "changes", "justifications", "content_hash", "status", "created_at").
		Values(string(p.Kind), p.EventID, p.EditionID, p.Target(), changes, justifications, p.ContentHash, p.Status, p.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return errors.WrapCatalog("create", p.Target(), err)
	}

	if err := s.db.QueryRowxContext(ctx, sqlStr, args...).Scan(&p.ID); err != nil {
		return errors.WrapCatalog("create", p.Target(), err)
	}
	return nil
}

func (s *Store) races(ctx context.Context, editionID string) ([]catalogs.Race, error) {
	sqlStr, args, err := s.builder.
		Select("id", "edition_id", "name", "distance", "elevation", "start_time", "category").
		From("races").
		Where(sq.Eq{"edition_id": editionID}).
		OrderBy("start_time", "id").
		ToSql()
	if err != nil {
		return nil, errors.WrapCatalog("edition", editionID, err)
	}

	var rows []raceRow
	if err := s.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, errors.WrapCatalog("edition", editionID, err)
	}

	out := make([]catalogs.Race, 0, len(rows))
	for _, r := range rows {
		out = append(out, catalogs.Race{
			ID:        r.ID,
			EditionID: r.EditionID,
			Name:      r.Name,
			Distance:  nullInt(r.Distance),
			Elevation: nullInt(r.Elevation),
			StartTime: r.StartTime,
			Category:  scrape.CategoryType(r.Category),
		})
	}
	return out, nil
}

func (r editionRow) toEdition() catalogs.Edition {
	edition := catalogs.Edition{
		ID:                r.ID,
		EventID:           r.EventID,
		Year:              r.Year,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		CalendarStatus:    catalogs.CalendarStatus(r.CalendarStatus),
		RegistrantsNumber: nullInt(r.RegistrantsNumber),
		Featured:          r.Featured,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.OrganizerName.Valid || r.OrganizerEmail.Valid || r.OrganizerPhone.Valid || r.OrganizerWebsite.Valid {
		edition.Organizer = &catalogs.Organizer{
			Name:    r.OrganizerName.String,
			Email:   r.OrganizerEmail.String,
			Phone:   r.OrganizerPhone.String,
			Website: r.OrganizerWebsite.String,
		}
	}
	return edition
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
