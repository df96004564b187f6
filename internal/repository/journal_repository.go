package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/scholarhub/journal-req-api/internal/models"
)

const journalColumns = `id, journal_name, issn, publisher, impact_factor, formatting_requirements, font_specifications, word_count_limit, reference_style, reference_count_limit, submission_url, official_guidelines_url, notes, created_at, last_updated, flags_count, update_history, comments`

const journalSummaryColumns = `id, journal_name, issn, publisher, impact_factor, reference_style, flags_count, created_at, last_updated`

// JournalRepository provides database access for journal records.
type JournalRepository struct {
	db *sqlx.DB
}

// NewJournalRepository creates a new instance of JournalRepository.
func NewJournalRepository(db *sqlx.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Create inserts a new journal record.
func (r *JournalRepository) Create(ctx context.Context, journal *models.Journal) error {
	if journal.ID == "" {
		journal.ID = uuid.NewString()
	}

	const query = `INSERT INTO journals (id, journal_name, issn, publisher, impact_factor, formatting_requirements, font_specifications, word_count_limit, reference_style, reference_count_limit, submission_url, official_guidelines_url, notes, created_at, last_updated, flags_count, update_history, comments) VALUES (:id, :journal_name, :issn, :publisher, :impact_factor, :formatting_requirements, :font_specifications, :word_count_limit, :reference_style, :reference_count_limit, :submission_url, :official_guidelines_url, :notes, :created_at, :last_updated, :flags_count, :update_history, :comments)`
	if _, err := r.db.NamedExecContext(ctx, query, journal); err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	return nil
}

// FindByID returns a journal by identifier.
func (r *JournalRepository) FindByID(ctx context.Context, id string) (*models.Journal, error) {
	query := fmt.Sprintf(`SELECT %s FROM journals WHERE id = $1 LIMIT 1`, journalColumns)
	var journal models.Journal
	if err := r.db.GetContext(ctx, &journal, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find journal by id: %w", err)
	}
	return &journal, nil
}

// List returns journal summaries matching the filter, most recently updated
// first. The name filter matches case-insensitively on substrings.
func (r *JournalRepository) List(ctx context.Context, filter models.JournalFilter) ([]models.JournalSummary, error) {
	baseQuery := `FROM journals WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Name != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(journal_name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Name)+"%")
	}
	if filter.MinImpactFactor != nil {
		conditions = append(conditions, fmt.Sprintf("impact_factor >= $%d", len(args)+1))
		args = append(args, *filter.MinImpactFactor)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY last_updated DESC", journalSummaryColumns, baseQuery)

	summaries := []models.JournalSummary{}
	if err := r.db.SelectContext(ctx, &summaries, listQuery, args...); err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}

	return summaries, nil
}

// UpdateWithHistory rewrites the journal's editable columns and appends the
// history entry recording the edit, all in one transaction. The row is locked
// while the history sequence is rewritten, and a failure at any step rolls
// the whole edit back.
func (r *JournalRepository) UpdateWithHistory(ctx context.Context, journal *models.Journal, entry models.HistoryEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update journal: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var encoded string
	if err := tx.GetContext(ctx, &encoded, `SELECT update_history FROM journals WHERE id = $1 FOR UPDATE`, journal.ID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock journal for update: %w", err)
	}

	entries, err := models.DecodeHistory(encoded)
	if err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	entries = append(entries, entry)

	updatedHistory, err := models.EncodeHistory(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	journal.UpdateHistory = updatedHistory
	journal.LastUpdated = entry.Timestamp

	const query = `UPDATE journals SET journal_name = :journal_name, issn = :issn, publisher = :publisher, impact_factor = :impact_factor, formatting_requirements = :formatting_requirements, font_specifications = :font_specifications, word_count_limit = :word_count_limit, reference_style = :reference_style, reference_count_limit = :reference_count_limit, submission_url = :submission_url, official_guidelines_url = :official_guidelines_url, notes = :notes, update_history = :update_history, last_updated = :last_updated WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, journal); err != nil {
		return fmt.Errorf("update journal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update journal: %w", err)
	}
	return nil
}

// Delete removes a journal record. Returns sql.ErrNoRows when the id is
// unknown.
func (r *JournalRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM journals WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete journal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete journal rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementFlags bumps flags_count by exactly one. last_updated is left
// untouched.
func (r *JournalRepository) IncrementFlags(ctx context.Context, id string) error {
	const query = `UPDATE journals SET flags_count = flags_count + 1 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment flags: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment flags rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendComment appends a comment to the journal's encoded sequence and bumps
// last_updated to the comment timestamp, all in one transaction. The row is
// locked while the sequence is rewritten so concurrent appends serialize and
// none are lost.
func (r *JournalRepository) AppendComment(ctx context.Context, id string, comment models.Comment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append comment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var encoded string
	if err := tx.GetContext(ctx, &encoded, `SELECT comments FROM journals WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock journal for comment: %w", err)
	}

	comments, err := models.DecodeComments(encoded)
	if err != nil {
		return fmt.Errorf("decode comments: %w", err)
	}
	comments = append(comments, comment)

	updated, err := models.EncodeComments(comments)
	if err != nil {
		return fmt.Errorf("encode comments: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE journals SET comments = $2, last_updated = $3 WHERE id = $1`, id, updated, comment.Timestamp); err != nil {
		return fmt.Errorf("append comment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append comment: %w", err)
	}
	return nil
}
