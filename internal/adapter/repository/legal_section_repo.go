package repository

import (
	"context"
	"errors"
	"fmt"

	"legal-rag/internal/domain"

	"github.com/jackc/pgx/v5"
)

const getStatuteTextQuery = `
		SELECT act, section_number, title, content
		FROM legal_sections
		WHERE act = $1 AND section_number = $2
	`

const upsertStatuteQuery = `
		INSERT INTO legal_sections (act, section_number, title, content)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (act, section_number)
		DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content, updated_at = now()
	`

type legalSectionRepository struct {
	db DB
}

// NewLegalSectionRepository creates the statute store backed by legal_sections.
func NewLegalSectionRepository(db DB) domain.StatuteStore {
	return &legalSectionRepository{db: db}
}

func (r *legalSectionRepository) GetStatuteText(ctx context.Context, act, sectionNumber string) (*domain.StatuteText, error) {
	var st domain.StatuteText
	err := getExecutor(ctx, r.db).QueryRow(ctx, getStatuteTextQuery, act, sectionNumber).
		Scan(&st.Act, &st.SectionNumber, &st.Title, &st.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statute text: %w", err)
	}
	return &st, nil
}

func (r *legalSectionRepository) UpsertStatute(ctx context.Context, s domain.StatuteText) error {
	if s.Act == "" || s.SectionNumber == "" {
		return fmt.Errorf("%w: act and section number are required", domain.ErrInvalidInput)
	}
	if _, err := getExecutor(ctx, r.db).Exec(ctx, upsertStatuteQuery, s.Act, s.SectionNumber, s.Title, s.Text); err != nil {
		return fmt.Errorf("failed to upsert statute: %w", err)
	}
	return nil
}
