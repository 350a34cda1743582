package database

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// CandidateEmbedding is a raw embedding row joined with its owner, shaped for
// the recognition matcher.
type CandidateEmbedding struct {
	PersonID      uint
	PrimaryName   string
	AutoBlur      bool
	EmbeddingData []byte
}

// ListCandidateEmbeddings pulls every live embedding with its person in one
// query over GORM's underlying connection. Recognition runs this per working
// set, so it skips ORM hydration and scans straight into the candidate shape.
func ListCandidateEmbeddings(db *gorm.DB, model string) ([]CandidateEmbedding, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	queryBuilder := psql.Select("pe.person_id", "p.primary_name", "p.auto_blur", "pe.embedding_data").
		From("person_embeddings pe").
		Join("people p ON p.id = pe.person_id").
		Where(sq.Eq{"pe.deleted_at": nil}).
		OrderBy("pe.person_id ASC", "pe.id ASC")
	if model != "" {
		queryBuilder = queryBuilder.Where(sq.Eq{"pe.embedding_model": model})
	}

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for ListCandidateEmbeddings: %w", err)
	}

	rows, err := sqlDB.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute ListCandidateEmbeddings query: %w", err)
	}
	defer rows.Close()

	candidates := []CandidateEmbedding{}
	for rows.Next() {
		var c CandidateEmbedding
		if err := rows.Scan(&c.PersonID, &c.PrimaryName, &c.AutoBlur, &c.EmbeddingData); err != nil {
			return nil, fmt.Errorf("failed to scan candidate embedding row: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate embedding rows: %w", err)
	}
	return candidates, nil
}
