package models

import (
	"math"

	"gorm.io/gorm"
)

// PersonEmbedding is one stored face embedding vector for a library person.
// It corresponds to the 'person_embeddings' table.
type PersonEmbedding struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonID       uint           `gorm:"index;not null" json:"person_id"`
	EmbeddingData  []byte         `gorm:"not null;column:embedding_data" json:"embedding_data"`                     // embedding vector as BLOB, 4 bytes per component
	EmbeddingModel string         `gorm:"not null;column:embedding_model;default:'arcface'" json:"embedding_model"` // Name of the model used for embedding
	QualityScore   *float32       `gorm:"column:quality_score" json:"quality_score,omitempty"`
	CreatedAt      int64          `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt      int64          `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Person *Person `gorm:"foreignKey:PersonID" json:"person,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (PersonEmbedding) TableName() string {
	return "person_embeddings"
}

// GetEmbedding converts the BLOB data to []float32.
func (pe *PersonEmbedding) GetEmbedding() []float32 {
	if len(pe.EmbeddingData) == 0 {
		return nil
	}

	embedding := make([]float32, len(pe.EmbeddingData)/4)
	for i := 0; i < len(embedding); i++ {
		offset := i * 4
		bits := uint32(pe.EmbeddingData[offset]) |
			uint32(pe.EmbeddingData[offset+1])<<8 |
			uint32(pe.EmbeddingData[offset+2])<<16 |
			uint32(pe.EmbeddingData[offset+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

// SetEmbedding converts []float32 to BLOB data.
func (pe *PersonEmbedding) SetEmbedding(embedding []float32) {
	if len(embedding) == 0 {
		pe.EmbeddingData = nil
		return
	}

	pe.EmbeddingData = make([]byte, len(embedding)*4)
	for i, val := range embedding {
		offset := i * 4
		bits := math.Float32bits(val)
		pe.EmbeddingData[offset] = byte(bits)
		pe.EmbeddingData[offset+1] = byte(bits >> 8)
		pe.EmbeddingData[offset+2] = byte(bits >> 16)
		pe.EmbeddingData[offset+3] = byte(bits >> 24)
	}
}
