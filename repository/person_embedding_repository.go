package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/faceblur/models"
)

// PersonEmbeddingRepository handles database operations for PersonEmbedding entities
type PersonEmbeddingRepository struct {
	DB *gorm.DB
}

// Ensure PersonEmbeddingRepository implements PersonEmbeddingRepositoryInterface
var _ PersonEmbeddingRepositoryInterface = (*PersonEmbeddingRepository)(nil)

// NewPersonEmbeddingRepository creates a new instance of PersonEmbeddingRepository
func NewPersonEmbeddingRepository(db *gorm.DB) *PersonEmbeddingRepository {
	return &PersonEmbeddingRepository{DB: db}
}

// Create creates a new embedding record in the database
func (r *PersonEmbeddingRepository) Create(embedding *models.PersonEmbedding) error {
	now := time.Now().Unix()
	if embedding.CreatedAt == 0 {
		embedding.CreatedAt = now
	}
	embedding.UpdatedAt = now

	err := r.DB.Create(embedding).Error
	if err != nil {
		return fmt.Errorf("failed to create embedding for person ID %d: %w", embedding.PersonID, err)
	}
	return nil
}

// GetByID retrieves an embedding by its ID
func (r *PersonEmbeddingRepository) GetByID(id uint) (*models.PersonEmbedding, error) {
	var embedding models.PersonEmbedding
	err := r.DB.Preload("Person").First(&embedding, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get embedding by ID %d: %w", id, err)
	}
	return &embedding, nil
}

// ListByPersonID retrieves all embeddings stored for one person
func (r *PersonEmbeddingRepository) ListByPersonID(personID uint) ([]models.PersonEmbedding, error) {
	var embeddings []models.PersonEmbedding
	err := r.DB.Where("person_id = ?", personID).Order("id ASC").Find(&embeddings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings for person ID %d: %w", personID, err)
	}
	return embeddings, nil
}

// ListAll retrieves every live embedding with its person preloaded
func (r *PersonEmbeddingRepository) ListAll() ([]models.PersonEmbedding, error) {
	var embeddings []models.PersonEmbedding
	err := r.DB.Preload("Person").Order("person_id ASC, id ASC").Find(&embeddings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	return embeddings, nil
}

// Update updates an existing embedding
func (r *PersonEmbeddingRepository) Update(embedding *models.PersonEmbedding) error {
	embedding.UpdatedAt = time.Now().Unix()
	result := r.DB.Model(&models.PersonEmbedding{ID: embedding.ID}).Updates(models.PersonEmbedding{
		EmbeddingData:  embedding.EmbeddingData,
		EmbeddingModel: embedding.EmbeddingModel,
		QualityScore:   embedding.QualityScore,
		UpdatedAt:      embedding.UpdatedAt,
	})

	if result.Error != nil {
		return fmt.Errorf("failed to update embedding ID %d: %w", embedding.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete soft-deletes an embedding by its ID
func (r *PersonEmbeddingRepository) Delete(id uint) error {
	result := r.DB.Delete(&models.PersonEmbedding{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete embedding ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByPersonID soft-deletes every embedding belonging to a person
func (r *PersonEmbeddingRepository) DeleteByPersonID(personID uint) error {
	err := r.DB.Where("person_id = ?", personID).Delete(&models.PersonEmbedding{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete embeddings for person ID %d: %w", personID, err)
	}
	return nil
}
