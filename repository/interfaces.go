package repository

import (
	"github.com/camden-git/faceblur/models"
)

// PersonRepositoryInterface defines the methods for library person data operations
type PersonRepositoryInterface interface {
	Create(person *models.Person) error
	GetByID(id uint) (*models.Person, error)
	GetByName(primaryName string) (*models.Person, error)
	ListAll() ([]models.Person, error)
	Update(person *models.Person) error
	Delete(id uint) error
}

// PersonEmbeddingRepositoryInterface defines the methods for stored embedding operations
type PersonEmbeddingRepositoryInterface interface {
	Create(embedding *models.PersonEmbedding) error
	GetByID(id uint) (*models.PersonEmbedding, error)
	ListByPersonID(personID uint) ([]models.PersonEmbedding, error)
	ListAll() ([]models.PersonEmbedding, error)
	Update(embedding *models.PersonEmbedding) error
	Delete(id uint) error
	DeleteByPersonID(personID uint) error
}
