package services

import (
	"fmt"
	"log"
	"math"

	"gorm.io/gorm"

	"github.com/camden-git/faceblur/cluster"
	"github.com/camden-git/faceblur/database"
	"github.com/camden-git/faceblur/models"
	"github.com/camden-git/faceblur/repository"
	"github.com/camden-git/faceblur/session"
)

// DefaultSimilarityThreshold is the minimum cosine similarity for a cluster
// to be considered the same identity as a stored library person.
const DefaultSimilarityThreshold = 0.5

// RecognitionService matches the current working set's person clusters
// against the persisted library, and enrolls new identities into it.
type RecognitionService struct {
	db                  *gorm.DB
	personRepo          repository.PersonRepositoryInterface
	embeddingRepo       repository.PersonEmbeddingRepositoryInterface
	similarityThreshold float32
}

// NewRecognitionService creates a new recognition service
func NewRecognitionService(
	db *gorm.DB,
	personRepo repository.PersonRepositoryInterface,
	embeddingRepo repository.PersonEmbeddingRepositoryInterface,
	similarityThreshold float32,
) *RecognitionService {
	if similarityThreshold <= 0 {
		similarityThreshold = DefaultSimilarityThreshold
	}
	return &RecognitionService{
		db:                  db,
		personRepo:          personRepo,
		embeddingRepo:       embeddingRepo,
		similarityThreshold: similarityThreshold,
	}
}

// Match links one cluster in the working set to a library person.
type Match struct {
	ClusterID   string  `json:"cluster_id"`
	PersonID    uint    `json:"person_id"`
	PrimaryName string  `json:"primary_name"`
	Similarity  float32 `json:"similarity"`
	AutoBlur    bool    `json:"auto_blur"`
}

// MatchWorkspace compares every cluster against the stored embeddings and
// returns the best library match per cluster above the threshold. Clusters
// matched to an auto-blur person are selected in place.
func (s *RecognitionService) MatchWorkspace(ws *session.Workspace) ([]Match, error) {
	candidates, err := database.ListCandidateEmbeddings(s.db, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load library embeddings: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	decoded := make([][]float32, len(candidates))
	for i, c := range candidates {
		pe := models.PersonEmbedding{EmbeddingData: c.EmbeddingData}
		decoded[i] = pe.GetEmbedding()
	}

	var matches []Match
	for _, p := range ws.Persons() {
		best, ok := s.bestCandidate(p, candidates, decoded)
		if !ok {
			continue
		}
		matches = append(matches, best)

		if best.AutoBlur {
			ws.SetPersonSelected(p.ID, true)
			log.Printf("recognition: auto-selected %s (similarity %.3f)", best.PrimaryName, best.Similarity)
		}
	}
	return matches, nil
}

// bestCandidate scores a cluster against every stored embedding, taking the
// highest member-to-candidate similarity.
func (s *RecognitionService) bestCandidate(p *cluster.Person, candidates []database.CandidateEmbedding, decoded [][]float32) (Match, bool) {
	var best Match
	var bestSim float32

	for i, c := range candidates {
		if decoded[i] == nil {
			continue
		}
		for _, member := range p.Members {
			sim := CalculateSimilarity(member.Embedding, decoded[i])
			if sim > bestSim {
				bestSim = sim
				best = Match{
					ClusterID:   p.ID,
					PersonID:    c.PersonID,
					PrimaryName: c.PrimaryName,
					Similarity:  sim,
					AutoBlur:    c.AutoBlur,
				}
			}
		}
	}

	if bestSim < s.similarityThreshold {
		return Match{}, false
	}
	return best, true
}

// EnrollCluster stores a cluster's member embeddings under a named library
// person, creating the person when the name is new.
func (s *RecognitionService) EnrollCluster(p *cluster.Person, primaryName string, autoBlur bool) (*models.Person, error) {
	person, err := s.personRepo.GetByName(primaryName)
	if err != nil {
		person = &models.Person{PrimaryName: primaryName, AutoBlur: autoBlur}
		if createErr := s.personRepo.Create(person); createErr != nil {
			return nil, fmt.Errorf("failed to enroll person %s: %w", primaryName, createErr)
		}
	}

	stored := 0
	for _, member := range p.Members {
		if member.Embedding == nil {
			continue
		}
		embedding := &models.PersonEmbedding{PersonID: person.ID}
		embedding.SetEmbedding(member.Embedding)
		if err := s.embeddingRepo.Create(embedding); err != nil {
			return nil, fmt.Errorf("failed to store embedding for %s: %w", primaryName, err)
		}
		stored++
	}

	log.Printf("recognition: enrolled %s with %d embedding(s)", primaryName, stored)
	return person, nil
}

// CalculateSimilarity calculates cosine similarity between two embeddings
func CalculateSimilarity(embedding1, embedding2 []float32) float32 {
	if len(embedding1) != len(embedding2) || len(embedding1) == 0 {
		return 0.0
	}

	var dotProduct float32
	var norm1 float32
	var norm2 float32

	for i := 0; i < len(embedding1); i++ {
		dotProduct += embedding1[i] * embedding2[i]
		norm1 += embedding1[i] * embedding1[i]
		norm2 += embedding2[i] * embedding2[i]
	}

	if norm1 == 0 || norm2 == 0 {
		return 0.0
	}

	norm1Sqrt := float32(math.Sqrt(float64(norm1)))
	norm2Sqrt := float32(math.Sqrt(float64(norm2)))

	return dotProduct / (norm1Sqrt * norm2Sqrt)
}
