// Package cluster groups detected faces into person clusters by embedding
// distance. Clusters may span images: the same visual identity appearing in
// several photos merges into one person.
package cluster

import (
	"image"
	"log"
	"math"

	"github.com/google/uuid"

	"github.com/camden-git/faceblur/region"
)

// DefaultThreshold is the Euclidean distance below which two embeddings are
// considered the same person.
const DefaultThreshold = 0.6

// Person is a derived grouping of face records judged to depict one
// individual. It is recomputed whenever the underlying face set changes and is
// never mutated directly; selection toggles fan out to the member faces.
type Person struct {
	ID      string
	Members []*region.Face

	// IsChild is true iff strictly more than half the members carry the
	// child flag; an even 50/50 split counts as not child.
	IsChild bool

	// AvgAge is the rounded mean age of members with an age estimate.
	AvgAge int
}

// Thumbnail returns the representative thumbnail: the first member's.
func (p *Person) Thumbnail() image.Image {
	if len(p.Members) == 0 {
		return nil
	}
	return p.Members[0].Thumbnail
}

// Selected reports whether any member face is selected.
func (p *Person) Selected() bool {
	for _, f := range p.Members {
		if f.Selected {
			return true
		}
	}
	return false
}

// SetSelected sets every member face's selection flag. No other face is
// touched.
func (p *Person) SetSelected(selected bool) {
	for _, f := range p.Members {
		f.Selected = selected
	}
}

// Distance returns the Euclidean distance between two embeddings, or +Inf
// when either is missing or the lengths differ, so such faces never merge.
func Distance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Cluster groups faces by greedy single-pass union: the first unassigned face
// seeds a cluster, and every remaining unassigned face within threshold of
// that seed joins it. Membership is compared against the seed only, never
// re-scored after additions, so two members need not be within threshold of
// each other. Output is deterministic for a fixed input order.
func Cluster(faces []*region.Face, threshold float64) []*Person {
	if len(faces) == 0 {
		return nil
	}

	assigned := make([]bool, len(faces))
	var persons []*Person

	for i, seed := range faces {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		members := []*region.Face{seed}

		for j := i + 1; j < len(faces); j++ {
			if assigned[j] {
				continue
			}
			if Distance(seed.Embedding, faces[j].Embedding) < threshold {
				assigned[j] = true
				members = append(members, faces[j])
			}
		}

		persons = append(persons, newPerson(members))
	}

	log.Printf("cluster: grouped %d face(s) into %d person(s) at threshold %.2f", len(faces), len(persons), threshold)
	return persons
}

func newPerson(members []*region.Face) *Person {
	children := 0
	ageSum := 0
	aged := 0
	for _, f := range members {
		if f.Child {
			children++
		}
		if f.Age > 0 {
			ageSum += f.Age
			aged++
		}
	}

	avg := 0
	if aged > 0 {
		avg = int(math.Round(float64(ageSum) / float64(aged)))
	}

	return &Person{
		ID:      uuid.NewString(),
		Members: members,
		IsChild: children*2 > len(members),
		AvgAge:  avg,
	}
}
