package models

// Person is a known identity in the local library using GORM.
// It corresponds to the 'people' table.
type Person struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PrimaryName string `gorm:"not null" json:"primary_name"`
	// AutoBlur marks identities that should start selected whenever
	// recognition matches them in a new working set.
	AutoBlur  bool  `gorm:"not null;default:true" json:"auto_blur"`
	CreatedAt int64 `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt int64 `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp

	Embeddings []PersonEmbedding `gorm:"foreignKey:PersonID;constraint:OnDelete:CASCADE" json:"embeddings,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Person) TableName() string {
	return "people"
}
