package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job 表示一个带打分权重配置的招聘需求。
// Criteria is the normalized weight map (criterion name -> weight in [0,1],
// weights summing to 1); an empty/null column means no criteria configured.
type Job struct {
	gorm.Model
	Title              string         `gorm:"size:255"`
	Description        string         `gorm:"type:text"`
	Location           string         `gorm:"size:255"`
	ExperienceRequired string         `gorm:"size:64"`
	Criteria           datatypes.JSON `gorm:"type:jsonb"`
	Candidates         []Candidate    `gorm:"constraint:OnDelete:CASCADE"`
}

// Candidate 表示投递到某个职位的一份简历。
// Name/Email/Score/Subscores/Justification stay null until the external
// parser writes results back; a null Score renders as "processing".
type Candidate struct {
	gorm.Model
	JobID         uint           `gorm:"index;not null"`
	Job           Job            `gorm:"constraint:OnDelete:CASCADE"`
	Name          *string        `gorm:"size:255"`
	Email         *string        `gorm:"size:255"`
	Filename      string         `gorm:"size:512"`
	Score         *float64
	Subscores     datatypes.JSON `gorm:"type:jsonb"`
	Justification datatypes.JSON `gorm:"type:jsonb"`
	RawText       string         `gorm:"type:text"`
	ProcessedAt   *time.Time
}
