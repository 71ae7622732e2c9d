package models

import (
	"time"

	"gorm.io/datatypes"
)

// Review run states. A run moves forward through these in order and ends in
// done, failed or cancelled.
const (
	ReviewStateIdle      = "idle"
	ReviewStateLoading   = "loading"
	ReviewStatePrompting = "prompting"
	ReviewStateStreaming = "streaming"
	ReviewStateParsing   = "parsing"
	ReviewStateApplying  = "applying"
	ReviewStateDone      = "done"
	ReviewStateFailed    = "failed"
	ReviewStateCancelled = "cancelled"
)

// ReviewRun is the audit record of one AI review of a bounty.
type ReviewRun struct {
	ID            string            `gorm:"primaryKey;size:36" json:"id"`
	BountyID      string            `gorm:"size:36;index;not null" json:"bounty_id"`
	Provider      string            `gorm:"size:32" json:"provider"`
	CorrelationID string            `gorm:"size:64;index" json:"correlation_id"`
	State         string            `gorm:"size:16;not null" json:"state"`
	Chunks        int               `gorm:"default:0" json:"chunks"`
	Images        int               `gorm:"default:0" json:"images"`
	StreamError   string            `gorm:"type:text" json:"stream_error"`
	ParseError    string            `gorm:"type:text" json:"parse_error"`
	Selections    datatypes.JSON    `json:"selections"`
	Report        datatypes.JSONMap `json:"report"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
}
