package storage

import (
	"time"

	"gorm.io/gorm"
)

// AppState stores small key/value checkpoints (e.g. the last processed day)
type AppState struct {
	StateKey   string `gorm:"primaryKey;size:64"`
	StateValue string `gorm:"type:text;not null"`
	UpdatedTS  int64  `gorm:"not null;index"`
}

func (AppState) TableName() string {
	return "app_state"
}

// AlertedToken is one dedup record: a token alerted on a given local day
type AlertedToken struct {
	Day       string  `gorm:"primaryKey;size:10"`
	TokenID   string  `gorm:"primaryKey;size:160"`
	Chain     string  `gorm:"size:16;not null;index"`
	Hour      int     `gorm:"not null"`
	Score     float64 `gorm:"type:decimal(7,3);not null"`
	SentTS    int64   `gorm:"not null;index"`
	CreatedTS int64   `gorm:"not null"`
}

func (AlertedToken) TableName() string {
	return "alerted_tokens"
}

// AlertLog is the delivery history of every alert attempt
type AlertLog struct {
	ID        string  `gorm:"primaryKey;size:36"`
	TokenID   string  `gorm:"size:160;not null;index"`
	Chain     string  `gorm:"size:16;not null;index"`
	Symbol    string  `gorm:"size:64"`
	Tier      string  `gorm:"size:8;not null"`
	Action    string  `gorm:"size:16;not null"`
	Score     float64 `gorm:"type:decimal(7,3);not null"`
	Threshold float64 `gorm:"type:decimal(7,3);not null"`
	Attempt   int     `gorm:"not null;default:1"`
	Status    string  `gorm:"size:16;not null;index"`
	Error     string  `gorm:"type:text"`
	CreatedTS int64   `gorm:"not null;index"`
}

func (AlertLog) TableName() string {
	return "alert_log"
}

// HeldCandidate is a queued or held candidate persisted across restarts
type HeldCandidate struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Queue     string `gorm:"size:16;not null;index"`
	TokenID   string `gorm:"size:160;not null"`
	Payload   string `gorm:"type:mediumtext;not null"`
	CreatedTS int64  `gorm:"not null"`
}

func (HeldCandidate) TableName() string {
	return "held_candidates"
}

// BeforeCreate hooks fill in timestamps
func (a *AppState) BeforeCreate(tx *gorm.DB) error {
	if a.UpdatedTS == 0 {
		a.UpdatedTS = time.Now().Unix()
	}
	return nil
}

func (t *AlertedToken) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedTS == 0 {
		t.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (l *AlertLog) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedTS == 0 {
		l.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (h *HeldCandidate) BeforeCreate(tx *gorm.DB) error {
	if h.CreatedTS == 0 {
		h.CreatedTS = time.Now().Unix()
	}
	return nil
}
