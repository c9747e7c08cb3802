package models

import (
	"time"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	RealName     string `gorm:"not null"                 json:"real_name"`
	Role         string `gorm:"not null"                 json:"role"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"      json:"id"`
	Username  string    `gorm:"index;not null"  json:"username"`
	Token     string    `gorm:"unique;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null"        json:"expires_at"`
}

type JobStatus string

const (
	StatusPending JobStatus = "PENDING"
	StatusDone    JobStatus = "DONE"
	StatusFailed  JobStatus = "FAILED"
)

type UploadJob struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username         string    `gorm:"index;not null"           json:"username"`
	OriginalFilename string    `gorm:"size:255"                 json:"original_filename"`
	Extension        string    `json:"extension"`
	BlobURL          string    `gorm:"not null"                 json:"blob_url"`
	Status           JobStatus `gorm:"not null"                 json:"status"`
	UploadedAt       time.Time `gorm:"autoCreateTime"           json:"uploaded_at"`
}

type AnalysisResult struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID      uint      `gorm:"index;not null"           json:"job_id"`
	Username   string    `gorm:"index;not null"           json:"username"`
	Score      *float64  `json:"score"`
	Feedback   string    `gorm:"type:text"                json:"feedback"`
	AnalyzedAt time.Time `gorm:"autoCreateTime"           json:"analyzed_at"`
}
