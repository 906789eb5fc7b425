package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScopeAll is the only capability scope a token can carry.
const ScopeAll = "*"

type User struct {
	ID           uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string        `gorm:"not null"                 json:"name"`
	Email        string        `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string        `gorm:"not null"                 json:"-"`
	Role         Role          `gorm:"not null;default:user"    json:"role"`
	Tokens       []AccessToken `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type AccessToken struct {
	ID         uint       `gorm:"primaryKey"                json:"id"`
	UserID     uint       `gorm:"index;not null"            json:"user_id"`
	Name       string     `gorm:"not null"                  json:"name"`
	Scope      string     `gorm:"not null;default:*"        json:"scope"`
	SecretHash string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt  *time.Time `gorm:"index"                     json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ActivityLog rows are append-only: nothing in the application updates or
// deletes them.
type ActivityLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    *uint          `gorm:"index:idx_activity_logs_user_id;index:idx_activity_logs_user_created,priority:1" json:"user_id"`
	Role      string         `gorm:"size:32"    json:"role"`
	Action    Action         `gorm:"size:32;not null;index:idx_activity_logs_action" json:"action"`
	Table     *string        `gorm:"column:table_name;index:idx_activity_logs_table_name;index:idx_activity_logs_table_record,priority:1" json:"table_name"`
	RecordID  *uint64        `gorm:"index:idx_activity_logs_record_id;index:idx_activity_logs_table_record,priority:2" json:"record_id"`
	IPAddress string         `gorm:"size:45"    json:"ip_address"`
	Location  *string        `json:"location"`
	UserAgent string         `gorm:"type:text"  json:"user_agent"`
	OldData   datatypes.JSON `json:"old_data"`
	NewData   datatypes.JSON `json:"new_data"`
	CreatedAt time.Time      `gorm:"index:idx_activity_logs_created_at;index:idx_activity_logs_user_created,priority:2" json:"created_at"`
}

type Category struct {
	ID        uint      `gorm:"primaryKey"      json:"id"`
	Name      string    `gorm:"unique;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type News struct {
	ID          uint       `gorm:"primaryKey"          json:"id"`
	Title       string     `gorm:"not null"            json:"title"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug"`
	Content     string     `gorm:"type:text"           json:"content"`
	Image       string     `json:"image"`
	Featured    bool       `gorm:"default:false"       json:"featured"`
	CategoryID  *uint      `gorm:"index"               json:"category_id"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

const (
	ReportDraft     = "draft"
	ReportPublished = "published"
)

type MonthlyReport struct {
	ID          uint       `gorm:"primaryKey"           json:"id"`
	Title       string     `gorm:"not null"             json:"title"`
	Year        int        `gorm:"index;not null"       json:"year"`
	Month       int        `gorm:"not null"             json:"month"`
	Status      string     `gorm:"not null;default:draft" json:"status"`
	FilePath    string     `json:"file_path"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type YearlyReport struct {
	ID          uint       `gorm:"primaryKey"           json:"id"`
	Title       string     `gorm:"not null"             json:"title"`
	Year        int        `gorm:"uniqueIndex;not null" json:"year"`
	Status      string     `gorm:"not null;default:draft" json:"status"`
	FilePath    string     `json:"file_path"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type ServiceRequest struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FullName    string    `gorm:"not null"   json:"full_name"`
	Phone       string    `json:"phone"`
	Village     string    `json:"village"`
	CategoryID  *uint     `gorm:"index"      json:"category_id"`
	Status      string    `gorm:"not null;default:pending" json:"status"`
	Description string    `gorm:"type:text"  json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Audited is the registration table of entity types the change observer
// tracks. Tokens and activity logs are not tracked.
func Audited() []any {
	return []any{
		&User{},
		&Category{},
		&News{},
		&MonthlyReport{},
		&YearlyReport{},
		&ServiceRequest{},
	}
}

// All lists every model for AutoMigrate.
func All() []any {
	return append([]any{&AccessToken{}, &ActivityLog{}}, Audited()...)
}
