package db

import (
	"time"

	"gorm.io/datatypes"
)

type UserStatus string

const (
	UserPending UserStatus = "pending"
	UserActive  UserStatus = "active"
)

// Profile holds the descriptive fields captured at signup. They are written
// once on registration and only ever read afterwards.
type Profile struct {
	Age          *int   `gorm:"column:age"`
	Gender       string `gorm:"size:16"`
	DOB          string `gorm:"column:dob;size:32"`
	BirthTime    string `gorm:"size:32"`
	BirthPlace   string `gorm:"size:128"`
	Religion     string `gorm:"size:64"`
	Caste        string `gorm:"size:64;default:SENGUNTHAR"`
	SubCaste     string `gorm:"size:64"`
	Gothram      string `gorm:"size:64"`
	Star         string `gorm:"size:64"`
	Rasi         string `gorm:"size:64"`
	Education    string `gorm:"size:128"`
	Occupation   string `gorm:"size:128"`
	JobLocation  string `gorm:"size:128"`
	Income       string `gorm:"size:64"`
	Height       *int
	Weight       *int
	BodyType     string `gorm:"size:32"`
	Complexion   string `gorm:"size:32"`
	MotherTongue string `gorm:"size:64"`
	Disability   string `gorm:"size:64;default:no"`

	FatherOccupation string `gorm:"size:128"`
	MotherOccupation string `gorm:"size:128"`
	ElderBrothers    int    `gorm:"not null;default:0"`
	YoungerBrothers  int    `gorm:"not null;default:0"`
	ElderSisters     int    `gorm:"not null;default:0"`
	YoungerSisters   int    `gorm:"not null;default:0"`
	FamilyDetails    string `gorm:"type:text"`

	PartnerEducation     string `gorm:"size:128"`
	PartnerOccupation    string `gorm:"size:128"`
	PartnerIncome        string `gorm:"size:64"`
	PartnerMaritalStatus string `gorm:"size:32;default:unmarried"`
	PartnerExpectations  string `gorm:"type:text"`

	Address string `gorm:"type:text"`
	City    string `gorm:"size:64"`
	State   string `gorm:"size:64"`
	Pincode string `gorm:"size:16"`
	About   string `gorm:"type:text"`

	Interests    string `gorm:"type:text"`
	ProfilePhoto string `gorm:"size:255"` // storage reference
}

// User is a member account.
//
// Status only ever moves pending -> active; inactive accounts are hard-deleted
// by the reaper rather than tombstoned. LastLoginAt is set on registration and
// refreshed on every successful login.
type User struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	Name         string     `gorm:"size:128;not null"`
	Email        string     `gorm:"uniqueIndex;size:191;not null"`
	PasswordHash string     `gorm:"size:255;not null"`
	Phone        string     `gorm:"size:32"`
	WhatsApp     string     `gorm:"column:whatsapp;size:32"`
	Status       UserStatus `gorm:"size:16;not null;default:pending;index:idx_users_status_created,priority:1"`
	Profile      Profile    `gorm:"embedded"`
	LastLoginAt  time.Time  `gorm:"not null;index"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index:idx_users_status_created,priority:2"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

// Admin is an operator account. Admins are seeded, never self-registered.
type Admin struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	Name         string    `gorm:"size:128;not null"`
	Email        string    `gorm:"uniqueIndex;size:191;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

type DocType string

const (
	DocCommunity DocType = "community"
	DocJathagam  DocType = "jathagam"
)

// UserDoc references one uploaded verification document.
type UserDoc struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"not null;index"`
	DocType   DocType   `gorm:"size:32;not null"`
	Reference string    `gorm:"column:path;size:255;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// MatchRequest is a one-directional proposal.
//
// Unique index idx_match_requests_pair(sender_id, receiver_id) allows a single
// request per ordered pair. The reverse direction is a separate pair.
// Status leaves pending exactly once; RespondedAt is stamped at that moment.
type MatchRequest struct {
	ID          uint64        `gorm:"primaryKey;autoIncrement"`
	SenderID    uint64        `gorm:"not null;uniqueIndex:idx_match_requests_pair,priority:1"`
	ReceiverID  uint64        `gorm:"not null;uniqueIndex:idx_match_requests_pair,priority:2;index:idx_match_requests_receiver_status,priority:1"`
	Status      RequestStatus `gorm:"size:16;not null;default:pending;index:idx_match_requests_receiver_status,priority:2"`
	CreatedAt   time.Time     `gorm:"autoCreateTime"`
	RespondedAt *time.Time
}

// Match is the symmetric record created when a request is accepted.
// UserA always holds the smaller id so the unique index covers the
// unordered pair.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserA     uint64    `gorm:"column:user_a;not null;uniqueIndex:idx_matches_pair,priority:1"`
	UserB     uint64    `gorm:"column:user_b;not null;uniqueIndex:idx_matches_pair,priority:2;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// OrderedPair returns (low, high) for storing an unordered pair.
func OrderedPair(a, b uint64) (uint64, uint64) {
	if a > b {
		return b, a
	}
	return a, b
}

type NotificationType string

const (
	NotifyAccountApproved   NotificationType = "account_approved"
	NotifyMatchRequest      NotificationType = "match_request"
	NotifyMatchAccepted     NotificationType = "match_accepted"
	NotifyMatchMade         NotificationType = "match_made"
	NotifyInactivityWarning NotificationType = "account_inactivity_warning"
)

// Notification is an append-only inbox entry. Only IsRead is ever updated.
type Notification struct {
	ID        uint64           `gorm:"primaryKey;autoIncrement"`
	UserID    uint64           `gorm:"not null;index:idx_notifications_user_created,priority:1"`
	Type      NotificationType `gorm:"size:48;not null"`
	Message   string           `gorm:"type:text;not null"`
	Payload   datatypes.JSON   `gorm:"not null"` // always a JSON object, "{}" when empty
	IsRead    bool             `gorm:"not null;default:false"`
	CreatedAt time.Time        `gorm:"autoCreateTime;index:idx_notifications_user_created,priority:2,sort:desc"`
}

// All lists every model for migrations and test setup.
func All() []any {
	return []any{&User{}, &Admin{}, &UserDoc{}, &MatchRequest{}, &Match{}, &Notification{}}
}
