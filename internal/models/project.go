package models

import "time"

type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "pending"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusPending, ProjectStatusInProgress, ProjectStatusCompleted:
		return true
	}
	return false
}

type Project struct {
	ID          string
	Name        string
	Description string
	Status      ProjectStatus
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectWithOwner is a project row joined with its owner's public fields.
type ProjectWithOwner struct {
	Project
	OwnerName  string
	OwnerEmail string
}

// Contract is the contract + payment proof pair uploaded for a project.
type Contract struct {
	ID          string
	ProjectID   string
	ContractURL string
	ContractKey string
	PaymentURL  string
	PaymentKey  string
	CreatedAt   time.Time
}

type MessageType string

const (
	MessageTypeUpdate  MessageType = "update"
	MessageTypeMessage MessageType = "message"
)

func (t MessageType) Valid() bool {
	return t == MessageTypeUpdate || t == MessageTypeMessage
}

type Message struct {
	ID        string
	ProjectID string
	SenderID  string
	Type      MessageType
	Content   string
	CreatedAt time.Time
}
