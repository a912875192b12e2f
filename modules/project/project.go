// Package project implements owner-scoped project CRUD. Every query is
// filtered by owner so one tenant can never see or mutate another's rows.
package project

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidTitle    = errors.New("project title is required")
	ErrInvalidStatus   = errors.New("invalid project status")
)

// Status is the closed set of project states.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusCompleted Status = "completed"
)

// ParseStatus validates a client-supplied status; empty means "keep or
// default" and is resolved by the caller.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusInactive, StatusCompleted:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

const maxTitleLength = 120

type Project struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLength {
		return "", ErrInvalidTitle
	}
	return title, nil
}
