package entity

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id        uuid.UUID
	Title     string
	Messages  []*Message
	CreatedAt time.Time
	UpdatedAt *time.Time
}
