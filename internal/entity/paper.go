package entity

import "time"

// Paper is the denormalized library projection. Upload tasks create
// provisional entries that batch events promote until the authoritative
// listing replaces them.
type Paper struct {
	Id              string
	Title           string
	Filename        string
	Status          string
	ProgressPercent int
	ErrorMessage    string
	ChunkCount      int
	Provisional     bool
	UploadedAt      time.Time
}

type UsageStats struct {
	PaperCount  int
	ChunkCount  int
	QueryCount  int
	RefreshedAt time.Time
}
