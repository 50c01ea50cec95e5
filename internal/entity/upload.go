package entity

import "time"

type UploadTask struct {
	TaskId          string
	BatchId         string
	Filename        string
	FileSize        int64
	Data            []byte
	Status          string
	ProgressPercent int
	CurrentStep     string
	ErrorMessage    string
	Priority        int
}

type BatchUpload struct {
	BatchId           string
	Tasks             []*UploadTask
	CreatedAt         time.Time
	DuplicatesSkipped int
}

// FindTask returns the task with the given id, or nil.
func (b *BatchUpload) FindTask(taskId string) *UploadTask {
	for _, t := range b.Tasks {
		if t.TaskId == taskId {
			return t
		}
	}
	return nil
}
