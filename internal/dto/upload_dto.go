package dto

// UploadFile is one file handed to the upload flow: name plus raw bytes.
type UploadFile struct {
	Filename string
	Data     []byte
}

// DedupResult partitions a submitted file set after the duplicate check.
type DedupResult struct {
	Unique         []UploadFile
	Duplicates     []DuplicateFile
	DuplicateCount int
}

type DuplicateFile struct {
	Filename      string
	Hash          string
	ExistingId    string
	ExistingTitle string
}

// UploadResult summarizes what StartUpload did. A nil BatchId with a
// non-zero SkippedDuplicates means everything was already in the library and
// no batch was created.
type UploadResult struct {
	BatchId           string
	TaskCount         int
	SkippedDuplicates int
	SkippedTitles     []string
}
