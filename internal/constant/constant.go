package constant

const (
	MessageKindQuery    = "query"
	MessageKindResponse = "response"

	// Upload task lifecycle. The remote side owns everything past "uploading";
	// local code only ever sets pending, uploading and error directly.
	TaskStatusPending    = "pending"
	TaskStatusUploading  = "uploading"
	TaskStatusProcessing = "processing"
	TaskStatusExtracting = "extracting"
	TaskStatusEmbedding  = "embedding"
	TaskStatusIndexing   = "indexing"
	TaskStatusComplete   = "complete"
	TaskStatusError      = "error"

	// Library projection states
	PaperStatusPending  = "pending"
	PaperStatusIndexing = "indexing"
	PaperStatusIndexed  = "indexed"
	PaperStatusError    = "error"

	// Default title given to a conversation created locally before the first
	// stream completes
	DefaultConversationTitle = "New conversation"

	CancelledTaskMessage = "Cancelled"
)
