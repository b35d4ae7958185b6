package models

import "time"

type Project struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Path          string            `json:"path"`
	Config        map[string]string `json:"config,omitempty"`
	Active        bool              `json:"active"`
	CreatedAt     time.Time         `json:"createdAt"`
	LastIndexedAt *time.Time        `json:"lastIndexedAt,omitempty"`
}

type IndexMode string

const (
	IndexFull        IndexMode = "full"
	IndexIncremental IndexMode = "incremental"
)

type IndexJobStatus string

const (
	JobPending   IndexJobStatus = "pending"
	JobRunning   IndexJobStatus = "running"
	JobCompleted IndexJobStatus = "completed"
	JobFailed    IndexJobStatus = "failed"
)

type IndexJob struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"projectID"`
	Mode      IndexMode      `json:"mode"`
	Status    IndexJobStatus `json:"status"`
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   *time.Time     `json:"endedAt,omitempty"`
	Stats     map[string]int `json:"stats,omitempty"`
}

type Document struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectID"`
	Path      string `json:"path"`
	Content   string `json:"-"`
}

type SearchResult struct {
	Path      string  `json:"path"`
	Score     float64 `json:"score"`
	Preview   string  `json:"preview,omitempty"`
	StartLine int     `json:"startLine,omitempty"`
	EndLine   int     `json:"endLine,omitempty"`
}

// Knowledge entities for curated, verified information.
type Knowledge struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"projectID"`
	SourceType string  `json:"sourceType"` // code|doc|web
	PathOrURL  string  `json:"pathOrURL"`
	Title      string  `json:"title,omitempty"`
	Text       string  `json:"text"`
	TrustScore float64 `json:"trustScore"`
	Pinned     bool    `json:"pinned"`
	CommitSHA  string  `json:"commitSHA,omitempty"`
	Files      string  `json:"files,omitempty"`
	Symbols    string  `json:"symbols,omitempty"`
	Tags       string  `json:"tags,omitempty"`
}

// Run/ExecutionLog models for recording executions (shell/fs/hooks/mcp)
type Run struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"projectID"`
	Type      string     `json:"type"`   // chat|edit|index|hooks|shell|fs|mcp
	Status    string     `json:"status"` // pending|running|completed|failed
	StartedAt time.Time  `json:"startedAt"`
	Finished  *time.Time `json:"finishedAt,omitempty"`
	Metrics   string     `json:"metrics,omitempty"`
	LogsRef   string     `json:"logsRef,omitempty"`
}

type ExecutionLog struct {
	ID         string     `json:"id"`
	RunID      string     `json:"runID"`
	Kind       string     `json:"kind"` // shell|fs|hook|mcp
	PayloadRef string     `json:"payloadRef,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	ExitCode   int        `json:"exitCode"`
}

// EntityType enumerates the well-known kinds of Entity. The set is
// extensible; an unrecognized string is stored and retrieved as-is.
type EntityType string

const (
	EntityFile      EntityType = "file"
	EntityFunction  EntityType = "function"
	EntityClass     EntityType = "class"
	EntityInterface EntityType = "interface"
	EntityMethod    EntityType = "method"
	EntityModule    EntityType = "module"
	EntityDocument  EntityType = "document"
	EntitySection   EntityType = "section"
	EntityDecision  EntityType = "decision"
	EntitySession   EntityType = "session"
	EntityConcept   EntityType = "concept"
)

// EntityMetadata is a tagged-variant bag: well-known fields get typed
// accessors, everything else rides in Extra.
type EntityMetadata struct {
	TrustScore   float64           `json:"trustScore,omitempty"`
	Pinned       bool              `json:"pinned,omitempty"`
	DecisionFlag bool              `json:"decisionFlag,omitempty"`
	TokenTotal   int               `json:"tokenTotal,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Entity is a uniquely named unit of knowledge: a code symbol, file, document
// section, decision, or session surfaced for retrieval.
type Entity struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"projectID"`
	Type          EntityType     `json:"type"`
	Name          string         `json:"name"`
	QualifiedName string         `json:"qualifiedName"` // unique within project: "path::symbol"
	Content       string         `json:"content,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	FilePath      string         `json:"filePath,omitempty"`
	StartLine     int            `json:"startLine,omitempty"`
	EndLine       int            `json:"endLine,omitempty"`
	ContentHash   string         `json:"contentHash,omitempty"`
	Metadata      EntityMetadata `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// RelationshipType enumerates well-known edge kinds between entities.
type RelationshipType string

const (
	RelCalls      RelationshipType = "calls"
	RelImports    RelationshipType = "imports"
	RelImplements RelationshipType = "implements"
	RelReferences RelationshipType = "references"
	RelRelatesTo  RelationshipType = "relates_to"
	RelSupersedes RelationshipType = "supersedes"
	RelMentions   RelationshipType = "mentions"
)

// Relationship is a directed, weighted edge between two entities.
type Relationship struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"projectID"`
	SourceID  string           `json:"sourceId"`
	TargetID  string           `json:"targetId"`
	Type      RelationshipType `json:"type"`
	Weight    float64          `json:"weight"` // [0,1]
}

// EmbeddingChunk is one contiguous, sized slice of an entity's content
// submitted for embedding.
type EmbeddingChunk struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectID"`
	EntityID    string    `json:"entityId"`
	ChunkIndex  int       `json:"chunkIndex"`
	StartOffset int       `json:"startOffset"`
	EndOffset   int       `json:"endOffset"`
	Text        string    `json:"text"`
	Vector      []float32 `json:"vector,omitempty"`
	ModelID     string    `json:"modelId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SessionStatus is the lifecycle stage of a Session.
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionArchived   SessionStatus = "archived"
	SessionSummarized SessionStatus = "summarized"
)

// Session is a conversation scope owning Messages and Decisions.
type Session struct {
	ID           string        `json:"id"`
	ProjectID    string        `json:"projectID"`
	Name         string        `json:"name,omitempty"`
	Status       SessionStatus `json:"status"`
	Summary      string        `json:"summary,omitempty"`
	MessageCount int           `json:"messageCount"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	ArchivedAt   *time.Time    `json:"archivedAt,omitempty"`
}

// MessageRole identifies the speaker of a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one turn in a Session's conversation. Metadata may carry
// tool_calls, tokens, or a type tag such as "decision"/"reflection".
type Message struct {
	ID        string            `json:"id"`
	SessionID string            `json:"sessionId"`
	Role      MessageRole       `json:"role"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// DecisionStatus is the lifecycle stage of a recorded Decision.
type DecisionStatus string

const (
	DecisionOpen       DecisionStatus = "open"
	DecisionSuperseded DecisionStatus = "superseded"
)

// Decision is a captured choice extracted from conversation, mirrored as an
// Entity of type "decision" so it participates in graph retrieval.
type Decision struct {
	ID               string         `json:"id"`
	SessionID        string         `json:"sessionId"`
	MessageID        string         `json:"messageId,omitempty"`
	Description      string         `json:"description"`
	Context          string         `json:"context,omitempty"`
	Alternatives     []string       `json:"alternatives,omitempty"`
	RelatedEntityIDs []string       `json:"relatedEntityIds,omitempty"`
	Status           DecisionStatus `json:"status"`
	SupersededBy     string         `json:"supersededBy,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// Checkpoint is resumable indexer state persisted between batches. SessionID
// here names the indexer run, not a conversation Session.
type Checkpoint struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectID"`
	SessionID   string    `json:"sessionId"`
	StepNumber  int       `json:"stepNumber"`
	State       string    `json:"state"` // opaque JSON: processed path -> content hash map
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// QueryLog records one retrieval call for analytics.
type QueryLog struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"projectID"`
	Query            string    `json:"query"`
	TokensRetrieved  int       `json:"tokensRetrieved"`
	TokensSaved      int       `json:"tokensSaved"`
	AverageRelevance float64   `json:"averageRelevance"`
	StrategiesUsed   []string  `json:"strategiesUsed,omitempty"`
	LatencyMS        int64     `json:"latencyMs"`
	WasUseful        *bool     `json:"wasUseful,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
