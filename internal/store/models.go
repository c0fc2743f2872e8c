package store

import "time"

type TaskStatus string

const (
	TaskStatusDraft     TaskStatus = "draft"
	TaskStatusAccepted  TaskStatus = "accepted"
	TaskStatusRejected  TaskStatus = "rejected"
	TaskStatusCompleted TaskStatus = "completed"
)

type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

type DealStatus string

const (
	DealStatusDraft    DealStatus = "draft"
	DealStatusAccepted DealStatus = "accepted"
	DealStatusRejected DealStatus = "rejected"
	DealStatusWon      DealStatus = "won"
	DealStatusLost     DealStatus = "lost"
)

type DealStage string

const (
	DealStageLead        DealStage = "lead"
	DealStageQualified   DealStage = "qualified"
	DealStageContacted   DealStage = "contacted"
	DealStageDemo        DealStage = "demo"
	DealStageProposal    DealStage = "proposal"
	DealStageNegotiation DealStage = "negotiation"
	DealStageClosed      DealStage = "closed"
	DealStageClosedWon   DealStage = "closed_won"
)

type ContactSource string

const (
	ContactSourceManual          ContactSource = "manual"
	ContactSourceEmailExtraction ContactSource = "email_extraction"
)

// Task is an extraction awaiting review or already triaged. Records are
// produced by the upstream email-extraction worker in draft status.
type Task struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Status        TaskStatus   `json:"status"`
	Priority      TaskPriority `json:"priority"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
	Assignee      *string      `json:"assignee,omitempty"`
	DealID        *string      `json:"deal_id,omitempty"`
	SourceEmailID string       `json:"source_email_id"`
	Confidence    float64      `json:"confidence"`
	Agent         string       `json:"agent"`
	AuditSnippet  string       `json:"audit_snippet"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type Deal struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Value             *float64   `json:"value,omitempty"`
	Currency          string     `json:"currency"`
	Status            DealStatus `json:"status"`
	Stage             DealStage  `json:"stage"`
	Probability       *int       `json:"probability,omitempty"`
	ContactID         *string    `json:"contact_id,omitempty"`
	CompanyID         *string    `json:"company_id,omitempty"`
	ExpectedCloseDate *time.Time `json:"expected_close_date,omitempty"`
	SourceEmailID     string     `json:"source_email_id"`
	Confidence        float64    `json:"confidence"`
	Agent             string     `json:"agent"`
	AuditSnippet      string     `json:"audit_snippet"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Contact struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Email           string        `json:"email"`
	Name            string        `json:"name"`
	FirstName       *string       `json:"first_name,omitempty"`
	LastName        *string       `json:"last_name,omitempty"`
	Phone           *string       `json:"phone,omitempty"`
	CompanyID       *string       `json:"company_id,omitempty"`
	JobTitle        *string       `json:"job_title,omitempty"`
	LastContactDate *time.Time    `json:"last_contact_date,omitempty"`
	Source          ContactSource `json:"source"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type Company struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	Website   *string   `json:"website,omitempty"`
	Industry  *string   `json:"industry,omitempty"`
	Size      *string   `json:"size,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskPatch is a partial update. The id column is deliberately absent so a
// caller payload can never reassign it.
type TaskPatch struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty"`
	Priority    *TaskPriority `json:"priority,omitempty"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	Assignee    *string       `json:"assignee,omitempty"`
	DealID      *string       `json:"deal_id,omitempty"`
}

type DealPatch struct {
	Title             *string     `json:"title,omitempty"`
	Description       *string     `json:"description,omitempty"`
	Value             *float64    `json:"value,omitempty"`
	Currency          *string     `json:"currency,omitempty"`
	Status            *DealStatus `json:"status,omitempty"`
	Stage             *DealStage  `json:"stage,omitempty"`
	Probability       *int        `json:"probability,omitempty"`
	ContactID         *string     `json:"contact_id,omitempty"`
	CompanyID         *string     `json:"company_id,omitempty"`
	ExpectedCloseDate *time.Time  `json:"expected_close_date,omitempty"`
}

// TaskPage is one page of a task listing plus the continuation token for
// the next page. LastKey is empty when the listing is exhausted.
type TaskPage struct {
	Items   []Task
	LastKey string
	Count   int
}

type DealPage struct {
	Items   []Deal
	LastKey string
	Count   int
}
