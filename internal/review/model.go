package review

import (
	"fmt"
	"time"
)

// MarkupType is the drawing tool used to place a markup.
type MarkupType string

const (
	MarkupPoint     MarkupType = "point"
	MarkupCircle    MarkupType = "circle"
	MarkupArrow     MarkupType = "arrow"
	MarkupRectangle MarkupType = "rectangle"
	MarkupText      MarkupType = "text"
	MarkupFreehand  MarkupType = "freehand"
)

// markupStyle holds the render hints applied when a caller omits them.
type markupStyle struct {
	Color string
	Size  float64
}

var markupDefaults = map[MarkupType]markupStyle{
	MarkupPoint:     {Color: "red", Size: 12},
	MarkupCircle:    {Color: "orange", Size: 20},
	MarkupArrow:     {Color: "yellow", Size: 15},
	MarkupRectangle: {Color: "green", Size: 2},
	MarkupText:      {Color: "blue", Size: 14},
	MarkupFreehand:  {Color: "violet", Size: 3},
}

// Markup is a spatial annotation anchored on one image version.
// X and Y are percentages of the image width and height, not pixels.
type Markup struct {
	ID             string     `json:"id"`
	VersionID      string     `json:"version_id"`
	X              float64    `json:"x"`
	Y              float64    `json:"y"`
	Type           MarkupType `json:"type"`
	SequenceNumber int        `json:"sequence_number"` // dense 1..N within VersionID
	Color          string     `json:"color"`
	Size           float64    `json:"size"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	UpdatedAt      time.Time  `json:"updated_at"`
	FeedbackID     string     `json:"feedback_id,omitempty"` // empty when no feedback is linked

	// Cached thread rollup, rewritten after every comment mutation.
	CommentCount          int  `json:"comment_count"`
	HasUnresolvedComments bool `json:"has_unresolved_comments"`
}

// Rollup returns the cached comment rollup of the markup.
func (m *Markup) Rollup() Rollup {
	return Rollup{CommentCount: m.CommentCount, HasUnresolved: m.HasUnresolvedComments}
}

type FeedbackCategory string

const (
	CategoryColor       FeedbackCategory = "color"
	CategoryTypography  FeedbackCategory = "typography"
	CategoryLayout      FeedbackCategory = "layout"
	CategoryContent     FeedbackCategory = "content"
	CategorySize        FeedbackCategory = "size"
	CategoryPositioning FeedbackCategory = "positioning"
	CategoryStyle       FeedbackCategory = "style"
	CategoryGeneral     FeedbackCategory = "general"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type FeedbackStatus string

const (
	StatusPending    FeedbackStatus = "pending"
	StatusInProgress FeedbackStatus = "in_progress"
	StatusResolved   FeedbackStatus = "resolved"
	StatusRejected   FeedbackStatus = "rejected"
)

// Feedback is a structured review record owned by exactly one Markup.
type Feedback struct {
	ID          string           `json:"id"`
	MarkupID    string           `json:"markup_id"`
	VersionID   string           `json:"version_id"`
	ProjectID   string           `json:"project_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    FeedbackCategory `json:"category"`
	Priority    Priority         `json:"priority"`
	Status      FeedbackStatus   `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	CreatedBy   string           `json:"created_by"`
	UpdatedAt   time.Time        `json:"updated_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
}

// SubjectType names the id space a comment thread is attached to.
type SubjectType string

const (
	SubjectMarkup        SubjectType = "markup"
	SubjectChecklistItem SubjectType = "checklist_item"
)

// Subject is the composite key of a comment thread.
type Subject struct {
	Type SubjectType `json:"type" validate:"required,oneof=markup checklist_item"`
	ID   string      `json:"id" validate:"notblank"`
}

// MarkupSubject returns the thread key of a markup.
func MarkupSubject(markupID string) Subject {
	return Subject{Type: SubjectMarkup, ID: markupID}
}

// ChecklistSubject returns the thread key of a checklist item.
func ChecklistSubject(itemID string) Subject {
	return Subject{Type: SubjectChecklistItem, ID: itemID}
}

func (s Subject) String() string {
	return fmt.Sprintf("%s:%s", s.Type, s.ID)
}

type AuthorRole string

const (
	RoleClient   AuthorRole = "client"
	RoleDesigner AuthorRole = "designer"
)

// Comment is one entry of a flat discussion thread. A reply has ParentID set
// to a top-level comment of the same subject; replies are never replied to.
type Comment struct {
	ID          string      `json:"id"`
	SubjectType SubjectType `json:"subject_type"`
	SubjectID   string      `json:"subject_id"`
	Position    int         `json:"position"` // insertion order within the subject
	AuthorID    string      `json:"author_id"`
	AuthorName  string      `json:"author_name"`
	AuthorRole  AuthorRole  `json:"author_role"`
	Content     string      `json:"content"`
	CreatedAt   time.Time   `json:"created_at"`
	ParentID    string      `json:"parent_id,omitempty"`
	IsResolved  bool        `json:"is_resolved"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
	ResolvedBy  string      `json:"resolved_by,omitempty"`
}

// Subject returns the thread key the comment belongs to.
func (c *Comment) Subject() Subject {
	return Subject{Type: c.SubjectType, ID: c.SubjectID}
}

// Thread is a top-level comment with its replies, built for display only.
type Thread struct {
	*Comment
	Replies []*Comment `json:"replies"`
}

// Rollup summarizes a comment thread.
type Rollup struct {
	CommentCount  int  `json:"comment_count"`
	HasUnresolved bool `json:"has_unresolved_comments"`
}

// GeneralFeedback is a version-level note owned by the workflow collaborator.
// The engine only carries it into archive snapshots.
type GeneralFeedback struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotData is the working set captured at a revision boundary.
type SnapshotData struct {
	Markups          []Markup          `json:"markups"`
	Feedbacks        []Feedback        `json:"feedbacks"`
	GeneralFeedbacks []GeneralFeedback `json:"general_feedbacks"`
}

// Snapshot is an archived copy of a version's working set for one revision.
type Snapshot struct {
	VersionID      string    `json:"version_id"`
	RevisionNumber int       `json:"revision_number"`
	ArchivedAt     time.Time `json:"archived_at"`
	SnapshotData
}

// Operation records one mutating command run against the database.
type Operation struct {
	ID         int64      `json:"id"`
	Operation  string     `json:"operation"`
	Parameters string     `json:"parameters"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
