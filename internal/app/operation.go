package app

// Operation statuses recorded in the history.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation is the history record of one CLI command. It lives in memory
// with ID 0 until the first mutation persists it.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string // JSON encoded command arguments
	Status     string
}

// NewOperation starts tracking a command, optimistically successful.
func NewOperation(operation string) *Operation {
	return &Operation{Operation: operation, Status: StatusSuccess}
}

// Fail marks the command as errored. It cannot be undone.
func (op *Operation) Fail() {
	op.Status = StatusError
}

// Persisted reports whether the operation has a database id.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}
