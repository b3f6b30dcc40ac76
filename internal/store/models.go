package store

import "time"

// ComplianceStatus is the last known compliance state of a repository.
type ComplianceStatus string

const (
	CompliancePending      ComplianceStatus = "pending"
	ComplianceCompliant    ComplianceStatus = "compliant"
	ComplianceNonCompliant ComplianceStatus = "non_compliant"
)

// ScanStatus is the lifecycle state of a scan. A scan is created InProgress
// and must end up Completed or Failed exactly once.
type ScanStatus string

const (
	ScanInProgress ScanStatus = "in_progress"
	ScanCompleted  ScanStatus = "completed"
	ScanFailed     ScanStatus = "failed"
)

// Outcome is the result of a single remediation attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Repository is the local record of a remote repository. The remote numeric
// ID is the identity; the name is display state and may change on rename.
type Repository struct {
	ID            int64
	Name          string
	Status        ComplianceStatus
	LastScannedAt *time.Time
}

// Policy is the local record of a configured compliance policy, keyed by its
// unique name. It is upserted from configuration on every scan and never
// deleted mid-scan, so historical violations keep a valid reference.
type Policy struct {
	Name        string
	Description string
	Action      string
}

// Scan is one scan run.
type Scan struct {
	ID          int64
	Status      ScanStatus
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Violation links one scan, one repository and one policy. At most one row
// exists per (scan, repository, policy) triple; rows are immutable once the
// scan completes.
type Violation struct {
	ID           int64
	ScanID       int64
	RepositoryID int64
	PolicyName   string
	Detail       string
	CreatedAt    time.Time

	// Denormalized for callers that act on violations.
	RepositoryName string
	PolicyAction   string
}

// ActionLogEntry records one remediation attempt. The log is append-only.
type ActionLogEntry struct {
	ID           int64
	RepositoryID int64
	PolicyName   string
	Action       string
	Outcome      Outcome
	Detail       string
	CreatedAt    time.Time
}
