package domain

// SubjectType differentiates staff tokens from system integrations.
type SubjectType string

const (
	SubjectTypeStaff   SubjectType = "STAFF"
	SubjectTypeService SubjectType = "SERVICE"
)
