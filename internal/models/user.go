package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleApprover  UserRole = "APPROVER"
	RoleSubmitter UserRole = "SUBMITTER"
	RoleEmployee  UserRole = "EMPLOYEE"
)
