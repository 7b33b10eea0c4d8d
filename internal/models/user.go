package models

import "gorm.io/gorm"

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleGovernance UserRole = "governance"
	RoleRiskOwner  UserRole = "risk_owner"
	RoleAttestor   UserRole = "attestor"
	RoleViewer     UserRole = "viewer"
)

type User struct {
	gorm.Model
	Username     string   `gorm:"uniqueIndex;size:50;not null"`
	PasswordHash string   `gorm:"not null"`
	Role         UserRole `gorm:"type:varchar(20);not null"`
}
