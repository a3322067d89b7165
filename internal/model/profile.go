package model

import "time"

// Roles stored in profiles.role.
const (
	RoleStudent    = "student"
	RoleTeacher    = "teacher"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Approval states stored in profiles.approval_status.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Profile represents a row in the `profiles` table.  The session
// subsystem only reads profiles and lazily creates them for privileged
// logins; the rest of the lifecycle belongs to user management.
type Profile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	AvatarURL      *string   `json:"avatar_url"`
	Bio            *string   `json:"bio"`
	ApprovalStatus string    `json:"approval_status"`
	EmailVerified  bool      `json:"email_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserSummary is the subset of a profile returned by login and verify.
type UserSummary struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FullName  string  `json:"full_name"`
	Role      string  `json:"role"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Summary projects the profile onto the fields exposed with a session.
func (p Profile) Summary() UserSummary {
	return UserSummary{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		Role:      p.Role,
		AvatarURL: p.AvatarURL,
	}
}
