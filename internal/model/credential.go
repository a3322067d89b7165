package model

// Credential is one entry of the privileged credential registry.  Entries
// are loaded at startup and never change while the process runs.
type Credential struct {
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"password_hash,omitempty"`
	// Password is a plaintext seed accepted only by the registry loader,
	// which hashes it and clears the field.
	Password string `json:"password,omitempty"`
}

// Role is fixed for every registry entry.
func (Credential) Role() string { return RoleSuperAdmin }
