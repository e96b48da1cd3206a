package model

// StudentRecord is a roster entry. Secret is either a bcrypt hash or a plaintext password.
type StudentRecord struct {
	RollNumber string `json:"roll_number"`
	Secret     string `json:"-"`
}

// StudentLoginRequest is the payload for student authentication.
// Password is validated by the credential store only when password auth is enabled.
type StudentLoginRequest struct {
	RollNumber string `json:"roll_number" form:"student_id" binding:"max=64"`
	Password   string `json:"password" form:"password" binding:"max=128"`
}
