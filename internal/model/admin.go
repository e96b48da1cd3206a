package model

// AdminLoginRequest is the payload for admin authentication.
type AdminLoginRequest struct {
	Username string `json:"username" form:"username" binding:"required,max=64"`
	Password string `json:"password" form:"password" binding:"required,max=128"`
}
