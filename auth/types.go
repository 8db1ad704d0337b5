package auth

// User is the backend's account record, as constructed from login and
// /users/me responses.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Superuser bool   `json:"is_superuser"`
}

// LoginResponse is the /auth/login payload, augmented with the constructed
// User on success.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Email        string `json:"email"`
	UserID       string `json:"user_id"`
	IsSuperuser  bool   `json:"is_superuser"`

	User *User `json:"-"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// RegisterRequest is the /auth/register payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
