package models

import "time"

// MediaRef points at an object held by the media-storage collaborator.
type MediaRef struct {
	URL      string
	PublicID string
}

// User is the persisted identity. PasswordHash is never empty once stored;
// RefreshToken is nil when no session is live.
type User struct {
	ID           string
	Username     string
	Email        string
	Fullname     string
	Avatar       MediaRef
	CoverImage   MediaRef
	PasswordHash string
	RefreshToken *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the identity view returned to callers.
type PublicUser struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Fullname   string    `json:"fullname"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Public strips credentials from u.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Fullname:   u.Fullname,
		Avatar:     u.Avatar.URL,
		CoverImage: u.CoverImage.URL,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
