package client

import "time"

// User is the identity record returned by the identity endpoint.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Notification is a server-delivered event record.
type Notification struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	ActionURL string    `json:"actionUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// meResponse covers both shapes the identity endpoint has been observed to
// return: a bare user object, or {user, token}.
type meResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`

	// flat-format fields
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r *meResponse) user() *User {
	if r.User != nil {
		return r.User
	}
	if r.ID == 0 {
		return nil
	}
	return &User{ID: r.ID, Name: r.Name, Email: r.Email, Role: r.Role}
}

// unreadCountResponse wraps the {count} payload of the unread-count
// endpoints.
type unreadCountResponse struct {
	Count int `json:"count"`
}
