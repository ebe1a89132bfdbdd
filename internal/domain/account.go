package domain

import "time"

// InstagramAccount representa una credencial usada para automatizar la app
type InstagramAccount struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AccountStats lleva el uso diario de una credencial.
// El contador nunca decrece dentro de un mismo día.
type AccountStats struct {
	TodayFollows  int        `json:"today_follows"`
	LastFollowAt  *time.Time `json:"last_follow_at,omitempty"`
	LastResetDate string     `json:"last_reset_date,omitempty"` // YYYY-MM-DD
}
