package dto

import "time"

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required,min=3,max=160"`
	Description string    `json:"description" binding:"max=5000"`
	Location    string    `json:"location" binding:"max=200"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	Link        string    `json:"link" binding:"omitempty,url"`
}
