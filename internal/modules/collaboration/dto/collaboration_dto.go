package dto

type SendRequest struct {
	FromCircleID string `json:"from_circle_id" binding:"required,uuid"`
	ToCircleID   string `json:"to_circle_id" binding:"required,uuid"`
	Message      string `json:"message" binding:"max=2000"`
}
