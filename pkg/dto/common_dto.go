package dto

import "github.com/google/uuid"

// UserSummary is the public projection of a user embedded in other responses.
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	UID         string    `json:"uid"`
	DisplayName string    `json:"display_name"`
	PhotoURL    string    `json:"photo_url"`
	Skills      []string  `json:"skills"`
}

type PaginationQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Normalize applies the default page size.
func (q *PaginationQuery) Normalize(defaultLimit int) {
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

type PaginationMeta struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}
