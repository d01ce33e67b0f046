package entity

// All returns every persisted model, in migration order.
func All() []any {
	return []any{
		&User{},
		&Room{},
		&RoomMembership{},
		&Message{},
		&Opportunity{},
		&Application{},
		&CollaborationRequest{},
		&Notification{},
		&Event{},
	}
}
