package search

import (
	"context"
	"errors"
	"testing"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestDisabledService(t *testing.T) {
	svc := NewService(nil, zap.NewNop())
	ctx := context.Background()

	if svc.Enabled() {
		t.Fatal("service without a client should be disabled")
	}

	// indexing is a no-op without a client
	svc.IndexRoom(ctx, &entity.Room{ID: uuid.New(), Name: "x"})
	svc.RemoveRoom(ctx, uuid.New())
	svc.IndexOpportunity(ctx, &entity.Opportunity{ID: uuid.New(), Title: "x"})

	if _, err := svc.Search(ctx, IndexRooms, "x", 10); !errors.Is(err, apperror.ErrUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
}

func TestClean(t *testing.T) {
	s := NewService(nil, zap.NewNop()).(*meiliService)

	tests := []struct {
		in   string
		want string
	}{
		{"<p>Hello</p><p>world</p>", "Hello world"},
		{"line<br>break", "line break"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"  spaced   out  ", "spaced out"},
		{"<script>alert(1)</script>safe", "safe"},
	}
	for _, tt := range tests {
		if got := s.clean(tt.in); got != tt.want {
			t.Errorf("clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
