package search

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const (
	IndexRooms         = "rooms"
	IndexOpportunities = "opportunities"

	defaultLimit = 20
)

// Service mirrors rooms and opportunities into Meilisearch. A service built
// without a client indexes nothing and reports search as unavailable.
type Service interface {
	IndexRoom(ctx context.Context, room *entity.Room)
	RemoveRoom(ctx context.Context, id uuid.UUID)
	IndexOpportunity(ctx context.Context, opportunity *entity.Opportunity)
	Search(ctx context.Context, index, query string, limit int) (*Result, error)
	Enabled() bool
}

type Result struct {
	Index string            `json:"index"`
	Query string            `json:"query"`
	Hits  []json.RawMessage `json:"hits"`
	Total int64             `json:"estimated_total"`
}

type meiliService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

func NewService(client meilisearch.ServiceManager, logger *zap.Logger) Service {
	s := &meiliService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
	if client != nil {
		s.initIndexes()
	}
	return s
}

func (s *meiliService) Enabled() bool {
	return s.client != nil
}

func (s *meiliService) initIndexes() {
	roomFilterable := []any{"type"}
	if _, err := s.client.Index(IndexRooms).UpdateFilterableAttributes(&roomFilterable); err != nil {
		s.logger.Warn("failed to update rooms filterable attributes", zap.Error(err))
	}
	roomSortable := []string{"created_at", "members_count"}
	if _, err := s.client.Index(IndexRooms).UpdateSortableAttributes(&roomSortable); err != nil {
		s.logger.Warn("failed to update rooms sortable attributes", zap.Error(err))
	}

	opportunityFilterable := []any{"kind", "tags"}
	if _, err := s.client.Index(IndexOpportunities).UpdateFilterableAttributes(&opportunityFilterable); err != nil {
		s.logger.Warn("failed to update opportunities filterable attributes", zap.Error(err))
	}
	opportunitySortable := []string{"created_at"}
	if _, err := s.client.Index(IndexOpportunities).UpdateSortableAttributes(&opportunitySortable); err != nil {
		s.logger.Warn("failed to update opportunities sortable attributes", zap.Error(err))
	}

	s.logger.Info("meilisearch indexes initialized")
}

type roomDoc struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Description  string `json:"description"`
	Avatar       string `json:"avatar"`
	Type         string `json:"type"`
	MembersCount int    `json:"members_count"`
	CreatedAt    int64  `json:"created_at"`
}

type opportunityDoc struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Kind        string   `json:"kind"`
	Tags        []string `json:"tags"`
	Roles       []string `json:"roles"`
	RoomID      string   `json:"room_id,omitempty"`
	CreatedAt   int64    `json:"created_at"`
}

func (s *meiliService) clean(content string) string {
	content = strings.ReplaceAll(content, "</p>", " ")
	content = strings.ReplaceAll(content, "<br>", " ")
	content = strings.ReplaceAll(content, "</div>", " ")

	text := html.UnescapeString(s.sanitizer.Sanitize(content))
	return strings.Join(strings.Fields(text), " ")
}

func (s *meiliService) IndexRoom(ctx context.Context, room *entity.Room) {
	if s.client == nil {
		return
	}
	if room.IsPrivate {
		s.RemoveRoom(ctx, room.ID)
		return
	}

	doc := roomDoc{
		ID:           room.ID.String(),
		Name:         s.clean(room.Name),
		Slug:         room.Slug,
		Description:  s.clean(room.Description),
		Avatar:       room.Avatar,
		Type:         room.Type,
		MembersCount: room.MembersCount,
		CreatedAt:    room.CreatedAt.Unix(),
	}
	task, err := s.client.Index(IndexRooms).AddDocuments([]roomDoc{doc}, strPtr("id"))
	if err != nil {
		s.logger.Warn("failed to index room", zap.String("room_id", doc.ID), zap.Error(err))
		return
	}
	s.logger.Debug("indexed room", zap.String("room_id", doc.ID), zap.Int64("task_uid", task.TaskUID))
}

func (s *meiliService) RemoveRoom(_ context.Context, id uuid.UUID) {
	if s.client == nil {
		return
	}
	if _, err := s.client.Index(IndexRooms).DeleteDocument(id.String()); err != nil {
		s.logger.Warn("failed to remove room from index", zap.String("room_id", id.String()), zap.Error(err))
	}
}

func (s *meiliService) IndexOpportunity(_ context.Context, opportunity *entity.Opportunity) {
	if s.client == nil {
		return
	}

	roles := make([]string, 0, len(opportunity.Roles))
	for _, r := range opportunity.Roles {
		roles = append(roles, s.clean(r.Title))
	}
	tags := []string(opportunity.Tags)
	if tags == nil {
		tags = []string{}
	}

	doc := opportunityDoc{
		ID:          opportunity.ID.String(),
		Title:       s.clean(opportunity.Title),
		Description: s.clean(opportunity.Description),
		Kind:        opportunity.Kind,
		Tags:        tags,
		Roles:       roles,
		CreatedAt:   opportunity.CreatedAt.Unix(),
	}
	if opportunity.RoomID != nil {
		doc.RoomID = opportunity.RoomID.String()
	}

	task, err := s.client.Index(IndexOpportunities).AddDocuments([]opportunityDoc{doc}, strPtr("id"))
	if err != nil {
		s.logger.Warn("failed to index opportunity", zap.String("opportunity_id", doc.ID), zap.Error(err))
		return
	}
	s.logger.Debug("indexed opportunity", zap.String("opportunity_id", doc.ID), zap.Int64("task_uid", task.TaskUID))
}

type rawSearchResponse struct {
	Hits               []json.RawMessage `json:"hits"`
	EstimatedTotalHits int64             `json:"estimatedTotalHits"`
}

func (s *meiliService) Search(_ context.Context, index, query string, limit int) (*Result, error) {
	if s.client == nil {
		return nil, fmt.Errorf("search is not configured: %w", apperror.ErrUnavailable)
	}
	if index != IndexRooms && index != IndexOpportunities {
		return nil, fmt.Errorf("unknown search index %q: %w", index, apperror.ErrBadRequest)
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	raw, err := s.client.Index(index).SearchRaw(query, &meilisearch.SearchRequest{Limit: int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}

	var resp rawSearchResponse
	if raw != nil {
		if err := json.Unmarshal(*raw, &resp); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
	}
	if resp.Hits == nil {
		resp.Hits = []json.RawMessage{}
	}

	return &Result{
		Index: index,
		Query: query,
		Hits:  resp.Hits,
		Total: resp.EstimatedTotalHits,
	}, nil
}

func strPtr(s string) *string {
	return &s
}
