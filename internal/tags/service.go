package tags

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/radiotag/service-provider/internal/identity"
)

// ServiceConfig describes the dependencies required by the tag service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
}

// Service stores and lists tag records on behalf of devices.
type Service struct {
	db  *gorm.DB
	ids IDProvider
}

// NewService constructs the tag service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("tags: database connection required")
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	return &Service{db: cfg.Database, ids: ids}, nil
}

// CreateRequest carries the validated-on-entry parameters for a new tag.
type CreateRequest struct {
	ClientID    string
	Bearer      string
	TimeSeconds int64
	TimeSource  string
}

// Create validates and stores a tag for the given device.
func (s *Service) Create(ctx context.Context, request CreateRequest) (Tag, error) {
	if strings.TrimSpace(request.ClientID) == "" {
		return Tag{}, ErrInvalidClientID
	}
	if strings.TrimSpace(request.Bearer) == "" {
		return Tag{}, ErrInvalidBearer
	}
	if request.TimeSeconds <= 0 {
		return Tag{}, ErrInvalidTime
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Tag{}, err
	}

	tag := Tag{
		ID:         id,
		ClientID:   request.ClientID,
		Bearer:     request.Bearer,
		Time:       time.Unix(request.TimeSeconds, 0).UTC(),
		TimeSource: strings.TrimSpace(request.TimeSource),
	}
	if err := s.db.WithContext(ctx).Create(&tag).Error; err != nil {
		return Tag{}, err
	}
	return tag, nil
}

// ListForClient returns the device's tags, newest first.
func (s *Service) ListForClient(ctx context.Context, clientID string) ([]Tag, error) {
	var records []Tag
	err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("time DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListForUser returns the tags of every device belonging to the user, newest
// first. A user listening on the kitchen radio sees the tags made in the car.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Tag, error) {
	clientIDs := s.db.Model(&identity.Client{}).
		Select("id").
		Where("user_id = ?", userID)

	var records []Tag
	err := s.db.WithContext(ctx).
		Where("client_id IN (?)", clientIDs).
		Order("time DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// OwnedTag pairs a tag with the user owning the tagging device, if any.
type OwnedTag struct {
	Tag    Tag     `gorm:"embedded"`
	UserID *string `gorm:"column:user_id"`
}

// ListAll returns every stored tag with client and user attribution, newest
// first.
func (s *Service) ListAll(ctx context.Context) ([]OwnedTag, error) {
	var records []OwnedTag
	err := s.db.WithContext(ctx).
		Table("tags").
		Select("tags.*, clients.user_id AS user_id").
		Joins("LEFT JOIN clients ON clients.id = tags.client_id").
		Order("tags.time DESC").
		Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
