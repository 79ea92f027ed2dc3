package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/uniplus/uniplus-api/internal/auth"
	"github.com/uniplus/uniplus-api/internal/models"
	"gorm.io/gorm"
)

type NotificationHandler struct {
	db          *gorm.DB
	authHandler *auth.AuthHandler
}

func NewNotificationHandler(db *gorm.DB, authHandler *auth.AuthHandler) *NotificationHandler {
	return &NotificationHandler{db: db, authHandler: authHandler}
}

type ListNotificationsRequest struct {
	auth.AuthInput
	UnreadOnly bool `query:"unread_only"`
}

type ListNotificationsResponse struct {
	Body struct {
		Notifications []models.Notification `json:"notifications"`
		UnreadCount   int64                 `json:"unread_count"`
	}
}

func (h *NotificationHandler) HandleList(ctx context.Context, input *ListNotificationsRequest) (*ListNotificationsResponse, error) {
	user, err := h.authHandler.CurrentUser(input.AuthInput)
	if err != nil {
		return nil, err
	}

	query := h.db.Where("user_id = ?", user.ID)
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	res := &ListNotificationsResponse{}
	if err := query.Order("created_at desc").Limit(100).Find(&res.Body.Notifications).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to load notifications")
	}
	h.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Count(&res.Body.UnreadCount)
	return res, nil
}

type MarkReadRequest struct {
	auth.AuthInput
	NotificationID uint `path:"notification_id"`
}

type MarkReadResponse struct {
	Body struct {
		Success bool `json:"success"`
	}
}

func (h *NotificationHandler) HandleMarkRead(ctx context.Context, input *MarkReadRequest) (*MarkReadResponse, error) {
	user, err := h.authHandler.CurrentUser(input.AuthInput)
	if err != nil {
		return nil, err
	}

	var notification models.Notification
	err = h.db.Where("id = ? AND user_id = ?", input.NotificationID, user.ID).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Notification not found")
		}
		return nil, huma.Error500InternalServerError("Failed to load notification")
	}

	if err := h.db.Model(&notification).Update("is_read", true).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to update notification")
	}

	res := &MarkReadResponse{}
	res.Body.Success = true
	return res, nil
}
