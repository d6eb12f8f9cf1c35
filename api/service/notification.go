package service

import (
	"github.com/gin-gonic/gin"

	"github.com/photon-storage/bounty-hub/api/pagination"
	"github.com/photon-storage/bounty-hub/auth"
	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
)

type notificationResp struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	ActionURL string `json:"action_url,omitempty"`
	IsRead    bool   `json:"is_read"`
	CreatedAt int64  `json:"created_at"`
}

// Notifications handles the /notifications request, listing the
// caller's own notifications.
func (s *Service) Notifications(
	c *gin.Context,
	page *pagination.Query,
) (*pagination.Result, error) {
	principal, ok := auth.FromContext(c)
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	query := s.db.Model(&orm.Notification{}).
		Where("user_id = ?", principal.UserID)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	count := int64(0)
	if err := query.Count(&count).Error; err != nil {
		return nil, err
	}

	notifications := make([]*orm.Notification, 0)
	if err := query.Offset(page.Start).
		Limit(page.Limit).
		Order("created_at desc").
		Find(&notifications).
		Error; err != nil {
		return nil, err
	}

	notificationResps := make([]*notificationResp, len(notifications))
	for i, n := range notifications {
		notificationResps[i] = &notificationResp{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			ActionURL: n.ActionURL,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.Unix(),
		}
	}

	return &pagination.Result{
		Data:  notificationResps,
		Total: count,
	}, nil
}

type readNotificationReq struct {
	ID string `json:"id" binding:"required"`
}

// ReadNotification handles the POST /notification/read request.
func (s *Service) ReadNotification(
	c *gin.Context,
	req *readNotificationReq,
) error {
	principal, ok := auth.FromContext(c)
	if !ok {
		return errs.ErrUnauthorized
	}

	res := s.db.Model(&orm.Notification{}).
		Where("id = ? AND user_id = ?", req.ID, principal.UserID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}
