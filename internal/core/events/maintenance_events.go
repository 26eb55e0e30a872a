package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserRegistered    = "user.registered"
	EventTypeUserApproved      = "user.approved"
	EventTypeUserRejected      = "user.rejected"
	EventTypeUserChanged       = "user.changed"
	EventTypeWorkItemAssigned  = "workitem.assigned"
	EventTypeWorkItemCompleted = "workitem.completed"
	EventTypeMaterialLowStock  = "material.low_stock"
)

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

type UserRegisteredEvent struct {
	BaseEvent
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

func NewUserRegisteredEvent(userID int64, email, name string) *UserRegisteredEvent {
	return &UserRegisteredEvent{
		BaseEvent: newBase(EventTypeUserRegistered, map[string]interface{}{
			"user_id": userID,
			"email":   email,
			"name":    name,
		}),
		UserID: userID,
		Email:  email,
		Name:   name,
	}
}

type UserApprovedEvent struct {
	BaseEvent
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

func NewUserApprovedEvent(userID int64, email, name, role string) *UserApprovedEvent {
	return &UserApprovedEvent{
		BaseEvent: newBase(EventTypeUserApproved, map[string]interface{}{
			"user_id": userID,
			"email":   email,
			"name":    name,
			"role":    role,
		}),
		UserID: userID,
		Email:  email,
		Name:   name,
		Role:   role,
	}
}

type UserRejectedEvent struct {
	BaseEvent
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func NewUserRejectedEvent(userID int64, email, name, reason string) *UserRejectedEvent {
	return &UserRejectedEvent{
		BaseEvent: newBase(EventTypeUserRejected, map[string]interface{}{
			"user_id": userID,
			"email":   email,
			"name":    name,
			"reason":  reason,
		}),
		UserID: userID,
		Email:  email,
		Name:   name,
		Reason: reason,
	}
}

// UserChangedEvent is emitted after any mutation of a user record.
type UserChangedEvent struct {
	BaseEvent
	UserID int64 `json:"user_id"`
}

func NewUserChangedEvent(userID int64) *UserChangedEvent {
	return &UserChangedEvent{
		BaseEvent: newBase(EventTypeUserChanged, map[string]interface{}{"user_id": userID}),
		UserID:    userID,
	}
}

type WorkItemAssignedEvent struct {
	BaseEvent
	Kind       string `json:"kind"`
	ItemID     int64  `json:"item_id"`
	Title      string `json:"title"`
	AssigneeID int64  `json:"assignee_id"`
	AssignedBy int64  `json:"assigned_by"`
}

func NewWorkItemAssignedEvent(kind string, itemID int64, title string, assigneeID, assignedBy int64) *WorkItemAssignedEvent {
	return &WorkItemAssignedEvent{
		BaseEvent: newBase(EventTypeWorkItemAssigned, map[string]interface{}{
			"kind":        kind,
			"item_id":     itemID,
			"title":       title,
			"assignee_id": assigneeID,
			"assigned_by": assignedBy,
		}),
		Kind:       kind,
		ItemID:     itemID,
		Title:      title,
		AssigneeID: assigneeID,
		AssignedBy: assignedBy,
	}
}

type WorkItemCompletedEvent struct {
	BaseEvent
	Kind        string    `json:"kind"`
	ItemID      int64     `json:"item_id"`
	Title       string    `json:"title"`
	CreatorID   int64     `json:"creator_id"`
	CompletedBy int64     `json:"completed_by"`
	CompletedAt time.Time `json:"completed_at"`
}

func NewWorkItemCompletedEvent(kind string, itemID int64, title string, creatorID, completedBy int64, completedAt time.Time) *WorkItemCompletedEvent {
	return &WorkItemCompletedEvent{
		BaseEvent: newBase(EventTypeWorkItemCompleted, map[string]interface{}{
			"kind":         kind,
			"item_id":      itemID,
			"title":        title,
			"creator_id":   creatorID,
			"completed_by": completedBy,
			"completed_at": completedAt,
		}),
		Kind:        kind,
		ItemID:      itemID,
		Title:       title,
		CreatorID:   creatorID,
		CompletedBy: completedBy,
		CompletedAt: completedAt,
	}
}

type MaterialLowStockEvent struct {
	BaseEvent
	MaterialID   int64  `json:"material_id"`
	Name         string `json:"name"`
	Unit         string `json:"unit"`
	CurrentStock int64  `json:"current_stock"`
	MinStock     int64  `json:"min_stock"`
}

func NewMaterialLowStockEvent(materialID int64, name, unit string, current, min int64) *MaterialLowStockEvent {
	return &MaterialLowStockEvent{
		BaseEvent: newBase(EventTypeMaterialLowStock, map[string]interface{}{
			"material_id":   materialID,
			"name":          name,
			"unit":          unit,
			"current_stock": current,
			"min_stock":     min,
		}),
		MaterialID:   materialID,
		Name:         name,
		Unit:         unit,
		CurrentStock: current,
		MinStock:     min,
	}
}
