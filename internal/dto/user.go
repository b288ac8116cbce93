package dto

import (
	"time"

	"userbench/internal/domain"
)

// CreateUserRequest is the POST /api/users body.
type CreateUserRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PageResponse is the envelope returned by list endpoints.
type PageResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int64 `json:"page"`
	Size          int64 `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int64 `json:"totalPages"`
}

// ToEntity copies the request fields onto a new User. ID and timestamps
// are left for the service and the store to assign.
func ToEntity(req CreateUserRequest) *domain.User {
	return &domain.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
}

func ToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func ToResponses(users []domain.User) []UserResponse {
	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = ToResponse(users[i])
	}
	return resp
}

// NewPage assembles the envelope. size must be positive.
func NewPage[T any](content []T, page, size, totalElements int64) PageResponse[T] {
	if content == nil {
		content = []T{}
	}
	return PageResponse[T]{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: totalElements,
		TotalPages:    TotalPages(totalElements, size),
	}
}

// TotalPages is ceil(total / size).
func TotalPages(total, size int64) int64 {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
