package handler

import (
	"net/http"

	"library-catalog/internal/errors"
	"library-catalog/internal/service"
)

type UserHandler struct {
	userService        *service.UserService
	circulationService *service.CirculationService
}

func NewUserHandler(userService *service.UserService, circulationService *service.CirculationService) *UserHandler {
	return &UserHandler{
		userService:        userService,
		circulationService: circulationService,
	}
}

type RegisterRequest struct {
	Username           string `json:"username"`
	Email              string `json:"email"`
	Password           string `json:"password"`
	EmailNotifications *bool  `json:"email_notifications,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.userService.Register(r.Context(), &service.RegisterRequest{
		Username:           req.Username,
		Email:              req.Email,
		Password:           req.Password,
		EmailNotifications: req.EmailNotifications,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, errors.ErrInvalidInput.WithDetails("username and password are required"))
		return
	}

	result, err := h.userService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UserFromContext(r.Context()))
}

func (h *UserHandler) MyTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.circulationService.ListUserTransactions(r.Context(), UserFromContext(r.Context()), queryBool(r, "open"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, txs)
}

func (h *UserHandler) MyNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.userService.Notifications(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

func (h *UserHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "notification_id", errors.ErrNotificationNotFound)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.userService.MarkNotificationRead(r.Context(), UserFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "is_read": true})
}
