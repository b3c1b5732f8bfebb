package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-supportchat/internal/database"
	"github.com/npezzotti/go-supportchat/internal/server"
	"github.com/npezzotti/go-supportchat/internal/types"
)

type LoginRequest struct {
	Username string `json:"username"`
	// Password is required for the admin only.
	Password string `json:"password,omitempty"`
}

type ChatResponse struct {
	Customer types.User `json:"customer"`
	Admin    types.User `json:"admin"`
	RoomId   string     `json:"roomId"`
	IsAdmin  bool       `json:"isAdmin"`
}

func (s *SupportChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *SupportChatApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.Err != nil {
		s.log.Println(errResp.Error())
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func dbError(err error) *ApiError {
	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFoundError()
	}
	return NewInternalServerError(err)
}

func (s *SupportChatApp) currentUser(r *http.Request) (types.User, *ApiError) {
	userId, ok := UserId(r.Context())
	if !ok {
		return types.User{}, NewUnauthorizedError()
	}

	user, err := s.db.GetUserById(r.Context(), userId)
	if err != nil {
		return types.User{}, dbError(err)
	}

	return server.ToUser(user), nil
}

func pathId(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *SupportChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// login signs in the admin with a password, or a customer by username
// alone. Unknown customers are created on first login.
func (s *SupportChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	lr.Username = strings.TrimSpace(lr.Username)
	if lr.Username == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	dbUser, err := s.db.GetUserByUsername(r.Context(), lr.Username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		dbUser, err = s.db.CreateUser(r.Context(), database.CreateUserParams{
			Username: lr.Username,
			Role:     database.RoleCustomer,
		})
		if err != nil {
			s.writeError(w, NewInternalServerError(err))
			return
		}
		s.log.Printf("created customer %q", dbUser.Username)
	case err != nil:
		s.writeError(w, NewInternalServerError(err))
		return
	case dbUser.Role == database.RoleAdmin:
		if lr.Password == "" || !verifyPassword(dbUser.PasswordHash, lr.Password) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
	}

	u := server.ToUser(dbUser)

	token, err := s.createJwtForSession(u, defaultJwtExpiration)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))
	s.incr(metricLogins)

	s.writeJson(w, http.StatusOK, u)
}

func (s *SupportChatApp) session(w http.ResponseWriter, r *http.Request) {
	user, errResp := s.currentUser(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, user)
}

func (s *SupportChatApp) logout(w http.ResponseWriter, _ *http.Request) {
	// overwrite with an expired cookie so the browser drops it
	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

// getChat describes the conversation between a customer and the admin.
// Customers may only open their own conversation.
func (s *SupportChatApp) getChat(w http.ResponseWriter, r *http.Request) {
	customerId, ok := pathId(r, "customerId")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	user, errResp := s.currentUser(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if !user.IsAdmin() && user.Id != customerId {
		s.writeError(w, NewForbiddenError())
		return
	}

	admin, err := s.db.GetAdmin(r.Context())
	if err != nil {
		s.writeError(w, dbError(err))
		return
	}

	roomId, err := server.ResolveRoom(r.Context(), s.db, customerId, admin.Id)
	if err != nil {
		s.writeError(w, fromServerError(err))
		return
	}

	customer, err := s.db.GetUserById(r.Context(), customerId)
	if err != nil {
		s.writeError(w, dbError(err))
		return
	}

	s.writeJson(w, http.StatusOK, ChatResponse{
		Customer: server.ToUser(customer),
		Admin:    server.ToUser(admin),
		RoomId:   roomId,
		IsAdmin:  user.IsAdmin(),
	})
}

func (s *SupportChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	user, errResp := s.currentUser(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	messages, err := s.cs.RoomHistory(r.Context(), roomId, user)
	if err != nil {
		s.writeError(w, fromServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *SupportChatApp) listCustomers(w http.ResponseWriter, r *http.Request) {
	adminId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	dbSummaries, err := s.db.ListCustomerSummaries(r.Context(), adminId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	summaries := make([]types.CustomerSummary, 0, len(dbSummaries))
	for _, dbSummary := range dbSummaries {
		summary := types.CustomerSummary{
			Customer:    server.ToUser(dbSummary.Customer),
			RoomId:      server.RoomId(dbSummary.Customer.Id, adminId),
			UnreadCount: dbSummary.UnreadCount,
		}

		if dbSummary.LastMessage != nil {
			lastMessage := server.ToMessage(*dbSummary.LastMessage)
			summary.LastMessage = &lastMessage
		}

		summaries = append(summaries, summary)
	}

	s.writeJson(w, http.StatusOK, summaries)
}

// deleteCustomer removes a customer and every message of their
// conversation. The admin cannot be deleted.
func (s *SupportChatApp) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	customerId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	user, err := s.db.GetUserById(r.Context(), customerId)
	if err != nil {
		s.writeError(w, dbError(err))
		return
	}

	if user.Role != database.RoleCustomer {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.db.DeleteCustomer(r.Context(), customerId); err != nil {
		s.writeError(w, dbError(err))
		return
	}

	s.log.Printf("deleted customer %q", user.Username)
	w.WriteHeader(http.StatusNoContent)
}

// markCustomerRead marks everything the customer sent to the admin as read.
func (s *SupportChatApp) markCustomerRead(w http.ResponseWriter, r *http.Request) {
	customerId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	admin, errResp := s.currentUser(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	roomId, err := server.ResolveRoom(r.Context(), s.db, customerId, admin.Id)
	if err != nil {
		s.writeError(w, fromServerError(err))
		return
	}

	if err := s.cs.MarkRead(r.Context(), roomId, admin, nil); err != nil {
		s.writeError(w, fromServerError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *SupportChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	user, errResp := s.currentUser(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(user, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
