package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/npezzotti/go-supportchat/internal/database"
	"github.com/npezzotti/go-supportchat/internal/types"
)

// RoomId derives the conversation key shared by a customer and the admin.
// The customer always comes first, so both sides compute the same key.
func RoomId(customerId, adminId int) string {
	return strconv.Itoa(customerId) + "-" + strconv.Itoa(adminId)
}

// ParseRoomId is the inverse of RoomId.
func ParseRoomId(roomId string) (customerId, adminId int, err error) {
	c, a, ok := strings.Cut(roomId, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: malformed room id %q", ErrRoomMismatch, roomId)
	}

	customerId, err = strconv.Atoi(c)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed room id %q", ErrRoomMismatch, roomId)
	}

	adminId, err = strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed room id %q", ErrRoomMismatch, roomId)
	}

	return customerId, adminId, nil
}

// ResolveRoom returns the room key for the pair after checking that
// customerId is a customer and adminId is the admin.
func ResolveRoom(ctx context.Context, db database.SupportChatRepository, customerId, adminId int) (string, error) {
	customer, err := getUser(ctx, db, customerId)
	if err != nil {
		return "", participantError(err)
	}
	if customer.Role != types.RoleCustomer {
		return "", fmt.Errorf("%w: user %d is not a customer", ErrInvalidParticipant, customerId)
	}

	admin, err := getUser(ctx, db, adminId)
	if err != nil {
		return "", participantError(err)
	}
	if admin.Role != types.RoleAdmin {
		return "", fmt.Errorf("%w: user %d is not the admin", ErrInvalidParticipant, adminId)
	}

	return RoomId(customer.Id, admin.Id), nil
}

// resolveParticipants orders two user ids into (customer, admin).
func resolveParticipants(ctx context.Context, db database.SupportChatRepository, a, b int) (customer, admin types.User, err error) {
	if a == b {
		return types.User{}, types.User{}, fmt.Errorf("%w: sender and receiver are the same user", ErrInvalidParticipant)
	}

	ua, err := getUser(ctx, db, a)
	if err != nil {
		return types.User{}, types.User{}, participantError(err)
	}

	ub, err := getUser(ctx, db, b)
	if err != nil {
		return types.User{}, types.User{}, participantError(err)
	}

	switch {
	case ua.IsAdmin() && ub.Role == types.RoleCustomer:
		return ub, ua, nil
	case ub.IsAdmin() && ua.Role == types.RoleCustomer:
		return ua, ub, nil
	default:
		return types.User{}, types.User{}, fmt.Errorf("%w: a conversation needs one customer and the admin", ErrInvalidParticipant)
	}
}

// isParticipant reports whether user is the customer or the admin of roomId.
func isParticipant(roomId string, user types.User) (bool, error) {
	customerId, adminId, err := ParseRoomId(roomId)
	if err != nil {
		return false, err
	}

	if user.IsAdmin() {
		return user.Id == adminId, nil
	}

	return user.Id == customerId, nil
}

func getUser(ctx context.Context, db database.SupportChatRepository, id int) (types.User, error) {
	u, err := db.GetUserById(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return types.User{}, fmt.Errorf("get user %d: %w: %w", id, ErrTransportFailure, err)
	}

	return ToUser(u), nil
}

func participantError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrInvalidParticipant, err)
	}
	return err
}

// ToUser converts a stored user to its wire form. The password hash never
// leaves the store layer.
func ToUser(u database.User) types.User {
	return types.User{
		Id:        u.Id,
		Username:  u.Username,
		Role:      types.Role(u.Role),
		CreatedAt: u.CreatedAt,
	}
}
