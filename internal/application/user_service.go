package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/room-booking/internal/access"
	"github.com/example/room-booking/internal/security"
)

// UserService lets super administrators manage accounts, roles and room assignments.
type UserService struct {
	users  UserRepository
	rooms  RoomRepository
	rec    recorder
	logger *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, rooms RoomRepository, sinks Sinks, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, rooms, sinks, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users UserRepository, rooms RoomRepository, sinks Sinks, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:  users,
		rooms:  rooms,
		rec:    recorder{sinks: sinks, idGenerator: idGenerator, now: now},
		logger: defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

func (s *UserService) authorize(principal Principal) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if principal.Role != access.RoleSuperAdmin {
		return ErrUnauthorized
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}
	return nil
}

// GetUser returns an account. Users may read their own account.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if principal.UserID == "" || principal.UserID != userID {
		if err := s.authorize(principal); err != nil {
			return User{}, err
		}
	} else if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	creds, err := s.users.GetCredentials(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	return creds.User, nil
}

// ListUsers returns all users ordered by email.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if err := s.authorize(principal); err != nil {
		return nil, err
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}

	out := make([]User, len(users))
	copy(out, users)
	slices.SortFunc(out, func(a, b User) int {
		if c := strings.Compare(strings.ToLower(a.Email), strings.ToLower(b.Email)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// UpdateRole changes a user's role and managed rooms. Managed rooms are kept
// only for room administrators.
func (s *UserService) UpdateRole(ctx context.Context, params UpdateRoleParams) (user User, err error) {
	if err = s.authorize(params.Principal); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateRole",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
		"role", string(params.Role),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update role", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "role updated")
	}()

	vErr := &ValidationError{}
	if !params.Role.Valid() {
		vErr.add("role", "role is invalid")
	}
	managed := uniqueIDs(params.ManagedRoomIDs)
	if params.Role != access.RoleRoomAdmin {
		managed = nil
	}
	if s.rooms != nil {
		for _, id := range managed {
			if _, lookupErr := s.rooms.GetRoom(ctx, id); lookupErr != nil {
				vErr.add("managed_room_ids", fmt.Sprintf("room %s does not exist", id))
				break
			}
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var creds UserCredentials
	creds, err = s.users.GetCredentials(ctx, params.UserID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	previous := creds.User.Role
	creds.User.Role = params.Role
	creds.User.ManagedRoomIDs = managed
	creds.User.UpdatedAt = s.rec.now()
	if err = s.users.UpdateUser(ctx, creds); err != nil {
		err = mapRepoError(err)
		return
	}

	s.rec.audit(ctx, logger, auditRecord{
		actor:       params.Principal.actorRef(),
		action:      security.ActionPermissionChange,
		description: fmt.Sprintf("Role changed from %s to %s", previous, params.Role),
		objectType:  "user",
		objectID:    creds.User.ID,
		client:      params.Principal.client(),
		data:        map[string]any{"managed_room_ids": managed},
	})
	user = creds.User
	return
}

// SetActive locks or unlocks an account.
func (s *UserService) SetActive(ctx context.Context, params SetUserActiveParams) (user User, err error) {
	if err = s.authorize(params.Principal); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "SetActive",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
		"active", params.Active,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change account state", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "account state changed")
	}()

	if params.UserID == params.Principal.UserID && !params.Active {
		vErr := &ValidationError{}
		vErr.add("user_id", "administrators cannot lock their own account")
		err = vErr
		return
	}

	var creds UserCredentials
	creds, err = s.users.GetCredentials(ctx, params.UserID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	creds.User.IsActive = params.Active
	creds.User.UpdatedAt = s.rec.now()
	if err = s.users.UpdateUser(ctx, creds); err != nil {
		err = mapRepoError(err)
		return
	}

	action, description := security.ActionAccountLock, "Account locked"
	if params.Active {
		action, description = security.ActionAccountUnlock, "Account unlocked"
	}
	s.rec.audit(ctx, logger, auditRecord{
		actor:       params.Principal.actorRef(),
		action:      action,
		description: description,
		objectType:  "user",
		objectID:    creds.User.ID,
		client:      params.Principal.client(),
	})
	user = creds.User
	return
}

// DeleteUser removes an account together with its bookings and sessions.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if err := s.authorize(principal); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "DeleteUser",
		"principal_id", principal.UserID,
		"user_id", userID,
	)

	if userID == principal.UserID {
		vErr := &ValidationError{}
		vErr.add("user_id", "administrators cannot delete their own account")
		logger.ErrorContext(ctx, "failed to delete user", "error", vErr, "error_kind", ErrorKind(vErr))
		return vErr
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.rec.audit(ctx, logger, auditRecord{
		actor:       principal.actorRef(),
		action:      security.ActionAdminAction,
		description: "User deleted",
		objectType:  "user",
		objectID:    userID,
		client:      principal.client(),
	})
	logger.InfoContext(ctx, "user deleted")
	return nil
}

func uniqueIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
