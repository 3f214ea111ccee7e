package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/internal/repository"
	"github.com/terojleinonen/cms-admin-sub001/pkg/database"
	appErrors "github.com/terojleinonen/cms-admin-sub001/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id string, from, to models.UserRole) error
	SetActive(ctx context.Context, id string, active bool) error
}

// auditWriter is the write side of the audit service used by business services.
type auditWriter interface {
	Log(ctx context.Context, entry models.AuditEntry) (*models.AuditLog, error)
	LogSecurityEvent(ctx context.Context, code models.SecurityCode, entry models.AuditEntry) (*models.AuditLog, error)
	LogRoleChange(ctx context.Context, change *models.RoleChangeHistory, meta models.RequestMeta) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email,max=255"`
	FullName string          `json:"full_name" validate:"required,max=255"`
	Role     models.UserRole `json:"role" validate:"required,oneof=VIEWER EDITOR ADMIN"`
	Active   *bool           `json:"active"`
	Password string          `json:"password" validate:"required,min=8,max=72"`
}

// UpdateUserRequest payload for updating user profile fields. Role and status
// have dedicated operations.
type UpdateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	FullName string `json:"full_name" validate:"required,max=255"`
}

// ChangeRoleRequest payload for role changes.
type ChangeRoleRequest struct {
	Role   models.UserRole `json:"role" validate:"required,oneof=VIEWER EDITOR ADMIN"`
	Reason string          `json:"reason" validate:"required,max=500"`
}

// SetStatusRequest payload for activating or deactivating a user.
type SetStatusRequest struct {
	Active *bool  `json:"active" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// DeactivateSelfRequest payload for self-service deactivation.
type DeactivateSelfRequest struct {
	ConfirmPassword string `json:"confirmPassword"`
	Reason          string `json:"reason" validate:"omitempty,max=500"`
}

// UpdateProfileRequest payload for self-service profile edits.
type UpdateProfileRequest struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
}

// UserService handles user management workflows. Every mutation commits
// together with its audit record or not at all.
type UserService struct {
	repo      userRepository
	audit     auditWriter
	tx        database.Transactor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, audit auditWriter, tx database.Transactor, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, audit: audit, tx: tx, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid role filter"),
			[]appErrors.FieldError{{Field: "role", Rule: "oneof=VIEWER EDITOR ADMIN"}})
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a new user.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid create user payload")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Active:       active,
		PasswordHash: string(passwordHash),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "email already exists")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
		}
		_, err := s.audit.Log(ctx, models.AuditEntry{
			UserID:     meta.ActorID,
			Action:     models.AuditActionUserCreated,
			Resource:   "user",
			ResourceID: user.ID,
			Details:    models.Details{"email": user.Email, "role": string(user.Role), "active": user.Active},
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
			Severity:   models.SeverityMedium,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Update modifies the user's profile attributes.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid update payload")
	}

	var user *models.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		old := models.Details{"email": current.Email, "full_name": current.FullName}

		current.Email = strings.ToLower(strings.TrimSpace(req.Email))
		current.FullName = strings.TrimSpace(req.FullName)
		if err := s.repo.Update(ctx, current); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "email already exists")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
		}
		user = current

		_, err = s.audit.Log(ctx, models.AuditEntry{
			UserID:     meta.ActorID,
			Action:     models.AuditActionUserUpdated,
			Resource:   "user",
			ResourceID: current.ID,
			Details: models.Details{
				"old": old,
				"new": models.Details{"email": current.Email, "full_name": current.FullName},
			},
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ChangeRole moves a user to another role. The change, its history row and
// its audit entry commit together. Actors cannot change their own role.
func (s *UserService) ChangeRole(ctx context.Context, id string, req ChangeRoleRequest, meta models.RequestMeta) (*models.User, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid role change payload")
	}
	if id == meta.ActorID {
		s.recordSelfTarget(ctx, id, "role_change", meta)
		return nil, appErrors.Clone(appErrors.ErrSelfAction, "you cannot change your own role")
	}

	var user *models.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Role == req.Role {
			user = current
			return nil
		}

		if err := s.repo.UpdateRole(ctx, id, current.Role, req.Role); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				return appErrors.Clone(appErrors.ErrConflict, "user role was changed concurrently")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
		}

		if err := s.audit.LogRoleChange(ctx, &models.RoleChangeHistory{
			UserID:    id,
			OldRole:   current.Role,
			NewRole:   req.Role,
			ChangedBy: meta.ActorID,
			Reason:    req.Reason,
		}, meta); err != nil {
			return err
		}

		current.Role = req.Role
		user = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetStatus activates or deactivates another user.
func (s *UserService) SetStatus(ctx context.Context, id string, req SetStatusRequest, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid status payload")
	}
	if id == meta.ActorID {
		s.recordSelfTarget(ctx, id, "status_change", meta)
		return nil, appErrors.Clone(appErrors.ErrSelfAction, "you cannot change your own account status")
	}

	var user *models.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		user = current
		if current.Active == *req.Active {
			return nil
		}
		return s.setActive(ctx, current, *req.Active, req.Reason, meta)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeactivateSelf lets a non-admin user close their own account after
// confirming their password.
func (s *UserService) DeactivateSelf(ctx context.Context, req DeactivateSelfRequest, meta models.RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid deactivation payload")
	}

	user, err := s.Get(ctx, meta.ActorID)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdmin {
		s.recordSelfTarget(ctx, user.ID, "self_deactivation", meta)
		return appErrors.Clone(appErrors.ErrSelfAction, "administrators cannot deactivate their own account")
	}
	if req.ConfirmPassword == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.ConfirmPassword)) != nil {
		return appErrors.Clone(appErrors.ErrInvalidPassword, "password confirmation does not match")
	}
	if !user.Active {
		return nil
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.setActive(ctx, user, false, req.Reason, meta)
	})
}

// UpdateProfile edits the caller's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, req UpdateProfileRequest, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid profile payload")
	}

	var user *models.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.Get(ctx, meta.ActorID)
		if err != nil {
			return err
		}
		changed := models.Details{}
		if name := strings.TrimSpace(req.FullName); name != current.FullName {
			changed["full_name"] = name
			current.FullName = name
		}
		if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != current.Email {
			changed["email"] = email
			current.Email = email
		}
		user = current
		if len(changed) == 0 {
			return nil
		}

		if err := s.repo.Update(ctx, current); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "email already exists")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
		}
		_, err = s.audit.Log(ctx, models.AuditEntry{
			UserID:     current.ID,
			Action:     models.AuditActionUserProfileUpdated,
			Resource:   "user",
			ResourceID: current.ID,
			Details:    models.Details{"changed": changed},
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) setActive(ctx context.Context, user *models.User, active bool, reason string, meta models.RequestMeta) error {
	if err := s.repo.SetActive(ctx, user.ID, active); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}

	action := models.AuditActionUserDeactivated
	if active {
		action = models.AuditActionUserActivated
	}
	details := models.Details{"isActive": active, "previous": user.Active}
	if reason != "" {
		details["reason"] = reason
	}
	if _, err := s.audit.Log(ctx, models.AuditEntry{
		UserID:     meta.ActorID,
		Action:     action,
		Resource:   "user",
		ResourceID: user.ID,
		Details:    details,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
		Severity:   models.SeverityHigh,
	}); err != nil {
		return err
	}
	user.Active = active
	return nil
}

func (s *UserService) recordSelfTarget(ctx context.Context, id, operation string, meta models.RequestMeta) {
	if _, err := s.audit.LogSecurityEvent(ctx, models.SecurityRoleManipulation, models.AuditEntry{
		UserID:     meta.ActorID,
		Resource:   "user",
		ResourceID: id,
		Details:    models.Details{"operation": operation, "role": string(meta.ActorRole)},
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Error("failed to record self-target denial", zap.String("user_id", id), zap.Error(err))
	}
}
