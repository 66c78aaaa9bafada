package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/linemk/ecommerce-api/internal/domain/models"
	"github.com/linemk/ecommerce-api/internal/storage"
)

const (
	DefaultPage  = 1
	DefaultLimit = 5
)

// RegisterInput — данные регистрации покупателя.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Phone           int64
	Country         string
	Address         string
	City            string
}

// UserPatch — частичное обновление, nil означает «не менять».
// Password меняется только вместе с совпадающим ConfirmPassword.
type UserPatch struct {
	Name            *string
	Email           *string
	Password        *string
	ConfirmPassword *string
	Phone           *int64
	Country         *string
	Address         *string
	City            *string
}

type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, page, limit int) ([]*models.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, patch UserPatch) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUserOrders(ctx context.Context, id uuid.UUID) ([]*models.Order, error)
}

type userService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	ledger   *Ledger
}

func NewUserService(log *slog.Logger, userRepo storage.UserStorage, ledger *Ledger) UserService {
	return &userService{log: log, userRepo: userRepo, ledger: ledger}
}

// Register создаёт покупателя. Пароль хранится только в виде bcrypt-хэша (соль добавляется автоматически).
func (s *userService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "service.UserService.Register"
	logger := s.log.With(slog.String("op", op), slog.String("email", in.Email))
	logger.Info("registering user")

	if in.Password != in.ConfirmPassword {
		logger.Warn("password confirmation mismatch")
		return nil, invalidArgument("Passwords do not match")
	}

	// быстрая проверка до bcrypt; гонку двух регистраций закрывает уникальный индекс
	if _, err := s.userRepo.GetUserByEmail(ctx, in.Email); err == nil {
		logger.Warn("email already registered")
		return nil, invalidArgument("User with email %s already exists", in.Email)
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		logger.Error("failed to check email", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to check email: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := s.userRepo.CreateUser(ctx, &models.User{
		Name:     in.Name,
		Email:    in.Email,
		PassHash: passHash,
		Phone:    in.Phone,
		Country:  in.Country,
		Address:  in.Address,
		City:     in.City,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			logger.Warn("email already registered")
			return nil, invalidArgument("User with email %s already exists", in.Email)
		}
		logger.Error("failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	logger.Info("user registered", slog.String("userID", user.ID.String()))
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "service.UserService.GetUser"

	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, notFound("User with id %s not found", id)
		}
		s.log.Error("failed to get user", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ListUsers возвращает страницу пользователей; page и limit меньше 1 заменяются значениями по умолчанию.
func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]*models.User, error) {
	const op = "service.UserService.ListUsers"

	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}

	users, err := s.userRepo.ListUsers(ctx, limit, (page-1)*limit)
	if err != nil {
		s.log.Error("failed to list users", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, patch UserPatch) (*models.User, error) {
	const op = "service.UserService.UpdateUser"
	logger := s.log.With(slog.String("op", op), slog.String("userID", id.String()))

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Password != nil {
		if patch.ConfirmPassword == nil || *patch.Password != *patch.ConfirmPassword {
			logger.Warn("password confirmation mismatch")
			return nil, invalidArgument("Passwords do not match")
		}
		passHash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("failed to hash password", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
		}
		user.PassHash = passHash
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.Phone != nil {
		user.Phone = *patch.Phone
	}
	if patch.Country != nil {
		user.Country = *patch.Country
	}
	if patch.Address != nil {
		user.Address = *patch.Address
	}
	if patch.City != nil {
		user.City = *patch.City
	}

	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			return nil, notFound("User with id %s not found", id)
		case errors.Is(err, storage.ErrUserExists):
			return nil, invalidArgument("User with email %s already exists", user.Email)
		}
		logger.Error("failed to update user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("user updated")
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	const op = "service.UserService.DeleteUser"
	logger := s.log.With(slog.String("op", op), slog.String("userID", id.String()))

	if err := s.userRepo.DeleteUser(ctx, id); err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			return notFound("User with id %s not found", id)
		case errors.Is(err, storage.ErrUserHasOrders):
			return invalidArgument("User with id %s has orders and cannot be deleted", id)
		}
		logger.Error("failed to delete user", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("user deleted")
	return nil
}

// ListUserOrders возвращает заказы пользователя с позициями и товарами.
func (s *userService) ListUserOrders(ctx context.Context, id uuid.UUID) ([]*models.Order, error) {
	const op = "service.UserService.ListUserOrders"

	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	orders, err := s.ledger.GetOrdersByUserID(ctx, id)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}
