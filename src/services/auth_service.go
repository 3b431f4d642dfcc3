package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"depotbook/src/models"
	"depotbook/src/repositories"
	"depotbook/src/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLength = 72
	maxUsernameLength = 50
)

const invalidCredentials = "invalid username or password"

// Principal is the caller an operation runs on behalf of. The zero value is
// the anonymous principal.
type Principal struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

func (p Principal) Authenticated() bool {
	return p.UserID != 0
}

func principalOf(u *models.User) Principal {
	return Principal{UserID: u.ID, Username: u.Username, Admin: u.Admin}
}

type AuthServiceI interface {
	Authenticate(ctx context.Context, username, password string) (Principal, error)
	LoadPrincipal(ctx context.Context, userID uint) (Principal, error)
	AddUser(ctx context.Context, principal Principal, username, password string) (*models.User, error)
	EnsureAdmin(ctx context.Context, username, password string) error
	AddDepot(ctx context.Context, principal Principal, broker, externalID, ccy string) (*models.Depot, error)
	ResolvePermission(ctx context.Context, principal Principal, broker, externalID string) (models.PermissionFlags, error)
	RequirePermission(ctx context.Context, tx *gorm.DB, principal Principal, broker, externalID string, want models.PermissionFlags) (*models.Depot, error)
	GrantPermission(ctx context.Context, principal Principal, broker, externalID, grantee string, flags models.PermissionFlags) (*models.Permission, error)
	RevokePermission(ctx context.Context, principal Principal, broker, externalID, grantee string, flags models.PermissionFlags) error
}

type AuthService struct {
	db        *gorm.DB
	userRepo  repositories.UserRepository
	depotRepo repositories.DepotRepository
	hashCost  int
}

func NewAuthService(db *gorm.DB, userRepo repositories.UserRepository, depotRepo repositories.DepotRepository) *AuthService {
	return &AuthService{
		db:        db,
		userRepo:  userRepo,
		depotRepo: depotRepo,
		hashCost:  bcrypt.DefaultCost,
	}
}

// Authenticate checks the credentials. On any failure it returns the
// anonymous principal.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (Principal, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return Principal{}, err
	}
	if user == nil {
		return Principal{}, utils.AuthorizationError(invalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Principal{}, utils.AuthorizationError(invalidCredentials)
	}
	return principalOf(user), nil
}

// LoadPrincipal rebuilds the principal of a previously authenticated user.
func (s *AuthService) LoadPrincipal(ctx context.Context, userID uint) (Principal, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	if user == nil {
		return Principal{}, utils.AuthorizationError("unknown user")
	}
	return principalOf(user), nil
}

func (s *AuthService) AddUser(ctx context.Context, principal Principal, username, password string) (*models.User, error) {
	if !principal.Authenticated() || !principal.Admin {
		return nil, utils.AuthorizationError("only administrators can add users")
	}
	return s.createUser(ctx, username, password, false)
}

// EnsureAdmin creates the administrator account unless it exists already.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	_, err = s.createUser(ctx, username, password, true)
	if utils.KindOf(err) == utils.KindConflict {
		return nil
	}
	if err == nil {
		utils.LoggerFromContext(ctx).WithField("username", username).Info("created admin user")
	}
	return err
}

func (s *AuthService) createUser(ctx context.Context, username, password string, admin bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, utils.ConstraintError("username must be 1 to %d characters", maxUsernameLength)
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return nil, utils.ConstraintError("password must be %d to %d characters", minPasswordLength, maxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: username, PasswordHash: string(hash), Admin: admin}
	if err := s.userRepo.Create(ctx, user, nil); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, utils.ConflictError("user %s already exists", username)
		}
		return nil, err
	}
	return user, nil
}

// AddDepot creates a depot and makes principal its owner.
func (s *AuthService) AddDepot(ctx context.Context, principal Principal, broker, externalID, ccy string) (*models.Depot, error) {
	if !principal.Authenticated() {
		return nil, utils.AuthorizationError("authentication required")
	}
	broker, externalID = strings.TrimSpace(broker), strings.TrimSpace(externalID)
	if broker == "" || externalID == "" {
		return nil, utils.ValidationError("depot broker and external_id are required")
	}
	cur, err := LookupCurrency(ccy)
	if err != nil {
		return nil, err
	}

	depot := &models.Depot{Broker: broker, ExternalID: externalID, Currency: cur.Code}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.depotRepo.Create(ctx, depot, tx); err != nil {
			if repositories.IsUniqueViolation(err) {
				return utils.ConflictError("depot %s/%s already exists", broker, externalID)
			}
			return err
		}
		return s.depotRepo.SavePermission(ctx, &models.Permission{
			UserID:  principal.UserID,
			DepotID: depot.ID,
			Flags:   models.PermissionAll,
		}, tx)
	})
	if err != nil {
		return nil, err
	}
	return depot, nil
}

// ResolvePermission returns the flags principal holds on the depot, zero when
// it holds none.
func (s *AuthService) ResolvePermission(ctx context.Context, principal Principal, broker, externalID string) (models.PermissionFlags, error) {
	if !principal.Authenticated() {
		return 0, utils.AuthorizationError("authentication required")
	}
	_, flags, err := s.resolve(ctx, nil, principal, broker, externalID)
	return flags, err
}

// RequirePermission returns the depot when principal holds every bit of want.
func (s *AuthService) RequirePermission(ctx context.Context, tx *gorm.DB, principal Principal, broker, externalID string, want models.PermissionFlags) (*models.Depot, error) {
	if !principal.Authenticated() {
		return nil, utils.AuthorizationError("authentication required")
	}
	depot, flags, err := s.resolve(ctx, tx, principal, broker, externalID)
	if err != nil {
		return nil, err
	}
	if !flags.Has(want) {
		return nil, utils.AuthorizationError("%s permission required on depot %s/%s", want, broker, externalID)
	}
	return depot, nil
}

func (s *AuthService) resolve(ctx context.Context, tx *gorm.DB, principal Principal, broker, externalID string) (*models.Depot, models.PermissionFlags, error) {
	depot, err := s.depotRepo.GetByKey(ctx, broker, externalID, tx)
	if err != nil {
		return nil, 0, err
	}
	if depot == nil {
		return nil, 0, utils.NotFoundError("depot %s/%s not found", broker, externalID)
	}
	perm, err := s.depotRepo.GetPermission(ctx, principal.UserID, depot.ID, tx)
	if err != nil {
		return nil, 0, err
	}
	if perm == nil {
		return depot, 0, nil
	}
	return depot, perm.Flags, nil
}

// GrantPermission adds flags to what grantee holds on the depot. Only owners
// can grant, and never to themselves.
func (s *AuthService) GrantPermission(ctx context.Context, principal Principal, broker, externalID, grantee string, flags models.PermissionFlags) (*models.Permission, error) {
	target, err := s.permissionTarget(ctx, principal, grantee, flags)
	if err != nil {
		return nil, err
	}

	var perm *models.Permission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		depot, err := s.RequirePermission(ctx, tx, principal, broker, externalID, models.PermissionOwn)
		if err != nil {
			return err
		}
		existing, err := s.depotRepo.LockPermission(ctx, target.ID, depot.ID, tx)
		if err != nil {
			return err
		}
		perm = &models.Permission{UserID: target.ID, DepotID: depot.ID, Flags: flags}
		if existing != nil {
			perm.Flags |= existing.Flags
		}
		return s.depotRepo.SavePermission(ctx, perm, tx)
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

// RevokePermission clears flags from what grantee holds on the depot and
// drops the row once nothing is left.
func (s *AuthService) RevokePermission(ctx context.Context, principal Principal, broker, externalID, grantee string, flags models.PermissionFlags) error {
	target, err := s.permissionTarget(ctx, principal, grantee, flags)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		depot, err := s.RequirePermission(ctx, tx, principal, broker, externalID, models.PermissionOwn)
		if err != nil {
			return err
		}
		perm, err := s.depotRepo.LockPermission(ctx, target.ID, depot.ID, tx)
		if err != nil || perm == nil {
			return err
		}
		remaining := perm.Flags &^ flags
		if remaining == 0 {
			return s.depotRepo.DeletePermission(ctx, target.ID, depot.ID, tx)
		}
		return s.depotRepo.SavePermission(ctx, &models.Permission{UserID: target.ID, DepotID: depot.ID, Flags: remaining}, tx)
	})
}

// permissionTarget runs the checks shared by grant and revoke. The grantee is
// looked up before any transaction is opened.
func (s *AuthService) permissionTarget(ctx context.Context, principal Principal, grantee string, flags models.PermissionFlags) (*models.User, error) {
	if !principal.Authenticated() {
		return nil, utils.AuthorizationError("authentication required")
	}
	if flags == 0 || flags&^models.PermissionAll != 0 {
		return nil, utils.ValidationError("invalid permission flags %d", flags)
	}
	target, err := s.userRepo.GetByUsername(ctx, grantee)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, utils.NotFoundError("user %s not found", grantee)
	}
	if target.ID == principal.UserID {
		return nil, utils.AuthorizationError("cannot grant permissions to yourself")
	}
	return target, nil
}
