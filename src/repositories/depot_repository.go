package repositories

import (
	"context"

	"depotbook/src/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DepotRepository interface {
	GetByKey(ctx context.Context, broker, externalID string, tx *gorm.DB) (*models.Depot, error)
	Create(ctx context.Context, d *models.Depot, tx *gorm.DB) error
	GetPermission(ctx context.Context, userID, depotID uint, tx *gorm.DB) (*models.Permission, error)
	LockPermission(ctx context.Context, userID, depotID uint, tx *gorm.DB) (*models.Permission, error)
	SavePermission(ctx context.Context, p *models.Permission, tx *gorm.DB) error
	DeletePermission(ctx context.Context, userID, depotID uint, tx *gorm.DB) error
	ListDepotIDsWith(ctx context.Context, userID uint, flags models.PermissionFlags) ([]uint, error)
}

type depotRepo struct {
	db *gorm.DB
}

func NewDepotRepository(db *gorm.DB) DepotRepository {
	return &depotRepo{db: db}
}

func (r *depotRepo) GetByKey(ctx context.Context, broker, externalID string, tx *gorm.DB) (*models.Depot, error) {
	var d models.Depot
	err := conn(ctx, r.db, tx).
		Where("broker = ? AND external_id = ?", broker, externalID).
		First(&d).Error
	return notFoundAsNil(&d, err)
}

func (r *depotRepo) Create(ctx context.Context, d *models.Depot, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).Create(d).Error
}

// GetPermission returns nil when the user holds nothing on the depot. Inside a
// PostgreSQL transaction the row is share locked until commit, so concurrent
// bookings by the same user do not wait on each other but a revoke does.
func (r *depotRepo) GetPermission(ctx context.Context, userID, depotID uint, tx *gorm.DB) (*models.Permission, error) {
	return r.getPermission(ctx, userID, depotID, tx, "SHARE")
}

// LockPermission is GetPermission for a caller about to rewrite the row.
func (r *depotRepo) LockPermission(ctx context.Context, userID, depotID uint, tx *gorm.DB) (*models.Permission, error) {
	return r.getPermission(ctx, userID, depotID, tx, "UPDATE")
}

func (r *depotRepo) getPermission(ctx context.Context, userID, depotID uint, tx *gorm.DB, strength string) (*models.Permission, error) {
	var p models.Permission
	q := conn(ctx, r.db, tx).Where("user_id = ? AND depot_id = ?", userID, depotID)
	if tx != nil && isPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: strength})
	}
	err := q.First(&p).Error
	return notFoundAsNil(&p, err)
}

// SavePermission writes the flags of (user, depot), inserting the row if it
// does not exist yet.
func (r *depotRepo) SavePermission(ctx context.Context, p *models.Permission, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "depot_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"flags", "updated_at"}),
	}).Create(p).Error
}

func (r *depotRepo) DeletePermission(ctx context.Context, userID, depotID uint, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).
		Where("user_id = ? AND depot_id = ?", userID, depotID).
		Delete(&models.Permission{}).Error
}

// ListDepotIDsWith lists the depots on which the user holds every bit of flags.
func (r *depotRepo) ListDepotIDsWith(ctx context.Context, userID uint, flags models.PermissionFlags) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Permission{}).
		Where("user_id = ? AND (flags & ?) = ?", userID, int(flags), int(flags)).
		Order("depot_id").
		Pluck("depot_id", &ids).Error
	return ids, err
}
