package repositories

import (
	"sort"
	"sync"
	"time"

	"github.com/anonto42/yellowcard/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceRepository defines the interface for push token operations
type DeviceRepository interface {
	UpsertDevice(device *models.DeviceToken) error
	GetByUID(uid string) ([]models.DeviceToken, error)
	DeleteDevice(token string) error
}

type postgresDeviceRepository struct {
	db *gorm.DB
}

func NewPostgresDeviceRepository(db *gorm.DB) DeviceRepository {
	return &postgresDeviceRepository{db: db}
}

// UpsertDevice stores the token, moving it to the new owner if it was registered before.
func (r *postgresDeviceRepository) UpsertDevice(device *models.DeviceToken) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"uid", "platform", "updated_at"}),
	}).Create(device).Error
}

func (r *postgresDeviceRepository) GetByUID(uid string) ([]models.DeviceToken, error) {
	var devices []models.DeviceToken
	err := r.db.Where("uid = ?", uid).Order("updated_at DESC").Find(&devices).Error
	return devices, err
}

func (r *postgresDeviceRepository) DeleteDevice(token string) error {
	return r.db.Where("token = ?", token).Delete(&models.DeviceToken{}).Error
}

// memoryDeviceRepository keeps tokens for the process lifetime when
// PostgreSQL is not configured. Topic subscriptions still reach FCM.
type memoryDeviceRepository struct {
	mu      sync.Mutex
	byToken map[string]models.DeviceToken
}

func NewMemoryDeviceRepository() DeviceRepository {
	return &memoryDeviceRepository{byToken: make(map[string]models.DeviceToken)}
}

func (r *memoryDeviceRepository) UpsertDevice(device *models.DeviceToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if prev, ok := r.byToken[device.Token]; ok {
		device.ID = prev.ID
		device.CreatedAt = prev.CreatedAt
	} else {
		device.ID = uint(len(r.byToken) + 1)
		device.CreatedAt = now
	}
	device.UpdatedAt = now
	r.byToken[device.Token] = *device
	return nil
}

func (r *memoryDeviceRepository) GetByUID(uid string) ([]models.DeviceToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var devices []models.DeviceToken
	for _, d := range r.byToken {
		if d.UID == uid {
			devices = append(devices, d)
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].UpdatedAt.After(devices[j].UpdatedAt) })
	return devices, nil
}

func (r *memoryDeviceRepository) DeleteDevice(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byToken, token)
	return nil
}
