package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/veridia/estca/pkg/config"
	"github.com/veridia/estca/pkg/errs"
	"github.com/veridia/estca/pkg/helpers"
	"github.com/veridia/estca/pkg/models"
)

// Ledger is the durable registry of device enrollments. It owns the single
// invariant the enrollment flow exists to protect: at most one active
// record per device identity. Mutations are serialized by one mutex that
// also covers the durable write, so a Register that returns has been
// flushed; reads go straight to the store.
type Ledger struct {
	logger *logrus.Entry
	db     *gorm.DB

	writeMu sync.Mutex
}

func NewLedger(logger *logrus.Entry, conf config.Storage) (*Ledger, error) {
	dsn := conf.DatabasePath
	if conf.InMemory {
		// Named shared-cache memory DB so every pooled connection sees
		// the same data.
		name := conf.DatabasePath
		if name == "" {
			name = "estca"
		}
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: &gormLogger{logger: logger},
	})
	if err != nil {
		return nil, fmt.Errorf("could not open ledger database: %w", err)
	}

	if err := db.AutoMigrate(&models.EnrollmentRecord{}); err != nil {
		return nil, fmt.Errorf("could not migrate ledger schema: %w", err)
	}

	logger.Infof("enrollment ledger ready (db: %s)", dsn)

	return &Ledger{
		logger: logger,
		db:     db,
	}, nil
}

// Register creates the record for a new device identity. It fails with
// ErrDuplicateIdentity while an active record exists for the same identity.
func (l *Ledger) Register(ctx context.Context, record *models.EnrollmentRecord) error {
	lFunc := helpers.ConfigureLogger(ctx, l.logger)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var existing models.EnrollmentRecord
	tx := l.db.WithContext(ctx).Limit(1).Find(&existing, "device_id = ?", record.DeviceID)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected > 0 {
		lFunc.Warnf("device '%s' already has an active enrollment record", record.DeviceID)
		return errs.ErrDuplicateIdentity
	}

	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := l.db.WithContext(ctx).Create(record).Error; err != nil {
		lFunc.Errorf("could not persist enrollment record for '%s': %s", record.DeviceID, err)
		return err
	}

	lFunc.Debugf("registered enrollment record for device '%s'", record.DeviceID)
	return nil
}

// Update replaces the mutable fields of an existing record, keeping its
// original creation timestamp. Used by re-enrollment.
func (l *Ledger) Update(ctx context.Context, record *models.EnrollmentRecord) error {
	lFunc := helpers.ConfigureLogger(ctx, l.logger)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	record.UpdatedAt = time.Now()

	tx := l.db.WithContext(ctx).Model(&models.EnrollmentRecord{}).
		Where("device_id = ?", record.DeviceID).
		Updates(map[string]interface{}{
			"enrolled_by":        record.EnrolledBy,
			"source_address":     record.SourceAddress,
			"certificate_serial": record.CertificateSerial,
			"method":             record.Method,
			"status":             record.Status,
			"updated_at":         record.UpdatedAt,
		})
	if tx.Error != nil {
		lFunc.Errorf("could not update enrollment record for '%s': %s", record.DeviceID, tx.Error)
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return errs.ErrRecordNotFound
	}

	lFunc.Debugf("updated enrollment record for device '%s'", record.DeviceID)
	return nil
}

// Delete removes a device's record, permitting a later Register under the
// same identity.
func (l *Ledger) Delete(ctx context.Context, deviceID string) error {
	lFunc := helpers.ConfigureLogger(ctx, l.logger)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	tx := l.db.WithContext(ctx).Delete(&models.EnrollmentRecord{}, "device_id = ?", deviceID)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return errs.ErrRecordNotFound
	}

	lFunc.Infof("deleted enrollment record for device '%s'", deviceID)
	return nil
}

func (l *Ledger) Get(ctx context.Context, deviceID string) (*models.EnrollmentRecord, error) {
	var record models.EnrollmentRecord
	tx := l.db.WithContext(ctx).Limit(1).Find(&record, "device_id = ?", deviceID)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, errs.ErrRecordNotFound
	}

	return &record, nil
}

func (l *Ledger) Exists(ctx context.Context, deviceID string) (bool, error) {
	_, err := l.Get(ctx, deviceID)
	if errors.Is(err, errs.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) List(ctx context.Context) ([]models.EnrollmentRecord, error) {
	var records []models.EnrollmentRecord
	if err := l.db.WithContext(ctx).Order("created_at").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (l *Ledger) Stats(ctx context.Context) (*models.LedgerStats, error) {
	var total, enrolled, bootstrapOnly int64

	db := l.db.WithContext(ctx).Model(&models.EnrollmentRecord{})
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}
	if err := db.Where("status = ?", models.StatusEnrolled).Count(&enrolled).Error; err != nil {
		return nil, err
	}
	if err := l.db.WithContext(ctx).Model(&models.EnrollmentRecord{}).
		Where("status = ?", models.StatusBootstrapOnly).Count(&bootstrapOnly).Error; err != nil {
		return nil, err
	}

	return &models.LedgerStats{
		TotalDevices:         int(total),
		EnrolledDevices:      int(enrolled),
		BootstrapOnlyDevices: int(bootstrapOnly),
	}, nil
}
