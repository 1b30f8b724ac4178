package models

import "time"

type EnrollmentMethod string

const (
	MethodBootstrap   EnrollmentMethod = "BOOTSTRAP"
	MethodCertificate EnrollmentMethod = "CERTIFICATE"
	MethodPassword    EnrollmentMethod = "PASSWORD"
	MethodReenroll    EnrollmentMethod = "REENROLL"
)

type EnrollmentStatus string

const (
	StatusBootstrapOnly EnrollmentStatus = "BOOTSTRAP_ONLY"
	StatusEnrolled      EnrollmentStatus = "ENROLLED"
)

// EnrollmentRecord is the durable per-device enrollment entry. DeviceID is
// the CSR Common Name and is unique among active records.
type EnrollmentRecord struct {
	DeviceID          string           `json:"device_id" gorm:"primaryKey;column:device_id"`
	EnrolledBy        string           `json:"enrolled_by" gorm:"column:enrolled_by"`
	SourceAddress     string           `json:"source_address" gorm:"column:source_address"`
	CertificateSerial string           `json:"certificate_serial" gorm:"column:certificate_serial"`
	Method            EnrollmentMethod `json:"method" gorm:"column:method"`
	Status            EnrollmentStatus `json:"status" gorm:"column:status"`
	CreatedAt         time.Time        `json:"created_at" gorm:"column:created_at"`
	UpdatedAt         time.Time        `json:"updated_at" gorm:"column:updated_at"`
}

// LedgerStats summarizes the ledger for the management API.
type LedgerStats struct {
	TotalDevices         int `json:"total_devices"`
	EnrolledDevices      int `json:"enrolled_devices"`
	BootstrapOnlyDevices int `json:"bootstrap_only_devices"`
}
