package models

import (
	"time"

	"github.com/clinic/terminal/internal/domain/patient"
)

// Patient maps patient.Patient. RemoteID is nullable so locally created
// patients (not yet synced) do not collide on the unique index.
type Patient struct {
	BaseModel
	DocumentID string `gorm:"index"`
	FirstName  string `gorm:"not null"`
	LastName   string `gorm:"not null"`
	Phone      string
	Email      string
	BirthDate  *time.Time
	Sex        string
	Address    string
	BranchID   string  `gorm:"index"`
	SearchKey  string  `gorm:"index;not null"`
	RemoteID   *string `gorm:"uniqueIndex"`
	Synced     bool    `gorm:"index;not null;default:false"`
}

// TableName returns the table name for Patient
func (Patient) TableName() string {
	return "patients"
}

// ToDomain converts the model to a domain Patient
func (m *Patient) ToDomain() *patient.Patient {
	remoteID := ""
	if m.RemoteID != nil {
		remoteID = *m.RemoteID
	}
	return &patient.Patient{
		BaseEntity: m.BaseModel.ToDomain(),
		DocumentID: m.DocumentID,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Phone:      m.Phone,
		Email:      m.Email,
		BirthDate:  m.BirthDate,
		Sex:        m.Sex,
		Address:    m.Address,
		BranchID:   m.BranchID,
		SearchKey:  m.SearchKey,
		RemoteID:   remoteID,
		Synced:     m.Synced,
	}
}

// FromDomainPatient populates the model from a domain Patient
func (m *Patient) FromDomainPatient(p *patient.Patient) {
	m.BaseModel.FromDomain(p.BaseEntity)
	m.DocumentID = p.DocumentID
	m.FirstName = p.FirstName
	m.LastName = p.LastName
	m.Phone = p.Phone
	m.Email = p.Email
	m.BirthDate = p.BirthDate
	m.Sex = p.Sex
	m.Address = p.Address
	m.BranchID = p.BranchID
	m.SearchKey = p.SearchKey
	m.Synced = p.Synced
	if p.RemoteID != "" {
		m.RemoteID = &p.RemoteID
	} else {
		m.RemoteID = nil
	}
}
