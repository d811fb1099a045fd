package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinic/terminal/internal/domain/catalog"
)

// Reference-data mirror tables. The authority owns these rows, so the
// primary key is the authority's id and every write is an upsert.

// CatalogStudy maps catalog.Study.
type CatalogStudy struct {
	RemoteID  string          `gorm:"primaryKey"`
	Code      string          `gorm:"index;not null"`
	Name      string          `gorm:"not null"`
	Category  string          `gorm:"index"`
	Price     decimal.Decimal `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for CatalogStudy
func (CatalogStudy) TableName() string {
	return "catalog_studies"
}

// ToDomain converts the model to a domain Study
func (m *CatalogStudy) ToDomain() catalog.Study {
	return catalog.Study{
		RemoteID:  m.RemoteID,
		Code:      m.Code,
		Name:      m.Name,
		Category:  m.Category,
		Price:     m.Price,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainStudy populates the model from a domain Study
func (m *CatalogStudy) FromDomainStudy(s catalog.Study) {
	m.RemoteID = s.RemoteID
	m.Code = s.Code
	m.Name = s.Name
	m.Category = s.Category
	m.Price = s.Price
	m.UpdatedAt = s.UpdatedAt
}

// CatalogBranch maps catalog.Branch.
type CatalogBranch struct {
	RemoteID string `gorm:"primaryKey"`
	Code     string `gorm:"uniqueIndex;not null"`
	Name     string `gorm:"not null"`
}

// TableName returns the table name for CatalogBranch
func (CatalogBranch) TableName() string {
	return "catalog_branches"
}

// ToDomain converts the model to a domain Branch
func (m *CatalogBranch) ToDomain() catalog.Branch {
	return catalog.Branch{RemoteID: m.RemoteID, Code: m.Code, Name: m.Name}
}

// FromDomainBranch populates the model from a domain Branch
func (m *CatalogBranch) FromDomainBranch(b catalog.Branch) {
	m.RemoteID = b.RemoteID
	m.Code = b.Code
	m.Name = b.Name
}

// CatalogEquipment maps catalog.Equipment.
type CatalogEquipment struct {
	RemoteID string `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	Modality string
	BranchID string `gorm:"index"`
	Active   bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for CatalogEquipment
func (CatalogEquipment) TableName() string {
	return "catalog_equipment"
}

// ToDomain converts the model to a domain Equipment
func (m *CatalogEquipment) ToDomain() catalog.Equipment {
	return catalog.Equipment{
		RemoteID: m.RemoteID,
		Name:     m.Name,
		Modality: m.Modality,
		BranchID: m.BranchID,
		Active:   m.Active,
	}
}

// FromDomainEquipment populates the model from a domain Equipment
func (m *CatalogEquipment) FromDomainEquipment(e catalog.Equipment) {
	m.RemoteID = e.RemoteID
	m.Name = e.Name
	m.Modality = e.Modality
	m.BranchID = e.BranchID
	m.Active = e.Active
}

// CatalogStaff maps catalog.StaffMember.
type CatalogStaff struct {
	RemoteID    string `gorm:"primaryKey"`
	Username    string `gorm:"index;not null"`
	DisplayName string
	Role        string
	BranchID    string `gorm:"index"`
}

// TableName returns the table name for CatalogStaff
func (CatalogStaff) TableName() string {
	return "catalog_staff"
}

// ToDomain converts the model to a domain StaffMember
func (m *CatalogStaff) ToDomain() catalog.StaffMember {
	return catalog.StaffMember{
		RemoteID:    m.RemoteID,
		Username:    m.Username,
		DisplayName: m.DisplayName,
		Role:        m.Role,
		BranchID:    m.BranchID,
	}
}

// FromDomainStaff populates the model from a domain StaffMember
func (m *CatalogStaff) FromDomainStaff(s catalog.StaffMember) {
	m.RemoteID = s.RemoteID
	m.Username = s.Username
	m.DisplayName = s.DisplayName
	m.Role = s.Role
	m.BranchID = s.BranchID
}
