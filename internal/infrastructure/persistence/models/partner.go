package models

import (
	"github.com/crechebooks/backend/internal/domain/partner"
	"github.com/google/uuid"
)

// ParentModel is the persistence model for the Parent aggregate root.
type ParentModel struct {
	TenantAggregateModel
	FirstName        string                    `gorm:"type:varchar(100);not null"`
	LastName         string                    `gorm:"type:varchar(100);not null"`
	PreferredContact partner.ContactPreference `gorm:"type:varchar(20);not null;default:'EMAIL'"`
	Email            string                    `gorm:"type:varchar(200)"`
	WhatsApp         string                    `gorm:"column:whatsapp;type:varchar(20)"`
}

// TableName returns the table name for GORM
func (ParentModel) TableName() string {
	return "parents"
}

// ToDomain converts the persistence model to a domain Parent entity.
func (m *ParentModel) ToDomain() *partner.Parent {
	return &partner.Parent{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		FirstName:           m.FirstName,
		LastName:            m.LastName,
		PreferredContact:    m.PreferredContact,
		Email:               m.Email,
		WhatsApp:            m.WhatsApp,
	}
}

// ParentModelFromDomain creates a new persistence model from domain.
func ParentModelFromDomain(p *partner.Parent) *ParentModel {
	m := &ParentModel{
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		PreferredContact: p.PreferredContact,
		Email:            p.Email,
		WhatsApp:         p.WhatsApp,
	}
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	return m
}

// ChildModel is the persistence model for the Child aggregate root.
type ChildModel struct {
	TenantAggregateModel
	ParentID  uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName string    `gorm:"type:varchar(100);not null"`
	LastName  string    `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (ChildModel) TableName() string {
	return "children"
}

// ToDomain converts the persistence model to a domain Child entity.
func (m *ChildModel) ToDomain() *partner.Child {
	return &partner.Child{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		ParentID:            m.ParentID,
		FirstName:           m.FirstName,
		LastName:            m.LastName,
	}
}

// ChildModelFromDomain creates a new persistence model from domain.
func ChildModelFromDomain(c *partner.Child) *ChildModel {
	m := &ChildModel{
		ParentID:  c.ParentID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	return m
}

// CrecheProfileModel is the persistence model for a tenant's CrecheProfile.
type CrecheProfileModel struct {
	TenantAggregateModel
	Name              string `gorm:"type:varchar(200);not null"`
	Phone             string `gorm:"type:varchar(30)"`
	Email             string `gorm:"type:varchar(200)"`
	BankName          string `gorm:"type:varchar(100)"`
	BankAccountNumber string `gorm:"type:varchar(50)"`
	BankBranchCode    string `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (CrecheProfileModel) TableName() string {
	return "creche_profiles"
}

// ToDomain converts the persistence model to a domain CrecheProfile.
func (m *CrecheProfileModel) ToDomain() *partner.CrecheProfile {
	return &partner.CrecheProfile{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Name:                m.Name,
		Phone:               m.Phone,
		Email:               m.Email,
		BankName:            m.BankName,
		BankAccountNumber:   m.BankAccountNumber,
		BankBranchCode:      m.BankBranchCode,
	}
}

// CrecheProfileModelFromDomain creates a new persistence model from domain.
func CrecheProfileModelFromDomain(p *partner.CrecheProfile) *CrecheProfileModel {
	m := &CrecheProfileModel{
		Name:              p.Name,
		Phone:             p.Phone,
		Email:             p.Email,
		BankName:          p.BankName,
		BankAccountNumber: p.BankAccountNumber,
		BankBranchCode:    p.BankBranchCode,
	}
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	return m
}
