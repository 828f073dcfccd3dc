// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models (BaseModel, TenantEntityModel, TenantAggregateModel)
// - finance.go: Bookkeeping models (invoices, bank transactions, payments, reconciliations, reminders)
// - partner.go: Directory models (parents, children, creche profiles)
//
// Money columns are bigint cents. Period and due dates are stored as dates at UTC midnight.
package models
