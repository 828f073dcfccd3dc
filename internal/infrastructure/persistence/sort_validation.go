package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"id":                   true,
	"created_at":           true,
	"updated_at":           true,
	"invoice_number":       true,
	"due_date":             true,
	"issue_date":           true,
	"billing_period_start": true,
	"total_cents":          true,
	"amount_paid_cents":    true,
	"status":               true,
}

// TransactionSortFields contains allowed sort fields for bank transactions
var TransactionSortFields = map[string]bool{
	"id":              true,
	"created_at":      true,
	"date":            true,
	"amount_cents":    true,
	"allocated_cents": true,
	"payee_name":      true,
	"status":          true,
}

// ReconciliationSortFields contains allowed sort fields for reconciliations
var ReconciliationSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"period_start":      true,
	"period_end":        true,
	"discrepancy_cents": true,
	"status":            true,
}
