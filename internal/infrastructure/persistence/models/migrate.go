package models

// All returns one zero value of every model, in dependency order, for
// AutoMigrate.
func All() []any {
	return []any{
		&IdentifierRange{},
		&IdentifierAllocation{},
		&PendingRecord{},
		&CashSession{},
		&Invoice{},
		&InvoiceLine{},
		&Patient{},
		&CachedCredential{},
		&CatalogStudy{},
		&CatalogBranch{},
		&CatalogEquipment{},
		&CatalogStaff{},
	}
}
