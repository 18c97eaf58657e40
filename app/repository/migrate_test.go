package repository

import (
	"strings"
	"testing"
)

func TestSchemaStatementsCoverAllTables(t *testing.T) {
	statements := schemaStatements()
	tables := []string{
		"accounts", "account_balances", "merchants", "merchant_api_keys", "cards",
		"payment_flows", "ledger_transactions", "idempotency_records", "flow_events", "webhook_deliveries",
	}
	if len(statements) != len(tables) {
		t.Fatalf("expected %d statements, got %d", len(tables), len(statements))
	}
	for i, table := range tables {
		if !strings.HasPrefix(statements[i], "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("statement %d does not create %s: %.60s", i, table, statements[i])
		}
	}
}
