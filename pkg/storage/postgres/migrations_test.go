package postgres

import "testing"

func TestPendingMigrationsOrdered(t *testing.T) {
	migrations, err := pendingMigrations()
	if err != nil {
		t.Fatalf("pendingMigrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no embedded migrations")
	}
	if migrations[0].version != 1 || migrations[0].name != "001_create_analyses.sql" {
		t.Errorf("first migration = %+v", migrations[0])
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i].version <= migrations[i-1].version {
			t.Errorf("migrations out of order: %+v", migrations)
		}
	}
}
