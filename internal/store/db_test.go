package store

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if want := migrations[len(migrations)-1].Version; version != want {
		t.Errorf("SchemaVersion = %d, want %d", version, want)
	}
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.db")

	db1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db1.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	db2.Close()
}

func TestOpenSchemaConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	// Pretend a newer binary wrote this store.
	if _, err := db.Exec(
		"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
		9999, "from the future",
	); err != nil {
		t.Fatalf("insert future version: %v", err)
	}
	db.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("Open succeeded on a store with a future schema version")
	}
}

func TestReset(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	ident := &Identity{DID: "did:kernel:abc", PublicKey: "pk", CreatedAt: 1, Status: "active"}
	if err := db.SaveIdentity(ident); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}
	p := &Pulse{PulseID: "p1", OriginDID: ident.DID, CreatedAt: 2, Action: "x", Hash: "h"}
	if err := db.AppendPulse(p, 1); err != nil {
		t.Fatalf("AppendPulse: %v", err)
	}
	if err := db.SetCurrentDID(ident.DID); err != nil {
		t.Fatalf("SetCurrentDID: %v", err)
	}

	if err := db.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	got, err := db.GetIdentity(ident.DID)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if got != nil {
		t.Error("identity survived reset")
	}
	n, err := db.CountPulses()
	if err != nil {
		t.Fatalf("CountPulses: %v", err)
	}
	if n != 0 {
		t.Errorf("CountPulses = %d after reset, want 0", n)
	}
	did, err := db.CurrentDID()
	if err != nil {
		t.Fatalf("CurrentDID: %v", err)
	}
	if did != "" {
		t.Errorf("CurrentDID = %q after reset, want empty", did)
	}
}
