package kernel

import (
	"testing"

	"github.com/lazypower/pulse/internal/store"
)

func testKernel(t *testing.T) *Kernel {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	k, err := New(db)
	if err != nil {
		t.Fatalf("New kernel: %v", err)
	}
	return k
}

func TestCreateIdentity(t *testing.T) {
	k := testKernel(t)

	res, err := k.CreateIdentity("")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	if res.Recovered {
		t.Error("fresh identity marked recovered")
	}
	if res.Mnemonic == "" {
		t.Error("no mnemonic returned for fresh identity")
	}
	if res.Identity.Karma != 10 {
		t.Errorf("Karma = %v after genesis, want 10", res.Identity.Karma)
	}
	if k.CurrentDID() != res.Identity.DID {
		t.Errorf("CurrentDID = %q, want %q", k.CurrentDID(), res.Identity.DID)
	}

	// Genesis pulse anchors the chain.
	pulses, err := k.Pulses(res.Identity.DID, 10, "")
	if err != nil {
		t.Fatalf("Pulses: %v", err)
	}
	if len(pulses) != 1 {
		t.Fatalf("got %d pulses, want the genesis pulse only", len(pulses))
	}
	if pulses[0].Action != "identity_created" {
		t.Errorf("genesis action = %q, want identity_created", pulses[0].Action)
	}
	if pulses[0].PrevHash != nil {
		t.Error("genesis pulse has a prev hash")
	}
}

func TestCreateIdentityIdempotent(t *testing.T) {
	k := testKernel(t)
	phrase := "abandon ability able about"

	first, err := k.CreateIdentity(phrase)
	if err != nil {
		t.Fatalf("first CreateIdentity: %v", err)
	}
	second, err := k.CreateIdentity(phrase)
	if err != nil {
		t.Fatalf("second CreateIdentity: %v", err)
	}

	if first.Identity.DID != second.Identity.DID {
		t.Errorf("DIDs differ: %q vs %q", first.Identity.DID, second.Identity.DID)
	}
	if !second.Recovered {
		t.Error("second create not marked recovered")
	}

	// No duplicate genesis pulse.
	pulses, err := k.Pulses(first.Identity.DID, 10, "identity_created")
	if err != nil {
		t.Fatalf("Pulses: %v", err)
	}
	if len(pulses) != 1 {
		t.Errorf("got %d genesis pulses, want 1", len(pulses))
	}
}

func TestRecoverIdentityFallsBackToCreate(t *testing.T) {
	k := testKernel(t)

	res, err := k.RecoverIdentity("never seen before phrase")
	if err != nil {
		t.Fatalf("RecoverIdentity: %v", err)
	}
	if res.Recovered {
		t.Error("recovery of an absent identity marked recovered")
	}
	if k.CurrentDID() != res.Identity.DID {
		t.Error("recover did not set the session")
	}
}

func TestRecoverIdentityExisting(t *testing.T) {
	k := testKernel(t)
	phrase := "some fixed phrase"

	created, err := k.CreateIdentity(phrase)
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	if err := k.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	res, err := k.RecoverIdentity(phrase)
	if err != nil {
		t.Fatalf("RecoverIdentity: %v", err)
	}
	if !res.Recovered {
		t.Error("existing identity not marked recovered")
	}
	if res.Identity.DID != created.Identity.DID {
		t.Errorf("recovered DID = %q, want %q", res.Identity.DID, created.Identity.DID)
	}
}

func TestLogoutClearsSessionOnly(t *testing.T) {
	k := testKernel(t)

	res, err := k.CreateIdentity("")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	if err := k.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if k.CurrentDID() != "" {
		t.Error("session survived logout")
	}
	ident, err := k.DB().GetIdentity(res.Identity.DID)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if ident == nil {
		t.Error("identity deleted by logout")
	}
}

func TestSessionRestoredAcrossKernels(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	k1, err := New(db)
	if err != nil {
		t.Fatalf("New kernel: %v", err)
	}
	res, err := k1.CreateIdentity("")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}

	k2, err := New(db)
	if err != nil {
		t.Fatalf("New kernel (second): %v", err)
	}
	if k2.CurrentDID() != res.Identity.DID {
		t.Errorf("restored session = %q, want %q", k2.CurrentDID(), res.Identity.DID)
	}
}

func TestLeaderboard(t *testing.T) {
	k := testKernel(t)

	for _, tc := range []struct {
		did   string
		karma float64
	}{
		{"did:kernel:a", 50},
		{"did:kernel:b", 10},
		{"did:kernel:c", 90},
	} {
		if err := k.DB().SaveIdentity(&store.Identity{DID: tc.did, PublicKey: "pk", CreatedAt: 1, Karma: tc.karma, Status: "active"}); err != nil {
			t.Fatalf("SaveIdentity: %v", err)
		}
	}

	top, err := k.Leaderboard(2)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(top) != 2 || top[0].Karma != 90 || top[1].Karma != 50 {
		t.Errorf("Leaderboard(2) = %+v, want [90, 50]", top)
	}
}

func TestExportSnapshot(t *testing.T) {
	k := testKernel(t)

	if _, err := k.CreateIdentity(""); err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	if _, err := k.Emit("worked", 2, nil, "", nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if _, err := k.SpawnAgent("helper", "worker", nil); err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}

	snap, err := k.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if snap.Version != SnapshotVersion {
		t.Errorf("Version = %q, want %q", snap.Version, SnapshotVersion)
	}
	if snap.Identity == nil {
		t.Fatal("snapshot has no identity")
	}
	// genesis + worked + agent_spawned
	if len(snap.Pulses) != 3 {
		t.Errorf("got %d pulses, want 3", len(snap.Pulses))
	}
	if len(snap.Agents) != 1 {
		t.Errorf("got %d agents, want 1", len(snap.Agents))
	}
}

func TestExportRequiresIdentity(t *testing.T) {
	k := testKernel(t)

	if _, err := k.Export(); err != ErrNoActiveIdentity {
		t.Errorf("Export error = %v, want ErrNoActiveIdentity", err)
	}
}

func TestResetWipesEverything(t *testing.T) {
	k := testKernel(t)

	res, err := k.CreateIdentity("")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	if err := k.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if k.CurrentDID() != "" {
		t.Error("session survived reset")
	}
	ident, err := k.DB().GetIdentity(res.Identity.DID)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if ident != nil {
		t.Error("identity survived reset")
	}
}
