package kernel

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestEmitRequiresIdentity(t *testing.T) {
	k := testKernel(t)

	if _, err := k.Emit("anything", 1, nil, "", nil); !errors.Is(err, ErrNoActiveIdentity) {
		t.Errorf("Emit error = %v, want ErrNoActiveIdentity", err)
	}
}

func TestChainIntegrity(t *testing.T) {
	k := testKernel(t)

	res, err := k.CreateIdentity("")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	did := res.Identity.DID

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := k.Emit(fmt.Sprintf("step_%d", i), 1, nil, "", nil); err != nil {
			t.Fatalf("Emit %d: %v", i, err)
		}
	}

	report, err := k.VerifyChain(did)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if !report.Valid {
		t.Errorf("chain invalid, broken at %s", report.BrokenAt)
	}
	if report.Count != n+1 { // genesis included
		t.Errorf("Count = %d, want %d", report.Count, n+1)
	}

	// Each pulse links to its predecessor's hash.
	pulses, err := k.DB().GetPulsesAsc(did)
	if err != nil {
		t.Fatalf("GetPulsesAsc: %v", err)
	}
	if pulses[0].PrevHash != nil {
		t.Error("first pulse has a prev hash")
	}
	for i := 1; i < len(pulses); i++ {
		if pulses[i].PrevHash == nil || *pulses[i].PrevHash != pulses[i-1].Hash {
			t.Errorf("pulse %d prev hash does not match predecessor", i)
		}
	}
}

func TestVerifyEmptyChain(t *testing.T) {
	k := testKernel(t)

	report, err := k.VerifyChain("did:kernel:nobody")
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if !report.Valid {
		t.Error("empty chain reported invalid")
	}
	if report.Count != 0 {
		t.Errorf("Count = %d, want 0", report.Count)
	}
}

func TestKarmaCapping(t *testing.T) {
	k := testKernel(t)

	res, err := k.CreateIdentity("")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	base := res.Identity.Karma

	// min(12,10) + min(-5,10) + min(3,10) = 10 - 5 + 3 = 8.
	for _, impact := range []float64{12, -5, 3} {
		if _, err := k.Emit("work", impact, nil, "", nil); err != nil {
			t.Fatalf("Emit %v: %v", impact, err)
		}
	}

	ident, err := k.CurrentIdentity()
	if err != nil {
		t.Fatalf("CurrentIdentity: %v", err)
	}
	if got := ident.Karma - base; got != 8 {
		t.Errorf("karma delta = %v, want 8", got)
	}

	// The uncapped impact is stored verbatim.
	pulses, err := k.Pulses(ident.DID, 10, "work")
	if err != nil {
		t.Fatalf("Pulses: %v", err)
	}
	if pulses[2].Impact != 12 {
		t.Errorf("stored impact = %v, want 12", pulses[2].Impact)
	}
}

func TestTamperDetection(t *testing.T) {
	k := testKernel(t)

	res, err := k.CreateIdentity("")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	did := res.Identity.DID

	for i := 0; i < 3; i++ {
		if _, err := k.Emit("work", 1, nil, "", nil); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	pulses, err := k.DB().GetPulsesAsc(did)
	if err != nil {
		t.Fatalf("GetPulsesAsc: %v", err)
	}
	victim := pulses[2]
	if _, err := k.DB().Exec(
		`UPDATE pulses SET prev_hash = 'forged' WHERE pulse_id = ?`, victim.PulseID,
	); err != nil {
		t.Fatalf("tamper update: %v", err)
	}

	report, err := k.VerifyChain(did)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if report.Valid {
		t.Fatal("tampered chain reported valid")
	}
	if report.BrokenAt != victim.PulseID {
		t.Errorf("BrokenAt = %s, want %s", report.BrokenAt, victim.PulseID)
	}
}

func TestPulseFilterNewestFirst(t *testing.T) {
	k := testKernel(t)

	res, err := k.CreateIdentity("")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}

	for i := 0; i < 4; i++ {
		action := "ping"
		if i%2 == 1 {
			action = "pong"
		}
		if _, err := k.Emit(action, 1, nil, "", nil); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	pings, err := k.Pulses(res.Identity.DID, 1, "ping")
	if err != nil {
		t.Fatalf("Pulses: %v", err)
	}
	if len(pings) != 1 {
		t.Fatalf("got %d pulses, want 1 (limit)", len(pings))
	}
	if pings[0].Action != "ping" {
		t.Errorf("Action = %q, want ping", pings[0].Action)
	}

	all, err := k.Pulses(res.Identity.DID, 10, "ping")
	if err != nil {
		t.Fatalf("Pulses: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d pings, want 2", len(all))
	}
	// Newest first: the limit-1 result is the newest ping.
	if pings[0].PulseID != all[0].PulseID {
		t.Error("limited query did not return the newest match")
	}
}

func TestConcurrentEmitsStayLinked(t *testing.T) {
	k := testKernel(t)

	res, err := k.CreateIdentity("")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	did := res.Identity.DID

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := k.Emit("concurrent", 1, nil, "", nil); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Emit: %v", err)
	}

	report, err := k.VerifyChain(did)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if !report.Valid {
		t.Errorf("chain invalid after concurrent emits, broken at %s", report.BrokenAt)
	}
	if report.Count != workers+1 {
		t.Errorf("Count = %d, want %d", report.Count, workers+1)
	}
}

func TestPulseHashExcludesImpact(t *testing.T) {
	// The hash is a linkage proof over origin/time/action/prev only.
	a := pulseHash("did:kernel:x", 1000, "work", nil)
	b := pulseHash("did:kernel:x", 1000, "work", nil)
	if a != b {
		t.Error("pulse hash not deterministic")
	}

	prev := "abc"
	c := pulseHash("did:kernel:x", 1000, "work", &prev)
	if a == c {
		t.Error("prev hash does not affect pulse hash")
	}
	d := pulseHash("did:kernel:x", 1001, "work", nil)
	if a == d {
		t.Error("timestamp does not affect pulse hash")
	}
}
