package mining

import (
	"testing"
	"time"

	"teos_mining/internal/domain"

	"github.com/shopspring/decimal"
)

func TestRewardsFor(t *testing.T) {
	cases := []struct {
		tier           domain.Tier
		teos, tut, ert int64
	}{
		{domain.TierFree, 12, 6, 3},
		{domain.TierBasic, 24, 12, 6},
		{domain.TierPro, 36, 18, 9},
		{domain.Tier("unknown"), 12, 6, 3},
	}
	for _, tc := range cases {
		r := RewardsFor(tc.tier)
		if !r[domain.TokenTEOS].Equal(decimal.NewFromInt(tc.teos)) ||
			!r[domain.TokenTUT].Equal(decimal.NewFromInt(tc.tut)) ||
			!r[domain.TokenERT].Equal(decimal.NewFromInt(tc.ert)) {
			t.Fatalf("tier %s: unexpected rewards %v", tc.tier, r)
		}
	}
}

func TestRewardsForReturnsCopy(t *testing.T) {
	r := RewardsFor(domain.TierPro)
	r[domain.TokenTEOS] = decimal.Zero
	if !RewardsFor(domain.TierPro).Primary().Equal(decimal.NewFromInt(36)) {
		t.Fatalf("reward table was mutated through a returned map")
	}
}

func TestCanClaimBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if !CanClaim(nil, now) {
		t.Fatalf("absent last claim must allow claiming")
	}
	exact := now.Add(-Cooldown)
	if !CanClaim(&exact, now) {
		t.Fatalf("exact 24h boundary must allow claiming")
	}
	almost := now.Add(-Cooldown + time.Millisecond)
	if CanClaim(&almost, now) {
		t.Fatalf("claim 1ms before boundary must be refused")
	}
}

func TestTimeUntilNextClaim(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if d := TimeUntilNextClaim(nil, now); d != 0 {
		t.Fatalf("expected 0 without last claim, got %s", d)
	}
	last := now.Add(-23 * time.Hour)
	if d := TimeUntilNextClaim(&last, now); d != time.Hour {
		t.Fatalf("expected 1h, got %s", d)
	}
	old := now.Add(-48 * time.Hour)
	if d := TimeUntilNextClaim(&old, now); d != 0 {
		t.Fatalf("expected clamp at zero, got %s", d)
	}
}

func TestTimeUntilNextClaimMonotonic(t *testing.T) {
	last := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	prev := TimeUntilNextClaim(&last, last)
	for step := time.Duration(0); step <= 30*time.Hour; step += 17 * time.Minute {
		d := TimeUntilNextClaim(&last, last.Add(step))
		if d > prev {
			t.Fatalf("remaining increased at +%s: %s > %s", step, d, prev)
		}
		if d < 0 {
			t.Fatalf("remaining negative at +%s", step)
		}
		prev = d
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := map[time.Duration]string{
		0:                              "Ready!",
		-time.Minute:                   "Ready!",
		time.Hour:                      "1h 0m",
		23*time.Hour + 59*time.Minute:  "23h 59m",
		5*time.Minute + 30*time.Second: "0h 5m",
	}
	for d, want := range cases {
		if got := FormatRemaining(d); got != want {
			t.Fatalf("%s: expected %q, got %q", d, want, got)
		}
	}
}

func TestProjectEarnings(t *testing.T) {
	p := ProjectEarnings(domain.TierPro, 2)
	if !p.Daily.Equal(decimal.RequireFromString("3.6")) {
		t.Fatalf("expected daily 3.6, got %s", p.Daily)
	}
	if !p.Monthly.Equal(decimal.RequireFromString("108")) {
		t.Fatalf("expected monthly 108, got %s", p.Monthly)
	}
	if !p.Yearly.Equal(decimal.RequireFromString("1314")) {
		t.Fatalf("expected yearly 1314, got %s", p.Yearly)
	}
	if !ReferralBonus(decimal.NewFromInt(36)).Equal(decimal.RequireFromString("1.8")) {
		t.Fatalf("expected 5%% of 36 to be 1.8")
	}
}
