package squares

import "testing"

func TestContestActive(t *testing.T) {
	settled := RewardsPaid{Q1: true, Q2: true, Q3: true, Final: true}
	cases := []struct {
		name string
		c    Contest
		want bool
	}{
		{"claimable", Contest{BoxesClaimed: 40, RandomValuesSet: true}, true},
		{"awaiting randomness", Contest{BoxesClaimed: BoxesPerContest}, true},
		{"awaiting settlement", Contest{BoxesClaimed: BoxesPerContest, RandomValuesSet: true, RewardsPaid: RewardsPaid{Q1: true}}, true},
		{"settled", Contest{BoxesClaimed: BoxesPerContest, RandomValuesSet: true, RewardsPaid: settled}, false},
	}
	for _, tc := range cases {
		if got := tc.c.Active(); got != tc.want {
			t.Errorf("%s: Active() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBoxOwnerUnowned(t *testing.T) {
	cases := []struct {
		owner string
		want  bool
	}{
		{"", true},
		{"0x0000000000000000000000000000000000000000", true},
		{"0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", false},
	}
	for _, tc := range cases {
		b := BoxOwner{Owner: tc.owner}
		if got := b.Unowned(); got != tc.want {
			t.Errorf("Unowned(%q) = %v, want %v", tc.owner, got, tc.want)
		}
	}
}

func TestSettlementEventLabel(t *testing.T) {
	cases := []struct {
		ev   SettlementEvent
		want string
	}{
		{SettlementEvent{Kind: EventQuarter, Quarter: 1, PlayIndex: -1}, "Q1"},
		{SettlementEvent{Kind: EventQuarter, Quarter: 3, PlayIndex: -1}, "Q3"},
		{SettlementEvent{Kind: EventQuarter, Quarter: 4, PlayIndex: -1}, "Final"},
		{SettlementEvent{Kind: EventScoreChange, Quarter: 2, PlayIndex: 0}, "Score change #1"},
		{SettlementEvent{Kind: EventScoreChange, Quarter: 4, PlayIndex: 11}, "Score change #12"},
	}
	for _, tc := range cases {
		if got := tc.ev.Label(); got != tc.want {
			t.Errorf("Label(%+v) = %q, want %q", tc.ev, got, tc.want)
		}
	}
}

func TestSettlementEventRecency(t *testing.T) {
	q1 := SettlementEvent{Kind: EventQuarter, Quarter: 1, PlayIndex: -1}
	playQ1 := SettlementEvent{Kind: EventScoreChange, Quarter: 1, PlayIndex: 2}
	q4 := SettlementEvent{Kind: EventQuarter, Quarter: 4, PlayIndex: -1}
	playQ4 := SettlementEvent{Kind: EventScoreChange, Quarter: 4, PlayIndex: 0}

	if !(playQ1.Recency() < q1.Recency()) {
		t.Error("a quarter boundary settles after plays inside the quarter")
	}
	if !(q1.Recency() < playQ4.Recency()) {
		t.Error("later quarters are more recent")
	}
	if !(playQ4.Recency() < q4.Recency()) {
		t.Error("the final boundary is the most recent event")
	}
}
