package schedule

import "testing"

func TestNewSlotGrid_StandardWorkday(t *testing.T) {
	grid, err := NewSlotGrid(7*60, 18*60+30, 30)
	if err != nil {
		t.Fatalf("NewSlotGrid: %v", err)
	}

	slots := grid.Slots()
	if len(slots) != 23 {
		t.Fatalf("len(slots) = %d, want 23", len(slots))
	}

	first := slots[0]
	if first.Start() != "07:00" || first.End() != "07:30" {
		t.Errorf("first slot = %s-%s, want 07:00-07:30", first.Start(), first.End())
	}

	last := slots[len(slots)-1]
	if last.Start() != "18:00" || last.End() != "18:30" {
		t.Errorf("last slot = %s-%s, want 18:00-18:30", last.Start(), last.End())
	}

	for i := 1; i < len(slots); i++ {
		if slots[i].StartMinute != slots[i-1].EndMinute {
			t.Errorf("slot %d starts at %d, want contiguous from %d", i, slots[i].StartMinute, slots[i-1].EndMinute)
		}
	}
}

func TestNewSlotGrid_RejectsUnevenRange(t *testing.T) {
	// 07:00-18:20 is not divisible by 30 minutes; the grid must fail at
	// construction instead of truncating.
	if _, err := NewSlotGrid(7*60, 18*60+20, 30); err == nil {
		t.Fatal("expected error for non-divisible range")
	}
}

func TestNewSlotGrid_RejectsBadBounds(t *testing.T) {
	cases := []struct {
		name             string
		start, end, gran int
	}{
		{"zero granularity", 420, 1110, 0},
		{"negative granularity", 420, 1110, -30},
		{"end before start", 1110, 420, 30},
		{"end equals start", 420, 420, 30},
		{"past midnight", 420, 25 * 60, 30},
		{"negative start", -30, 420, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSlotGrid(tc.start, tc.end, tc.gran); err == nil {
				t.Fatalf("expected error for start=%d end=%d gran=%d", tc.start, tc.end, tc.gran)
			}
		})
	}
}

func TestParseMinute(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"07:00", 420, false},
		{"18:30", 1110, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"7:00", 0, true},
		{"07:60", 0, true},
		{"0700", 0, true},
		{"", 0, true},
		{"ab:cd", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseMinute(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMinute(%q) expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMinute(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMinute(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatMinute(t *testing.T) {
	if got := FormatMinute(420); got != "07:00" {
		t.Errorf("FormatMinute(420) = %q, want 07:00", got)
	}
	if got := FormatMinute(1110); got != "18:30" {
		t.Errorf("FormatMinute(1110) = %q, want 18:30", got)
	}
}

func TestBlockCovers(t *testing.T) {
	start, end := 600, 660 // 10:00-11:00

	partial := Block{StartMinute: &start, EndMinute: &end}
	fullDay := Block{}

	cases := []struct {
		name       string
		slotS, slotE int
		block      *Block
		want       bool
	}{
		{"inside", 600, 630, &partial, true},
		{"straddles start", 570, 630, &partial, true},
		{"straddles end", 630, 690, &partial, true},
		{"touches start boundary", 570, 600, &partial, false},
		{"touches end boundary", 660, 690, &partial, false},
		{"disjoint", 720, 750, &partial, false},
		{"full day always covers", 420, 450, &fullDay, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.block.Covers(tc.slotS, tc.slotE); got != tc.want {
				t.Errorf("Covers(%d, %d) = %v, want %v", tc.slotS, tc.slotE, got, tc.want)
			}
		})
	}
}
