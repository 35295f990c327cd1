package clock

import (
	"errors"
	"testing"
	"time"
)

func TestParseNormalizes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"09:00", "09:00:00"},
		{"9:05", "09:05:00"},
		{"14:30:15", "14:30:15"},
		{"10:00:00:00", "10:00:00"},
		{"10:15:30:99:1", "10:15:00"},
		{" 08:45 ", "08:45:00"},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("Parse(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "0900", "24:00", "12:60", "ab:cd", "12:00:61", "123:00", "-1:00", "+9:-0", "9:+5", "09:00:-1", "9 :00"} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("Parse(%q) expected ErrInvalidTime, got %v", in, err)
		}
	}
}

func TestMinutesAndShort(t *testing.T) {
	tod := MustParse("13:45:59")
	if tod.Minutes() != 13*60+45 {
		t.Fatalf("unexpected minutes %d", tod.Minutes())
	}
	if tod.Short() != "13:45" {
		t.Fatalf("unexpected short form %q", tod.Short())
	}
	if FromMinutes(tod.Minutes()).String() != "13:45:00" {
		t.Fatalf("FromMinutes round trip failed")
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	if Overlaps(600, 660, 660, 720) {
		t.Fatal("adjacent intervals must not overlap")
	}
	if !Overlaps(840, 900, 870, 930) {
		t.Fatal("14:00-15:00 should overlap 14:30-15:30")
	}
	if !Overlaps(600, 720, 630, 660) {
		t.Fatal("containing interval should overlap")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-02")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if d.Weekday() != time.Monday || FormatDate(d) != "2026-03-02" {
		t.Fatalf("unexpected date %s (%s)", d, d.Weekday())
	}
	if _, err := ParseDate("02/03/2026"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
