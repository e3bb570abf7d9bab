package dto

import (
	"strings"
	"testing"
	"time"
)

func TestDatesForDays(t *testing.T) {
	now := time.Date(2025, 7, 28, 15, 30, 0, 0, time.UTC)
	dates, err := DatesForDays(3, now)
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	var got []string
	for _, d := range dates {
		got = append(got, d.Format(DateLayout))
	}
	if strings.Join(got, ",") != "2025-07-25,2025-07-26,2025-07-27" {
		t.Fatalf("unexpected dates %v", got)
	}
	if _, err := DatesForDays(0, now); err == nil {
		t.Fatal("expected error for zero days")
	}
}

func TestDatesBetween(t *testing.T) {
	from, _ := ParseDate("2025-02-27")
	to, _ := ParseDate("2025-03-02")
	dates, err := DatesBetween(from, to)
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	if len(dates) != 4 || dates[3].Format(DateLayout) != "2025-03-02" {
		t.Fatalf("unexpected range %v", dates)
	}
	if _, err := DatesBetween(to, from); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, err := ParseDate("27/07/2025"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSyncRequestDates(t *testing.T) {
	now := time.Date(2025, 7, 28, 0, 0, 0, 0, time.UTC)

	dates, err := SyncRequest{From: "2025-07-01", To: "2025-07-02"}.Dates(now)
	if err != nil || len(dates) != 2 {
		t.Fatalf("range: %v %v", dates, err)
	}
	dates, err = SyncRequest{Days: 1}.Dates(now)
	if err != nil || dates[0].Format(DateLayout) != "2025-07-27" {
		t.Fatalf("days: %v %v", dates, err)
	}
	if _, err := (SyncRequest{}).Dates(now); err == nil {
		t.Fatal("expected error for empty request")
	}
	if _, err := (SyncRequest{From: "2025-07-01"}).Dates(now); err == nil {
		t.Fatal("expected error for open range")
	}
}
