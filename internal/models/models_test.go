package models

import (
	"testing"
	"time"
)

func TestLocationRoundTrip(t *testing.T) {
	cases := []struct {
		lon, lat float64
	}{
		{0, 0},
		{-122.4194, 37.7749},
		{13.404954, 52.520008},
		{179.9999999, -89.9999999},
	}
	for _, c := range cases {
		content := FormatLocation(c.lon, c.lat)
		lon, lat, err := ParseLocation(content)
		if err != nil {
			t.Fatalf("ParseLocation(%q): %v", content, err)
		}
		if lon != c.lon || lat != c.lat {
			t.Fatalf("round-trip mismatch: got (%v,%v), want (%v,%v)", lon, lat, c.lon, c.lat)
		}
	}
}

func TestParseLocationMalformed(t *testing.T) {
	for _, content := range []string{"", "1.0", "a,b", "1.0,2.0,3.0", ",2.0"} {
		if _, _, err := ParseLocation(content); err == nil {
			t.Fatalf("ParseLocation(%q) should fail", content)
		}
	}
}

func TestDraftRenderContent(t *testing.T) {
	cases := []struct {
		draft Draft
		want  string
	}{
		{Draft{Kind: KindText, Text: "hi"}, "hi"},
		{Draft{Kind: KindPhoto, MediaURL: "https://cdn/x.png"}, "https://cdn/x.png"},
		{Draft{Kind: KindVideo, MediaURL: "https://cdn/x.mov"}, "https://cdn/x.mov"},
		{Draft{Kind: KindLocation, Longitude: -1.5, Latitude: 53.0}, "-1.5,53"},
		{Draft{Kind: KindEmoji, Text: "ignored"}, ""},
		{Draft{Kind: KindCustom}, ""},
	}
	for _, c := range cases {
		if got := c.draft.RenderContent(); got != c.want {
			t.Fatalf("RenderContent(%s) = %q, want %q", c.draft.Kind, got, c.want)
		}
	}
}

func TestMessageRecordValidate(t *testing.T) {
	valid := MessageRecord{
		ID:          "m1",
		Type:        KindText,
		Content:     "hello",
		Date:        Timestamp(time.Now()),
		SenderEmail: "a-x-com",
		Name:        "Bob",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	broken := []MessageRecord{
		func(m MessageRecord) MessageRecord { m.ID = ""; return m }(valid),
		func(m MessageRecord) MessageRecord { m.Type = ""; return m }(valid),
		func(m MessageRecord) MessageRecord { m.SenderEmail = ""; return m }(valid),
		func(m MessageRecord) MessageRecord { m.Date = "Dec 6, 2023 at 5:21:41 PM PST"; return m }(valid),
		func(m MessageRecord) MessageRecord { m.Type = KindLocation; m.Content = "nowhere"; return m }(valid),
	}
	for i, m := range broken {
		if err := m.Validate(); err == nil {
			t.Fatalf("broken record %d accepted", i)
		}
	}
}

func TestTimestampIsRFC3339UTC(t *testing.T) {
	ts := Timestamp(time.Date(2023, 12, 6, 17, 21, 41, 0, time.FixedZone("PST", -8*3600)))
	if ts != "2023-12-07T01:21:41Z" {
		t.Fatalf("expected UTC RFC3339 rendering, got %q", ts)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("Timestamp output not parseable: %v", err)
	}
}
