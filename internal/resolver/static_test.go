package resolver

import (
	"context"
	"reflect"
	"testing"
)

func TestStatic(t *testing.T) {
	p := mustProvider(t, `
  - name: atom
    tag: ATOM
    kind: static
    group: Sports
    logo: https://img.example/atom.png
    static: {base: "https://cdn.example/live/", suffix: "/index.m3u8"}
    channels:
      - {id: bein1, name: Bein Sports 1}
      - {id: ssc1, name: SSC 1, group: Saudi, referer: "https://ref.example/"}
`)
	s := &Static{Provider: p}
	got, err := s.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(p.Channels) {
		t.Fatalf("len = %d, want %d", len(got), len(p.Channels))
	}
	assertValid(t, got)
	for i, c := range p.Channels {
		if want := "https://cdn.example/live/" + c.ID + "/index.m3u8"; got[i].URL != want {
			t.Errorf("entry %d url = %q, want %q", i, got[i].URL, want)
		}
	}
	if got[0].Name != "ATOM - Bein Sports 1" || got[0].Group != "Sports" || got[0].Logo != "https://img.example/atom.png" || got[0].Provider != "atom" {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].Group != "Saudi" || got[1].Referer != "https://ref.example/" {
		t.Errorf("entry 1 = %+v", got[1])
	}

	again, _ := s.Resolve(context.Background())
	if !reflect.DeepEqual(got, again) {
		t.Error("static resolution is not deterministic")
	}
}
