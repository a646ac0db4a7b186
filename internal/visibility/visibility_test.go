package visibility

import "testing"

func vp(v Visibility) *Visibility { return &v }

func TestRankOrder(t *testing.T) {
	if !(Rank(Approved) < Rank(Blurred) && Rank(Blurred) < Rank(Anonymized) && Rank(Anonymized) < Rank(Removed)) {
		t.Fatalf("rank order broken: %d %d %d %d", Rank(Approved), Rank(Blurred), Rank(Anonymized), Rank(Removed))
	}
	if Rank(Anonymized) != Rank(Pending) {
		t.Fatalf("anonymized and pending must share a rank")
	}
}

func TestComparisonsAreNegations(t *testing.T) {
	all := []Visibility{Approved, Blurred, Anonymized, Pending, Removed}
	for _, a := range all {
		for _, b := range all {
			if IsMorePrivateOrEqual(a, b) == IsLessPrivate(a, b) {
				t.Errorf("IsMorePrivateOrEqual(%s,%s) and IsLessPrivate must disagree", a, b)
			}
		}
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	if _, err := Parse("visible"); err == nil {
		t.Fatalf("expected error for unknown value")
	}
	got, err := Parse("blurred")
	if err != nil || got != Blurred {
		t.Fatalf("Parse(blurred) = %v, %v", got, err)
	}
}

func TestNormalizeFailsPrivate(t *testing.T) {
	if got := Normalize("banana"); got != Pending {
		t.Fatalf("unknown stored value should normalize to pending, got %s", got)
	}
	if got := Normalize(""); got != Pending {
		t.Fatalf("empty stored value should normalize to pending, got %s", got)
	}
}

func TestResolvePrecedence(t *testing.T) {
	cases := []struct {
		name       string
		override   *Visibility
		authorPref *Visibility
		globalPref *Visibility
		base       Visibility
		want       Visibility
	}{
		{"override wins", vp(Removed), vp(Approved), vp(Approved), Approved, Removed},
		{"pending override defers", vp(Pending), vp(Blurred), vp(Approved), Approved, Blurred},
		{"author pref over global", nil, vp(Approved), vp(Anonymized), Blurred, Approved},
		{"global pref over base", nil, nil, vp(Anonymized), Approved, Anonymized},
		{"base when nothing else", nil, nil, nil, Blurred, Blurred},
		{"nothing resolves to pending", nil, nil, nil, "", Pending},
		{"removed base is absorbing", vp(Approved), vp(Approved), vp(Approved), Removed, Removed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.override, tc.authorPref, tc.globalPref, tc.base); got != tc.want {
				t.Fatalf("Resolve = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestResolveMonotonicPrivacy(t *testing.T) {
	// The result is never less private than the highest-precedence applicable
	// non-nil layer.
	levels := []Visibility{Approved, Blurred, Anonymized, Removed}
	for _, author := range levels {
		for _, base := range levels {
			got := Resolve(nil, vp(author), nil, base)
			want := author
			if base == Removed {
				want = Removed
			}
			if IsLessPrivate(got, want) {
				t.Errorf("Resolve(nil,%s,nil,%s) = %s is less private than %s", author, base, got, want)
			}
		}
	}
}

func TestScenarioAuthorPreference(t *testing.T) {
	// Person with blurred base; contributor C has an approved author
	// preference, contributor D has none.
	base := Blurred
	forC := Resolve(nil, vp(Approved), nil, base)
	if forC != Approved {
		t.Fatalf("note by C should resolve approved, got %s", forC)
	}
	forD := Resolve(nil, nil, nil, base)
	if forD != Blurred {
		t.Fatalf("note by D should resolve blurred, got %s", forD)
	}
}

func TestCanSetNoteOverride(t *testing.T) {
	if CanSetNoteOverride(Approved, Blurred) {
		t.Fatalf("loosening below baseline must be rejected")
	}
	if !CanSetNoteOverride(Removed, Anonymized) {
		t.Fatalf("tightening must be allowed")
	}
	if !CanSetNoteOverride(Blurred, Blurred) {
		t.Fatalf("equal privacy must be allowed")
	}
	for _, baseline := range []Visibility{Approved, Blurred, Anonymized, Pending, Removed} {
		if !CanSetNoteOverride(Pending, baseline) {
			t.Fatalf("pending must be accepted against baseline %s", baseline)
		}
	}
}

func TestResolveMostPrivateLegacyRule(t *testing.T) {
	if got := ResolveMostPrivate(Approved, Anonymized); got != Anonymized {
		t.Fatalf("legacy rule should pick the more private side, got %s", got)
	}
	if got := ResolveMostPrivate(Removed, Approved); got != Removed {
		t.Fatalf("legacy rule should pick removed, got %s", got)
	}
}
