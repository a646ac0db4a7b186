package visibility

// Resolve computes the effective visibility for one person reference from the
// layered inputs. The most specific layer wins: a non-pending note override,
// then the mentioned person's preference for the note's author, then their
// global preference, then the person record's base visibility. A nil layer
// means "no opinion"; an explicit pending override means "defer to baseline".
//
// A removed base visibility is absorbing: a person who is globally removed
// has withdrawn consent entirely, and no narrower layer may surface them.
func Resolve(override, authorPref, globalPref *Visibility, personBase Visibility) Visibility {
	if Normalize(string(personBase)) == Removed {
		return Removed
	}
	if override != nil && *override != Pending {
		return Normalize(string(*override))
	}
	if authorPref != nil {
		return Normalize(string(*authorPref))
	}
	if globalPref != nil {
		return Normalize(string(*globalPref))
	}
	if personBase == "" {
		return Pending
	}
	return Normalize(string(personBase))
}

// Baseline is the effective visibility without a note-level override. It is
// the ceiling the guard checks candidate overrides against.
func Baseline(authorPref, globalPref *Visibility, personBase Visibility) Visibility {
	return Resolve(nil, authorPref, globalPref, personBase)
}

// ResolveMostPrivate returns the more private of a reference's own visibility
// and the person's visibility.
//
// Deprecated: this is the resolution rule some old feed-rendering paths used
// before the precedence chain in Resolve became the single source of truth.
// It is retained for comparison during migration and must not be wired into
// new render paths.
func ResolveMostPrivate(refVisibility, personVisibility Visibility) Visibility {
	if Rank(refVisibility) >= Rank(personVisibility) {
		return Normalize(string(refVisibility))
	}
	return Normalize(string(personVisibility))
}
