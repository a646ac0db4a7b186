package visibility

// CanSetNoteOverride reports whether a proposed note-level override may be
// written. An override may only hold or increase privacy relative to the
// resolved baseline; pending always succeeds because it defers to the
// baseline rather than replacing it.
func CanSetNoteOverride(candidate, baseline Visibility) bool {
	if candidate == Pending {
		return true
	}
	return IsMorePrivateOrEqual(candidate, baseline)
}
