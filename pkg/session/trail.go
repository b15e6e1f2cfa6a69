package session

// Trail tracks the two most-recently-visited non-control-panel group ids in
// a session. The caller narrows recording to the canonical layout-serving
// path so resource sub-requests do not perturb the trail.

// RecordVisit shifts the recent group id into previous and stores groupID as
// recent. Visiting the already-recent group is a no-op. It reports whether
// the session changed.
func RecordVisit(sess *Session, groupID int64) bool {
	recent, ok := sess.GetInt64(keyVisitedRecent)
	if !ok {
		sess.SetInt64(keyVisitedRecent, groupID)
		return true
	}
	if recent == groupID {
		return false
	}
	sess.SetInt64(keyVisitedPrevious, recent)
	sess.SetInt64(keyVisitedRecent, groupID)
	return true
}

// RecentGroupID returns the most recently visited group id.
func RecentGroupID(sess *Session) (int64, bool) {
	return sess.GetInt64(keyVisitedRecent)
}

// PreviousGroupID returns the group visited before the recent one.
func PreviousGroupID(sess *Session) (int64, bool) {
	return sess.GetInt64(keyVisitedPrevious)
}
