package provision

import (
	"strings"
)

// MaxColumns is the number of portlet columns a synthesized layout supports.
const MaxColumns = 10

// BranchPolicy governs one privacy branch (private or public) of a user's
// personal pages.
type BranchPolicy struct {
	// Enabled turns the branch on. A disabled branch is also actively torn
	// down: existing pages of this kind are deleted on reconcile.
	Enabled bool

	// AutoCreate provisions the branch lazily on sign-in. Enabled without
	// AutoCreate means pages are kept if present but never created.
	AutoCreate bool

	// PowerUserRequired gates the branch on the power-user role. A user
	// without the role gets the branch deleted, not merely skipped.
	PowerUserRequired bool

	// ArchivePath points at a pre-built layout archive. When set and
	// validated, provisioning imports the archive instead of synthesizing a
	// layout from the declarative fields below.
	ArchivePath string

	// Declarative synthesis fields, used when no archive applies.
	LayoutName          string
	LayoutTemplateID    string
	FriendlyURL         string
	Columns             [MaxColumns][]string
	ThemeID             string
	ColorSchemeID       string
	MobileThemeID       string
	MobileColorSchemeID string
}

// Policy is the process-wide default layout provisioning policy, read-only
// after startup.
type Policy struct {
	Private BranchPolicy
	Public  BranchPolicy
}

// DefaultPolicy returns a policy matching the stock portal defaults: private
// pages auto-created for everyone, public pages off.
func DefaultPolicy() Policy {
	return Policy{
		Private: BranchPolicy{
			Enabled:          true,
			AutoCreate:       true,
			LayoutName:       "Welcome",
			LayoutTemplateID: "2_columns_ii",
			FriendlyURL:      "/home",
		},
		Public: BranchPolicy{},
	}
}

// NormalizeFriendlyURL canonicalizes a friendly URL: lowercase, a single
// leading slash, spaces collapsed to dashes.
func NormalizeFriendlyURL(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.Trim(s, "/")
	if s == "" {
		s = "home"
	}
	return "/" + s
}
