package provision

import "context"

// Import option keys understood by layout archive importers.
const (
	OptPermissions               = "permissions"
	OptPortletData               = "portlet-data"
	OptPortletDataControlDefault = "portlet-data-control-default"
	OptPortletSetup              = "portlet-setup"
	OptUserPermissions           = "user-permissions"
)

// ImportOptions returns the option set applied when provisioning personal
// pages from an archive: everything transfers except per-user permissions.
func ImportOptions() map[string]bool {
	return map[string]bool{
		OptPermissions:               true,
		OptPortletData:               true,
		OptPortletDataControlDefault: true,
		OptPortletSetup:              true,
		OptUserPermissions:           false,
	}
}

// Importer imports a layout archive into a group's private or public tree.
// The portal core does not parse archives itself; the importer is an external
// collaborator.
type Importer interface {
	ImportLayouts(ctx context.Context, userID, groupID int64, private bool, options map[string]bool, path string) error
}
