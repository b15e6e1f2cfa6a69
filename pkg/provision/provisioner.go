package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/observability"
	"github.com/parapet/portal/pkg/permission"
	"github.com/parapet/portal/pkg/store"
)

// Store is the persistence surface the provisioner needs.
type Store interface {
	store.UserStore
	store.LayoutStore
	store.LayoutSetStore
}

// Provisioner reconciles a user's personal default pages with policy. It is
// idempotent and safe to run on every signed-in request.
type Provisioner struct {
	store    Store
	roles    permission.RoleService
	policy   Policy
	archives *ArchiveState
	importer Importer
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewProvisioner creates a provisioner. importer may be nil when no archive
// provisioning is configured.
func NewProvisioner(s Store, roles permission.RoleService, policy Policy, archives *ArchiveState, importer Importer, logger *observability.Logger, metrics *observability.Metrics) *Provisioner {
	return &Provisioner{
		store:    s,
		roles:    roles,
		policy:   policy,
		archives: archives,
		importer: importer,
		logger:   logger,
		metrics:  metrics,
	}
}

// Reconcile brings the user's private and public personal pages in line with
// policy. Persistence failures propagate; a user should not proceed on a
// half-provisioned page set silently.
func (p *Provisioner) Reconcile(ctx context.Context, user *model.User) error {
	if user == nil || user.DefaultUser {
		return nil
	}

	// The power-user role check is shared between the private and public
	// branches, computed at most once per call.
	var (
		powerUserChecked bool
		powerUser        bool
	)
	isPowerUser := func() (bool, error) {
		if !powerUserChecked {
			var err error
			powerUser, err = p.roles.HasRole(ctx, user.ID, user.CompanyID, permission.PowerUserRole, true)
			if err != nil {
				return false, fmt.Errorf("failed to check power user role: %w", err)
			}
			powerUserChecked = true
		}
		return powerUser, nil
	}

	if err := p.reconcileBranch(ctx, user, true, p.policy.Private, isPowerUser); err != nil {
		return err
	}
	return p.reconcileBranch(ctx, user, false, p.policy.Public, isPowerUser)
}

func (p *Provisioner) reconcileBranch(ctx context.Context, user *model.User, private bool, branch BranchPolicy, isPowerUser func() (bool, error)) error {
	has, err := p.hasLayouts(ctx, user.ID, private)
	if err != nil {
		return err
	}

	shouldHave := branch.Enabled && branch.AutoCreate
	if shouldHave && branch.PowerUserRequired {
		ok, err := isPowerUser()
		if err != nil {
			return err
		}
		shouldHave = ok
	}
	if shouldHave && !has {
		if err := p.provision(ctx, user, private, branch); err != nil {
			return err
		}
		has = true
	}

	shouldDelete := !branch.Enabled
	if !shouldDelete && branch.PowerUserRequired {
		ok, err := isPowerUser()
		if err != nil {
			return err
		}
		shouldDelete = !ok
	}
	if shouldDelete && has {
		if err := p.store.DeleteLayouts(ctx, user.GroupID, private); err != nil {
			return fmt.Errorf("failed to delete default layouts: %w", err)
		}
		p.metrics.ProvisionOperations.WithLabelValues(kindLabel(private), "delete").Inc()
		p.logger.WithFields(map[string]interface{}{
			"user_id": user.ID,
			"private": private,
		}).Info("deleted default personal layouts")
	}

	return nil
}

func (p *Provisioner) hasLayouts(ctx context.Context, userID int64, private bool) (bool, error) {
	if private {
		return p.store.HasPrivateLayouts(ctx, userID)
	}
	return p.store.HasPublicLayouts(ctx, userID)
}

func (p *Provisioner) provision(ctx context.Context, user *model.User, private bool, branch BranchPolicy) error {
	if p.archives != nil && p.archives.Usable(branch.ArchivePath) {
		if p.importer != nil {
			err := p.importer.ImportLayouts(ctx, user.ID, user.GroupID, private, ImportOptions(), branch.ArchivePath)
			if err != nil {
				return fmt.Errorf("failed to import layout archive: %w", err)
			}
			p.metrics.ProvisionOperations.WithLabelValues(kindLabel(private), "import").Inc()
			return nil
		}
		p.logger.WithFields(map[string]interface{}{
			"archive": branch.ArchivePath,
			"private": private,
		}).Warn("layout archive is usable but no importer is configured, synthesizing defaults")
	}
	if err := p.synthesize(ctx, user, private, branch); err != nil {
		return err
	}
	p.metrics.ProvisionOperations.WithLabelValues(kindLabel(private), "create").Inc()
	return nil
}

// synthesize creates a single root layout from the declarative policy fields
// and applies any configured theme overrides to the owning layout set.
func (p *Provisioner) synthesize(ctx context.Context, user *model.User, private bool, branch BranchPolicy) error {
	layout := &model.Layout{
		GroupID:        user.GroupID,
		Private:        private,
		ParentLayoutID: model.DefaultParentLayoutID,
		Name:           branch.LayoutName,
		FriendlyURL:    NormalizeFriendlyURL(branch.FriendlyURL),
		Type:           model.LayoutTypePortlet,
		TemplateID:     branch.LayoutTemplateID,
		TypeSettings:   model.TypeSettings{},
	}
	for i, portlets := range branch.Columns {
		if len(portlets) == 0 {
			continue
		}
		layout.TypeSettings.Set(fmt.Sprintf("column-%d", i), strings.Join(portlets, ","))
	}
	if err := p.store.CreateLayout(ctx, layout); err != nil {
		return fmt.Errorf("failed to create default layout: %w", err)
	}
	p.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"private": private,
		"plid":    layout.PLID,
	}).Info("created default personal layout")

	return p.applyLayoutSetOverrides(ctx, user.GroupID, private, branch)
}

func (p *Provisioner) applyLayoutSetOverrides(ctx context.Context, groupID int64, private bool, branch BranchPolicy) error {
	if branch.ThemeID == "" && branch.ColorSchemeID == "" &&
		branch.MobileThemeID == "" && branch.MobileColorSchemeID == "" {
		return nil
	}

	set, err := p.store.LayoutSet(ctx, groupID, private)
	if err != nil {
		return fmt.Errorf("failed to load layout set: %w", err)
	}

	applied := false
	if branch.ThemeID != "" {
		set.ThemeID = branch.ThemeID
		applied = true
	}
	if branch.ColorSchemeID != "" {
		set.ColorSchemeID = branch.ColorSchemeID
		applied = true
	}
	if branch.MobileThemeID != "" {
		set.MobileThemeID = branch.MobileThemeID
		applied = true
	}
	if branch.MobileColorSchemeID != "" {
		set.MobileColorSchemeID = branch.MobileColorSchemeID
		applied = true
	}
	if !applied {
		return nil
	}
	if err := p.store.UpdateLayoutSet(ctx, set); err != nil {
		return fmt.Errorf("failed to update layout set: %w", err)
	}
	return nil
}

func kindLabel(private bool) string {
	if private {
		return "private"
	}
	return "public"
}
