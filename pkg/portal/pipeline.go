package portal

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/parapet/portal/pkg/async"
	"github.com/parapet/portal/pkg/httputil"
	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/observability"
	"github.com/parapet/portal/pkg/permission"
	"github.com/parapet/portal/pkg/resolver"
	"github.com/parapet/portal/pkg/session"
	"github.com/parapet/portal/pkg/store"
)

// CanonicalLayoutPath is the layout-serving path. Visit-trail recording is
// narrowed to it so resource sub-requests do not perturb the trail.
const CanonicalLayoutPath = "/portal/layout"

// CheckerFactory constructs a permission checker for one acting principal.
// Checkers are built explicitly per request and passed down; nothing reads
// them from ambient state.
type CheckerFactory func(userID, companyID int64) permission.Checker

// Provisioner reconciles a signed-in user's personal default pages.
type Provisioner interface {
	Reconcile(ctx context.Context, user *model.User) error
}

// Merger splices guest pages into the resolved sibling list.
type Merger interface {
	Merge(ctx context.Context, user *model.User, checker permission.Checker, sess *session.Session, layout *model.Layout, layouts []*model.Layout) ([]*model.Layout, error)
}

// VirtualHostResolver maps a request host to a layout set. Virtual host
// management lives outside this service; the pipeline only consumes the
// mapping.
type VirtualHostResolver interface {
	LayoutSetForHost(ctx context.Context, host string) (*model.LayoutSet, error)
}

// Options holds pipeline behavior flags.
type Options struct {
	SessionCookie            string
	CacheDisabledForSignedIn bool
	AvailableLocales         []string
}

// Pipeline is the per-request orchestration of identity resolution,
// provisioning, layout resolution, and context assembly.
type Pipeline struct {
	store       store.Store
	sessions    session.Store
	checkers    CheckerFactory
	provisioner Provisioner
	resolver    *resolver.Resolver
	merger      Merger
	locales     *LocaleResolver
	vhosts      VirtualHostResolver
	opts        Options
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewPipeline creates the pipeline. vhosts may be nil when virtual host
// support is not configured.
func NewPipeline(st store.Store, sessions session.Store, checkers CheckerFactory, prov Provisioner, res *resolver.Resolver, merger Merger, vhosts VirtualHostResolver, opts Options, logger *observability.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.SessionCookie == "" {
		opts.SessionCookie = "PORTAL_SESSION_ID"
	}
	return &Pipeline{
		store:       st,
		sessions:    sessions,
		checkers:    checkers,
		provisioner: prov,
		resolver:    res,
		merger:      merger,
		locales:     NewLocaleResolver(opts.AvailableLocales),
		vhosts:      vhosts,
		opts:        opts,
		logger:      logger,
		metrics:     metrics,
	}
}

// ServicePre resolves the full display context for one request.
func (p *Pipeline) ServicePre(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		p.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	ctx := r.Context()

	company, ok := p.resolveCompany(ctx, w, r)
	if !ok {
		return
	}

	sess := p.resolveSession(ctx, w, r)

	realUser, proceed := p.resolveUser(ctx, w, r, sess, company)
	if !proceed {
		return
	}
	signedIn := !realUser.DefaultUser

	user, doAsUserID := p.resolveActingUser(ctx, r, realUser, company)

	if signedIn && p.opts.CacheDisabledForSignedIn {
		httputil.SetNoCacheHeaders(w)
	}

	locale := p.locales.Resolve(r, sess, user, company, signedIn)
	p.locales.Persist(w, sess, locale)

	timeZone := user.TimeZone
	if timeZone == "" {
		timeZone = company.TimeZone
	}

	device := sessionDevice(sess, r.UserAgent())

	checker := p.checkers(user.ID, company.ID)

	if signedIn {
		if err := p.provisioner.Reconcile(ctx, user); err != nil {
			p.logger.WithError(err).Error("failed to reconcile default layouts")
			httputil.WriteInternalError(w, err)
			return
		}
	}

	req := p.layoutRequest(ctx, r)

	result, err := p.resolver.Resolve(ctx, user, checker, req)
	if err != nil {
		if permission.IsPrincipalError(err) {
			p.saveSession(ctx, sess)
			httputil.WriteForbidden(w, err.Error())
			return
		}
		p.logger.WithError(err).Error("layout resolution failed")
		httputil.WriteInternalError(w, err)
		return
	}

	if p.shouldRecordVisit(r, result.Group) {
		session.RecordVisit(sess, result.Group.ID)
	}

	layouts, err := p.merger.Merge(ctx, user, checker, sess, result.Layout, result.Layouts)
	if err != nil {
		p.logger.WithError(err).Error("guest page merge failed")
		httputil.WriteInternalError(w, err)
		return
	}

	customized := p.resolveCustomizedView(r, sess)

	var layoutSet *model.LayoutSet
	if result.Layout != nil {
		layoutSet, err = p.store.LayoutSet(ctx, result.Layout.GroupID, result.Layout.Private)
		if store.IsNotFound(err) {
			layoutSet = nil
		} else if err != nil {
			p.logger.WithError(err).Warn("failed to load layout set")
			layoutSet = nil
		}
	}

	dc, err := Assemble(ctx, assembleInput{
		Company:        company,
		RealUser:       realUser,
		User:           user,
		SignedIn:       signedIn,
		Locale:         locale,
		TimeZone:       timeZone,
		Device:         device,
		Result:         result,
		Layouts:        layouts,
		LayoutSet:      layoutSet,
		DoAsUserID:     doAsUserID,
		CustomizedView: customized,
		Checker:        checker,
	})
	if err != nil {
		p.logger.WithError(err).Error("display context assembly failed")
		httputil.WriteInternalError(w, err)
		return
	}

	p.saveSession(ctx, sess)
	httputil.WriteSuccess(w, dc)
}

// resolveCompany maps the request host to its company. An unknown host is a
// 404; a storage failure is a 503.
func (p *Pipeline) resolveCompany(ctx context.Context, w http.ResponseWriter, r *http.Request) (*model.Company, bool) {
	host := requestHost(r)
	company, err := p.store.CompanyByWebID(ctx, host)
	if store.IsNotFound(err) {
		httputil.WriteNotFoundError(w, "unknown portal host: "+host)
		return nil, false
	}
	if err != nil {
		p.logger.WithError(err).Error("failed to resolve company")
		httputil.WriteServiceUnavailable(w, "storage unavailable")
		return nil, false
	}
	if !company.Active {
		httputil.WriteNotFoundError(w, "portal instance is inactive")
		return nil, false
	}
	return company, true
}

// resolveSession loads the browser session or starts a fresh one.
func (p *Pipeline) resolveSession(ctx context.Context, w http.ResponseWriter, r *http.Request) *session.Session {
	if id := httputil.CookieValue(r, p.opts.SessionCookie); id != "" {
		sess, err := p.sessions.Get(ctx, id)
		if err == nil {
			return sess
		}
		if err != session.ErrNotFound {
			p.logger.WithError(err).Warn("failed to load session, starting fresh")
		}
	}

	sess := session.New()
	http.SetCookie(w, &http.Cookie{
		Name:     p.opts.SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
	})
	return sess
}

// resolveUser turns the session's user reference into a user. A stale
// reference invalidates the session and aborts the pipeline; the next
// request starts clean. An anonymous session gets the company default user.
func (p *Pipeline) resolveUser(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *session.Session, company *model.Company) (*model.User, bool) {
	if userID, ok := sess.GetInt64(session.KeyUserID); ok && userID > 0 {
		user, err := p.store.User(ctx, userID)
		if store.IsNotFound(err) {
			p.logger.WithField("user_id", userID).Warn("session references a user that no longer exists, invalidating session")
			p.metrics.SessionRepairs.Inc()
			if err := p.sessions.Invalidate(ctx, sess.ID); err != nil {
				p.logger.WithError(err).Warn("failed to invalidate session")
			}
			http.Redirect(w, r, "/", http.StatusFound)
			return nil, false
		}
		if err != nil {
			httputil.WriteServiceUnavailable(w, "storage unavailable")
			return nil, false
		}
		return user, true
	}

	user, err := p.store.DefaultUser(ctx, company.ID)
	if err != nil {
		p.logger.WithError(err).Error("failed to load default user")
		httputil.WriteServiceUnavailable(w, "storage unavailable")
		return nil, false
	}
	return user, true
}

// resolveActingUser applies doAsUserId impersonation. The real user needs
// update permission over the target, honoring grants scoped to the target's
// organizations; otherwise the parameter is ignored with a warning.
func (p *Pipeline) resolveActingUser(ctx context.Context, r *http.Request, realUser *model.User, company *model.Company) (*model.User, int64) {
	doAsUserID := httputil.ParamInt64(r, "doAsUserId", 0)
	if doAsUserID <= 0 || doAsUserID == realUser.ID {
		return realUser, 0
	}

	target, err := p.store.User(ctx, doAsUserID)
	if err != nil {
		p.logger.WithError(err).WithField("do_as_user_id", doAsUserID).Warn("ignoring doAsUserId, target not loadable")
		return realUser, 0
	}

	orgs, err := p.store.UserOrganizations(ctx, doAsUserID)
	if err != nil {
		p.logger.WithError(err).Warn("ignoring doAsUserId, organizations not loadable")
		return realUser, 0
	}
	orgIDs := make([]int64, len(orgs))
	for i, o := range orgs {
		orgIDs[i] = o.ID
	}

	realChecker := p.checkers(realUser.ID, company.ID)
	allowed, err := realChecker.HasUserPermission(ctx, doAsUserID, orgIDs, permission.ActionUpdate)
	if err != nil || !allowed {
		p.logger.WithField("do_as_user_id", doAsUserID).Warn("ignoring doAsUserId, real user lacks update permission")
		return realUser, 0
	}

	return target, doAsUserID
}

// layoutRequest extracts the explicit page target from request parameters.
func (p *Pipeline) layoutRequest(ctx context.Context, r *http.Request) resolver.Request {
	req := resolver.Request{
		PLID:                 httputil.ParamInt64(r, "p_l_id", 0),
		GroupID:              httputil.ParamInt64(r, "groupId", 0),
		Private:              httputil.ParamBool(r, "privateLayout", false),
		LayoutID:             httputil.ParamInt64(r, "layoutId", 0),
		ControlPanelCategory: httputil.ParamString(r, "controlPanelCategory", ""),
		DoAsGroupID:          httputil.ParamInt64(r, "doAsGroupId", 0),
	}
	if req.PLID == 0 {
		req.PLID = httputil.ParamInt64(r, "refererPlid", 0)
	}

	if p.vhosts != nil {
		set, err := p.vhosts.LayoutSetForHost(ctx, requestHost(r))
		if err != nil && !store.IsNotFound(err) {
			p.logger.WithError(err).Warn("virtual host lookup failed")
		} else if err == nil {
			req.VirtualHostLayoutSet = set
		}
	}
	return req
}

// shouldRecordVisit narrows trail recording to render-phase requests for the
// canonical layout path, outside the control panel.
func (p *Pipeline) shouldRecordVisit(r *http.Request, group *model.Group) bool {
	if group == nil || group.IsControlPanel() {
		return false
	}
	if r.URL.Path != CanonicalLayoutPath {
		return false
	}
	if httputil.ParamString(r, "p_p_lifecycle", "0") != "0" {
		return false
	}
	if httputil.ParamString(r, "p_t_lifecycle", "0") != "0" {
		return false
	}
	return true
}

// resolveCustomizedView applies the session-sticky customized_view toggle.
func (p *Pipeline) resolveCustomizedView(r *http.Request, sess *session.Session) bool {
	if httputil.HasParam(r, "customized_view") {
		v := httputil.ParamBool(r, "customized_view", true)
		sess.Set(session.KeyCustomizedView, strconv.FormatBool(v))
		return v
	}
	return sess.Get(session.KeyCustomizedView) == "true"
}

// saveSession persists session state best-effort. Session values are
// last-write-wins hints; a lost write degrades navigation, not correctness.
func (p *Pipeline) saveSession(ctx context.Context, sess *session.Session) {
	async.SafeGo(ctx, p.logger, 5*time.Second, "session save", func(ctx context.Context) error {
		return p.sessions.Save(ctx, sess)
	})
}

// requestHost strips the port from the request host.
func requestHost(r *http.Request) string {
	host := r.Host
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
