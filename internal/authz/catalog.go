package authz

// Permission is a named capability token. The catalog is closed: every
// valid token is declared below, and adding one is a source change.
type Permission string

// General permissions held by every authenticated principal.
const (
	PermDashboardView Permission = "dashboard.view"
	PermProfileEdit   Permission = "profile.edit"
	PermAPIAccess     Permission = "api.access"
)

// User management permissions.
const (
	PermUsersView    Permission = "users.view"
	PermUsersEdit    Permission = "users.edit"
	PermUsersApprove Permission = "users.approve"
)

// Proposal management permissions.
const (
	PermProposalsViewOwn Permission = "proposals.view.own"
	PermProposalsViewAll Permission = "proposals.view.all"
	PermProposalsCreate  Permission = "proposals.create"
	PermProposalsEditOwn Permission = "proposals.edit.own"
	PermProposalsReview  Permission = "proposals.review"
	PermProposalsApprove Permission = "proposals.approve"
)

// Project management permissions.
const (
	PermProjectsViewOwn        Permission = "projects.view.own"
	PermProjectsViewAll        Permission = "projects.view.all"
	PermProjectsSupervise      Permission = "projects.supervise"
	PermProjectsEvaluate       Permission = "projects.evaluate"
	PermProjectsProgressUpdate Permission = "projects.progress.update"
)

// Financial permissions.
const (
	PermFinanceView   Permission = "finance.view"
	PermFinanceManage Permission = "finance.manage"
)

// System administration permissions.
const (
	PermAdminSettings    Permission = "admin.settings"
	PermAdminPermissions Permission = "admin.permissions"
)

// Reporting permissions.
const (
	PermReportsView   Permission = "reports.view"
	PermReportsExport Permission = "reports.export"
)

// Audit permissions.
const (
	PermAuditView Permission = "audit.view"
)

// Communication permissions.
const (
	PermNotificationsView Permission = "notifications.view"
	PermNotificationsSend Permission = "notifications.send"
)

// Feedback permissions.
const (
	PermFeedbackView Permission = "feedback.view"
	PermFeedbackGive Permission = "feedback.give"
)

// GeneralScopes lists the universal base permissions.
func GeneralScopes() []Permission {
	return []Permission{PermDashboardView, PermProfileEdit, PermAPIAccess}
}

// UserScopes lists user management permissions.
func UserScopes() []Permission {
	return []Permission{PermUsersView, PermUsersEdit, PermUsersApprove}
}

// ProposalScopes lists proposal management permissions.
func ProposalScopes() []Permission {
	return []Permission{
		PermProposalsViewOwn,
		PermProposalsViewAll,
		PermProposalsCreate,
		PermProposalsEditOwn,
		PermProposalsReview,
		PermProposalsApprove,
	}
}

// ProjectScopes lists project management permissions.
func ProjectScopes() []Permission {
	return []Permission{
		PermProjectsViewOwn,
		PermProjectsViewAll,
		PermProjectsSupervise,
		PermProjectsEvaluate,
		PermProjectsProgressUpdate,
	}
}

// FinanceScopes lists financial permissions.
func FinanceScopes() []Permission {
	return []Permission{PermFinanceView, PermFinanceManage}
}

// AdminScopes lists system administration permissions.
func AdminScopes() []Permission {
	return []Permission{PermAdminSettings, PermAdminPermissions}
}

// ReportScopes lists reporting permissions.
func ReportScopes() []Permission {
	return []Permission{PermReportsView, PermReportsExport}
}

// AuditScopes lists audit permissions.
func AuditScopes() []Permission {
	return []Permission{PermAuditView}
}

// CommunicationScopes lists communication permissions.
func CommunicationScopes() []Permission {
	return []Permission{PermNotificationsView, PermNotificationsSend}
}

// FeedbackScopes lists feedback permissions.
func FeedbackScopes() []Permission {
	return []Permission{PermFeedbackView, PermFeedbackGive}
}

// AllScopes returns the entire catalog.
func AllScopes() []Permission {
	var all []Permission
	all = append(all, GeneralScopes()...)
	all = append(all, UserScopes()...)
	all = append(all, ProposalScopes()...)
	all = append(all, ProjectScopes()...)
	all = append(all, FinanceScopes()...)
	all = append(all, AdminScopes()...)
	all = append(all, ReportScopes()...)
	all = append(all, AuditScopes()...)
	all = append(all, CommunicationScopes()...)
	all = append(all, FeedbackScopes()...)
	return all
}

var catalog = func() map[Permission]struct{} {
	set := make(map[Permission]struct{})
	for _, p := range AllScopes() {
		set[p] = struct{}{}
	}
	return set
}()

// Known reports whether p belongs to the catalog. Checks against
// unknown tokens fail closed: callers must treat them as denied.
func Known(p Permission) bool {
	_, ok := catalog[p]
	return ok
}
