package reddit

import "strings"

// API path templates. "{id}" is replaced by the owning object's identifier.
const (
	pathLiveAbout             = "api/live/{id}/about"
	pathLiveAcceptInvite      = "api/live/{id}/accept_contributor_invite"
	pathLiveClose             = "api/live/{id}/close_thread"
	pathLiveContributors      = "live/{id}/contributors"
	pathLiveDeleteUpdate      = "api/live/{id}/delete_update"
	pathLiveDiscussions       = "live/{id}/discussions"
	pathLiveEdit              = "api/live/{id}/edit"
	pathLiveInvite            = "api/live/{id}/invite_contributor"
	pathLivePostUpdate        = "api/live/{id}/update"
	pathLiveRemoveContributor = "api/live/{id}/rm_contributor"
	pathLiveRemoveInvite      = "api/live/{id}/rm_contributor_invite"
	pathLiveSetPermissions    = "api/live/{id}/set_contributor_permissions"
	pathLiveStrikeUpdate      = "api/live/{id}/strike_update"
	pathLiveUpdates           = "live/{id}"

	pathUserAbout = "user/{id}/about"
	pathByID      = "by_id/t3_{id}"
)

func expand(tmpl, id string) string {
	return strings.ReplaceAll(tmpl, "{id}", id)
}
