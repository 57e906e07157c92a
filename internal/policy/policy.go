// Package policy is the single place where role and ownership rules are
// decided. Handlers describe what they want to do as an Action plus the
// Resource it touches and act on the returned Decision.
package policy

import "projecthub/internal/models"

type Action string

const (
	ActionListOwnProjects     Action = "projects.list_own"
	ActionListAllProjects     Action = "projects.list_all"
	ActionViewProject         Action = "projects.view"
	ActionCreateProject       Action = "projects.create"
	ActionUpdateProjectStatus Action = "projects.update_status"
	ActionCancelProject       Action = "projects.cancel"
	ActionUploadDocuments     Action = "documents.upload"
	ActionViewDocuments       Action = "documents.view"
	ActionPostUpdate          Action = "updates.post"
	ActionViewUpdates         Action = "updates.view"
	ActionPostMessage         Action = "messages.post"
	ActionBroadcastMessage    Action = "messages.broadcast"
	ActionReadMessages        Action = "messages.read"
)

// Denial reasons returned to callers.
const (
	ReasonRoleNotAllowed  = "role_not_allowed"
	ReasonNotOwner        = "not_project_owner"
	ReasonHasDocuments    = "project_has_documents"
	ReasonUnknownRole     = "unknown_role"
	ReasonUnknownAction   = "unknown_action"
	ReasonPublicRoleOnly  = "public_registration_creates_clients_only"
	ReasonMissingResource = "missing_resource"
)

// Resource carries the facts about the target that some rules need. A zero
// Resource is fine for actions that are not about a specific project.
type Resource struct {
	// OwnerID is the id of the client that owns the project; empty when the
	// action does not target a project.
	OwnerID      string
	HasDocuments bool
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

type requirement int

const (
	denied requirement = iota
	always
	owner
	ownerWithoutDocuments
)

var rules = map[Action]map[models.UserRole]requirement{
	ActionListOwnProjects:     {models.UserRoleClient: always, models.UserRoleProvider: always},
	ActionListAllProjects:     {models.UserRoleProvider: always},
	ActionViewProject:         {models.UserRoleClient: owner, models.UserRoleProvider: always},
	ActionCreateProject:       {models.UserRoleClient: always, models.UserRoleProvider: always},
	ActionUpdateProjectStatus: {models.UserRoleProvider: always},
	ActionCancelProject:       {models.UserRoleClient: ownerWithoutDocuments},
	ActionUploadDocuments:     {models.UserRoleClient: owner},
	ActionViewDocuments:       {models.UserRoleClient: owner, models.UserRoleProvider: always},
	ActionPostUpdate:          {models.UserRoleProvider: always},
	ActionViewUpdates:         {models.UserRoleClient: owner, models.UserRoleProvider: always},
	ActionPostMessage:         {models.UserRoleProvider: always},
	ActionBroadcastMessage:    {models.UserRoleProvider: always},
	ActionReadMessages:        {models.UserRoleClient: always, models.UserRoleProvider: always},
}

// Authorize decides whether identity may perform action on resource. The
// identity is taken as-is from the credential; it is not re-read from the
// user record, so a role change only applies to credentials issued after it.
func Authorize(identity models.Identity, action Action, resource Resource) Decision {
	if !identity.Role.Valid() {
		return deny(ReasonUnknownRole)
	}

	byRole, ok := rules[action]
	if !ok {
		return deny(ReasonUnknownAction)
	}

	switch byRole[identity.Role] {
	case always:
		return allow()
	case owner:
		return requireOwner(identity, resource)
	case ownerWithoutDocuments:
		if d := requireOwner(identity, resource); !d.Allowed {
			return d
		}
		if resource.HasDocuments {
			return deny(ReasonHasDocuments)
		}
		return allow()
	default:
		return deny(ReasonRoleNotAllowed)
	}
}

func requireOwner(identity models.Identity, resource Resource) Decision {
	if resource.OwnerID == "" {
		return deny(ReasonMissingResource)
	}
	if resource.OwnerID != identity.ID {
		return deny(ReasonNotOwner)
	}
	return allow()
}

// AuthorizeRegistration gates the public registration endpoint. Only the
// client role can be self-assigned; providers are provisioned out of band.
func AuthorizeRegistration(requested string) Decision {
	if models.UserRole(requested) != models.UserRoleClient {
		return deny(ReasonPublicRoleOnly)
	}
	return allow()
}
