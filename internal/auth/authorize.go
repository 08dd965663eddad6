package auth

import "context"

// Can reports whether actor may perform action on resource. item is optional
// and only consulted for company ownership of staff records.
//
// A company actor may create staff without an item: the new record is assumed
// to belong to the actor's own company.
func Can(actor *Actor, action Action, resource Resource, item *Item) bool {
	if actor == nil {
		return false
	}
	switch actor.Role {
	case RoleAdmin, RoleDev:
		return true
	case RoleControl:
		if resource == ResourceCheck && (action == ActionCreate || action == ActionRead) {
			return true
		}
		return action == ActionRead
	case RoleCompany:
		if action == ActionRead {
			return true
		}
		if resource != ResourceStaff {
			return false
		}
		if item != nil && item.CompanyID != nil {
			return actor.CompanyID != nil && *item.CompanyID == *actor.CompanyID
		}
		return action == ActionCreate
	default:
		return false
	}
}

// Allowed evaluates Can for the actor carried by ctx.
func Allowed(ctx context.Context, action Action, resource Resource, item *Item) bool {
	actor, _ := ActorFromContext(ctx)
	return Can(actor, action, resource, item)
}
