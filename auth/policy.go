package auth

import "myblog-restful/models"

// Authorization predicates. Every function is total over its inputs: a nil
// caller (anonymous) denies, an unrecognized role never grants anything beyond
// what ownership already would, and nothing here panics. None of them touch
// the database; ownership facts arrive with the post.

// CanCreatePost allows any authenticated caller except plain readers.
func CanCreatePost(caller *Principal) bool {
	if caller == nil || !caller.Role.Valid() {
		return false
	}
	return caller.Role != models.RoleReader
}

// CanEditPost allows the post's own author and admins.
func CanEditPost(caller *Principal, post *models.Post) bool {
	if caller == nil || post == nil {
		return false
	}
	return caller.ID == post.AuthorID || caller.Role == models.RoleAdmin
}

// CanDeletePost allows admins only. Authorship is deliberately not enough:
// authors may edit their posts but removal goes through an admin.
func CanDeletePost(caller *Principal, post *models.Post) bool {
	if caller == nil || post == nil {
		return false
	}
	return caller.Role == models.RoleAdmin
}

// CanManageUsers gates the user list and user deletion.
func CanManageUsers(caller *Principal) bool {
	return caller != nil && caller.Role == models.RoleAdmin
}

// CanViewStats gates the admin dashboard counters.
func CanViewStats(caller *Principal) bool {
	return caller != nil && caller.Role == models.RoleAdmin
}

// CanManageMedia gates direct media deletion and the orphan sweeps.
func CanManageMedia(caller *Principal) bool {
	return caller != nil && caller.Role == models.RoleAdmin
}

// CanUpdateUserRole allows admins to change anyone's role, their own
// included. Nothing stops an admin demoting itself.
func CanUpdateUserRole(caller *Principal, target *models.User, newRole models.Role) bool {
	if caller == nil || target == nil {
		return false
	}
	return caller.Role == models.RoleAdmin
}
