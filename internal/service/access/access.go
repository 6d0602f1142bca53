// Package access implements the sharing predicate layered over the
// catalog. It is pure: callers supply the owner, the rights set and the
// viewer, nothing is loaded here.
package access

// Public is the rights sentinel granting every account access.
const Public = "public"

// Allowed reports whether user may access a file with the given owner
// and rights. includeAdmin lets administrators through regardless of
// rights; queries computing "files shared with me" pass false so an
// admin's shared-view is not every file on the server.
func Allowed(owner string, rights []string, user string, isAdmin bool, includeAdmin bool) bool {
	if user == owner {
		return true
	}
	for _, r := range rights {
		if r == Public || r == user {
			return true
		}
	}
	return includeAdmin && isAdmin
}
