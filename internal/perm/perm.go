// Package perm decides whether management actions are allowed. Pure
// functions only: results are computed from current inputs on every
// call and never cached, since role and ownership can change between
// fetches.
package perm

import "github.com/and161185/studyshare/internal/model"

// CanManage reports whether u may delete or otherwise manage r: the
// user must be the uploader or an admin. Anonymous users manage nothing.
func CanManage(u *model.User, r model.Resource) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	return r.UploadedBy.ID != "" && r.UploadedBy.ID == u.ID
}
