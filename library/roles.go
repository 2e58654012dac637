package library

import "sort"

// PageKind identifies a view of the client.
type PageKind string

const (
	PageDashboard    PageKind = "dashboard"
	PageBooks        PageKind = "books"
	PageTransactions PageKind = "transactions"
	PageUsers        PageKind = "users"
)

// Element ids that a view may render.
const (
	ElemUsersNav       = "usersNavItem"
	ElemAddBookButton  = "addBookBtn"
	ElemAddBookSection = "addBookSection"
	ElemEditBook       = "editBookBtn"
	ElemDeleteBook     = "deleteBookBtn"
	ElemTotalUsersCard = "totalUsersCard"
	ElemOverdueCard    = "overdueCard"
	ElemBorrowUserPick = "borrowUserSelect"
	ElemChangeRole     = "changeRoleBtn"
	ElemDeleteUser     = "deleteUserBtn"
)

// librarianOnly lists what a non-librarian never sees, on every page.
var librarianOnly = []string{
	ElemUsersNav,
	ElemAddBookButton,
	ElemAddBookSection,
	ElemEditBook,
	ElemDeleteBook,
	ElemChangeRole,
	ElemDeleteUser,
}

// librarianOnlyByPage adds page-specific widgets.
var librarianOnlyByPage = map[PageKind][]string{
	PageDashboard:    {ElemTotalUsersCard, ElemOverdueCard},
	PageTransactions: {ElemBorrowUserPick},
}

// HiddenElements returns the ids a role must not see on page, sorted.
// Librarians see everything; any other role, including an unknown one, gets
// the member set.
func HiddenElements(role Role, page PageKind) []string {
	if role == RoleLibrarian {
		return []string{}
	}
	out := make([]string, 0, len(librarianOnly)+2)
	out = append(out, librarianOnly...)
	out = append(out, librarianOnlyByPage[page]...)
	sort.Strings(out)
	return out
}

// Visible reports whether element id is shown to role on page.
func Visible(role Role, page PageKind, id string) bool {
	for _, h := range HiddenElements(role, page) {
		if h == id {
			return false
		}
	}
	return true
}

// RequireLibrarian fails with an AuthorizationError unless the session is a librarian's.
func RequireLibrarian(sess *Session, action string) error {
	if sess == nil || !sess.User.IsLibrarian() {
		return forbiddenf("only librarians can %s", action)
	}
	return nil
}

// RequireLibrarianOrSelf lets librarians act on anyone and members only on themselves.
func RequireLibrarianOrSelf(sess *Session, userID int64, action string) error {
	if sess == nil {
		return forbiddenf("you must be logged in to %s", action)
	}
	if sess.User.IsLibrarian() {
		return nil
	}
	if sess.User.ID == 0 || sess.User.ID != userID {
		return forbiddenf("you can only %s for your own account", action)
	}
	return nil
}
