package i18n

// Message keys double as their English text.
const (
	MsgLoginRequired      = "Please log in first."
	MsgAccessDenied       = "You do not have permission to access this page."
	MsgInvalidCredentials = "Invalid username or password."
	MsgAccountDisabled    = "This account has been disabled."
	MsgWelcome            = "Welcome back, %s."
	MsgLoggedOut          = "You have been logged out."
	MsgInvalidRequest     = "Invalid request."
	MsgServerError        = "Something went wrong, please try again."

	MsgUserCreated       = "User created."
	MsgUserUpdated       = "User updated."
	MsgUserDeleted       = "User deleted."
	MsgPasswordReset     = "Password has been reset."
	MsgUserStatusChanged = "User status updated."
	MsgUserSelfDelete    = "You cannot delete your own account."
	MsgUsernameTaken     = "Username already exists."
	MsgUserNotFound      = "User not found."

	MsgRoleCreated   = "Role created."
	MsgRoleDeleted   = "Role deleted."
	MsgRoleInUse     = "The role is still assigned to users."
	MsgRoleProtected = "The superadmin role cannot be deleted."
	MsgRoleCodeTaken = "Role code already exists."

	MsgRefineResult  = "Renamed %d functions, %d failed."
	MsgRefineInvalid = "The submitted JSON could not be parsed."
)

var zhHant = map[string]string{
	MsgLoginRequired:      "請先登入。",
	MsgAccessDenied:       "您沒有權限存取此頁面。",
	MsgInvalidCredentials: "帳號或密碼錯誤。",
	MsgAccountDisabled:    "此帳號已停用。",
	MsgWelcome:            "歡迎回來，%s。",
	MsgLoggedOut:          "您已登出。",
	MsgInvalidRequest:     "請求無效。",
	MsgServerError:        "系統發生錯誤，請稍後再試。",

	MsgUserCreated:       "使用者已建立。",
	MsgUserUpdated:       "使用者已更新。",
	MsgUserDeleted:       "使用者已刪除。",
	MsgPasswordReset:     "密碼已重設。",
	MsgUserStatusChanged: "使用者狀態已更新。",
	MsgUserSelfDelete:    "無法刪除自己的帳號。",
	MsgUsernameTaken:     "帳號已存在。",
	MsgUserNotFound:      "找不到使用者。",

	MsgRoleCreated:   "角色已建立。",
	MsgRoleDeleted:   "角色已刪除。",
	MsgRoleInUse:     "仍有使用者屬於此角色。",
	MsgRoleProtected: "無法刪除超級管理員角色。",
	MsgRoleCodeTaken: "角色代碼已存在。",

	MsgRefineResult:  "已更新 %d 個功能名稱，%d 個失敗。",
	MsgRefineInvalid: "無法解析送出的 JSON。",
}
