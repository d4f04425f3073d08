package security

import "time"

// Action is the closed set of audited actions.
type Action string

const (
	ActionUserLogin         Action = "user_login"
	ActionUserLogout        Action = "user_logout"
	ActionUserRegister      Action = "user_register"
	ActionUserProfileUpdate Action = "user_profile_update"
	ActionPasswordChange    Action = "password_change"
	ActionPasswordReset     Action = "password_reset"
	ActionBookingCreate     Action = "booking_create"
	ActionBookingUpdate     Action = "booking_update"
	ActionBookingCancel     Action = "booking_cancel"
	ActionBookingApprove    Action = "booking_approve"
	ActionBookingReject     Action = "booking_reject"
	ActionRoomCreate        Action = "room_create"
	ActionRoomUpdate        Action = "room_update"
	ActionRoomDelete        Action = "room_delete"
	ActionAdminAction       Action = "admin_action"
	ActionPermissionChange  Action = "permission_change"
	ActionSystemConfig      Action = "system_config"
	ActionSecurityViolation Action = "security_violation"
	ActionAccountLock       Action = "account_lock"
	ActionAccountUnlock     Action = "account_unlock"
	ActionOTPGenerate       Action = "otp_generate"
	ActionOTPVerify         Action = "otp_verify"
	ActionDomainRejected    Action = "domain_rejected"
	ActionOther             Action = "other"
)

var knownActions = map[Action]struct{}{
	ActionUserLogin: {}, ActionUserLogout: {}, ActionUserRegister: {}, ActionUserProfileUpdate: {},
	ActionPasswordChange: {}, ActionPasswordReset: {}, ActionBookingCreate: {}, ActionBookingUpdate: {},
	ActionBookingCancel: {}, ActionBookingApprove: {}, ActionBookingReject: {}, ActionRoomCreate: {},
	ActionRoomUpdate: {}, ActionRoomDelete: {}, ActionAdminAction: {}, ActionPermissionChange: {},
	ActionSystemConfig: {}, ActionSecurityViolation: {}, ActionAccountLock: {}, ActionAccountUnlock: {},
	ActionOTPGenerate: {}, ActionOTPVerify: {}, ActionDomainRejected: {}, ActionOther: {},
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// AuditEntry is an append-only audit record. ActorID is nil for anonymous actions.
type AuditEntry struct {
	ID          string
	ActorID     *string
	Action      Action
	Description string
	ObjectType  string
	ObjectID    string
	IP          string
	UserAgent   string
	Data        map[string]any
	Timestamp   time.Time
}
