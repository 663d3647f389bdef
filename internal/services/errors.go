package services

import "errors"

// Error kinds. Handlers map them to status codes with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Error carries a kind together with the reason reported to the caller.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func notFound(detail string) error {
	return &Error{Kind: ErrNotFound, Detail: detail}
}

func forbidden(detail string) error {
	return &Error{Kind: ErrForbidden, Detail: detail}
}

func badRequest(detail string) error {
	return &Error{Kind: ErrBadRequest, Detail: detail}
}

func invalidCredentials(detail string) error {
	return &Error{Kind: ErrInvalidCredentials, Detail: detail}
}

// Detail returns the caller-facing reason of err, or "" for errors outside the taxonomy.
func Detail(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Detail
	}
	return ""
}

const (
	msgNotMember        = "User is not a member of this chat"
	msgNotAdmin         = "User is not an admin of this chat"
	msgChatNotFound     = "Chat not found"
	msgMessageNotFound  = "Message not found"
	msgUserNotFound     = "User not found"
	msgUserNotInChat    = "User not found in chat"
	msgUsersNotFound    = "One or more users not found"
	msgBadCredentials   = "Incorrect username or password"
	msgInvalidToken     = "Could not validate credentials"
	msgIPNotFound       = "IP address not found or already deactivated"
	msgInvalidIP        = "Invalid IP address"
	msgUsernameTaken    = "Username already registered"
	msgEmailTaken       = "Email already registered"
	msgInactiveUser     = "Inactive user"
	msgIndividualChat   = "Cannot add users to individual chat"
	msgGroupNeedsName   = "Group chats require a name"
	msgTooFewMembers    = "A chat needs at least two distinct members"
	msgEmptyContent     = "Message content cannot be empty"
	msgForeignUpdate    = "Cannot update messages from other users"
	msgForeignDelete    = "Cannot delete messages from other users"
	msgIPAlreadyActive  = "IP address already authorized"
	msgRemoveCurrentIP  = "Cannot remove the IP address you are currently using"
	msgAccountConflicts = "Username or email already registered"
)
