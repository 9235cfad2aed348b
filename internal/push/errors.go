package push

import "errors"

// ErrTokenRejected is returned when FCM refuses a device token.
var ErrTokenRejected = errors.New("push token rejected")
